package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

func setupStorage() (*CredentialStorage, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewCredentialStorage(db), mock
}

func TestCredentialStorage_Save(t *testing.T) {
	ctx := context.Background()
	creds := models.Credentials{AccessToken: "a", RefreshToken: "r"}
	raw, err := json.Marshal(creds)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		s, mock := setupStorage()
		mock.ExpectSet(credentialsKey("default"), raw, 0).SetVal("OK")

		assert.NoError(t, s.Save(ctx, "default", creds))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		s, mock := setupStorage()
		mock.ExpectSet(credentialsKey("default"), raw, 0).SetErr(redis.ErrClosed)

		assert.ErrorIs(t, s.Save(ctx, "default", creds), redis.ErrClosed)
	})
}

func TestCredentialStorage_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		s, mock := setupStorage()
		mock.ExpectGet(credentialsKey("shop")).SetVal(`{"access_token":"a","refresh_token":"r"}`)

		creds, err := s.Load(ctx, "shop")
		require.NoError(t, err)
		assert.Equal(t, models.Credentials{AccessToken: "a", RefreshToken: "r"}, creds)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := setupStorage()
		mock.ExpectGet(credentialsKey("shop")).RedisNil()

		_, err := s.Load(ctx, "shop")
		assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)
	})

	t.Run("corrupt value", func(t *testing.T) {
		s, mock := setupStorage()
		mock.ExpectGet(credentialsKey("shop")).SetVal("nope")

		_, err := s.Load(ctx, "shop")
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrCredentialsNotFound)
	})
}

func TestCredentialStorage_Delete(t *testing.T) {
	s, mock := setupStorage()
	mock.ExpectDel(credentialsKey("default")).SetVal(1)

	assert.NoError(t, s.Delete(context.Background(), "default"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
