package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

func TestCredentialRepository_Profiles(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(zap.NewNop().Sugar())

	_, err := repo.Load(ctx, "default")
	assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)

	require.NoError(t, repo.Save(ctx, "default", models.Credentials{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, repo.Save(ctx, "other", models.Credentials{AccessToken: "b", RefreshToken: "s"}))

	creds, err := repo.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "a", creds.AccessToken)

	require.NoError(t, repo.Delete(ctx, "default"))
	_, err = repo.Load(ctx, "default")
	assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)

	creds, err = repo.Load(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "s", creds.RefreshToken)
}
