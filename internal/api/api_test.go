package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/backend"
	"github.com/rryowa/storefront/internal/controller"
	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/util"
)

func newTestServer(t *testing.T) (*httptest.Server, *backend.Directory) {
	t.Helper()
	log := zap.NewNop().Sugar()

	dir := backend.NewDirectory(backend.NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("test-secret-0123456789"),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	}), log)

	a, err := NewAPI(controller.NewController(log, dir), dir, log, &util.ServerConfig{})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func do(t *testing.T, method, url, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAPI_ProfileRequiresBearer(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, srv.URL+"/api"+models.PathProfile, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication credentials were not provided", body["error"])

	status, body = do(t, http.MethodGet, srv.URL+"/api"+models.PathProfile, "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_RegisterThenProfile(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/api"+models.PathRegister, "",
		`{"email":"a@b.com","password":"correct-horse-1","password2":"correct-horse-1","first_name":"Ayse","last_name":"Y"}`)
	require.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, body["refresh"])

	status, body = do(t, http.MethodGet, srv.URL+"/api"+models.PathProfile, token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@b.com", body["email"])
}

func TestAPI_RequestValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/api"+models.PathLogin, "", `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_FieldErrorsRendered(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/api"+models.PathRegister, "",
		`{"email":"a@b.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "password")
	assert.Len(t, body["password"], 1)
}

func TestAPI_TokenRefreshRotates(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := do(t, http.MethodPost, srv.URL+"/api"+models.PathRegister, "",
		`{"email":"a@b.com","password":"correct-horse-1"}`)
	refresh := body["refresh"].(string)

	status, body := do(t, http.MethodPost, srv.URL+"/api"+models.PathTokenRefresh, "", `{"refresh":"`+refresh+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access"])
	assert.NotEqual(t, refresh, body["refresh"])

	status, body = do(t, http.MethodPost, srv.URL+"/api"+models.PathTokenRefresh, "", `{"refresh":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token is invalid or expired", body["error"])
}

func TestAPI_Ping(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
