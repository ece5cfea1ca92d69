package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rryowa/storefront/internal/api"
	"github.com/rryowa/storefront/internal/backend"
	"github.com/rryowa/storefront/internal/client"
	"github.com/rryowa/storefront/internal/controller"
	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
	"github.com/rryowa/storefront/internal/storage/memory"
	"github.com/rryowa/storefront/internal/util"
)

const (
	testEmail    = openapi_types.Email("a@b.com")
	testPassword = "correct-horse-1"
)

var testCtx = context.Background()

type harness struct {
	dir     *backend.Directory
	store   *storage.CredentialStore
	persist *recordingBackend
	client  *client.Client
	svc     *AuthService
}

// recordingBackend keeps every pair written through the store, so tests can
// see tokens the store has already forgotten.
type recordingBackend struct {
	storage.Backend

	mu    sync.Mutex
	saved []models.Credentials
}

func (b *recordingBackend) Save(ctx context.Context, profile string, creds models.Credentials) error {
	b.mu.Lock()
	b.saved = append(b.saved, creds)
	b.mu.Unlock()
	return b.Backend.Save(ctx, profile, creds)
}

func (b *recordingBackend) lastSaved() models.Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saved) == 0 {
		return models.Credentials{}
	}
	return b.saved[len(b.saved)-1]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	serverLog := zap.NewNop().Sugar()

	tokens := backend.NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("test-secret-0123456789"),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	})
	dir := backend.NewDirectory(tokens, serverLog)
	a, err := api.NewAPI(controller.NewController(serverLog, dir), dir, serverLog, &util.ServerConfig{})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	log := zaptest.NewLogger(t).Sugar()
	persist := &recordingBackend{Backend: memory.NewCredentialRepository(log)}
	store := storage.NewCredentialStore(persist, "test", log)
	c, err := client.New(client.Config{
		BaseURL:   srv.URL + "/api",
		Timeout:   5 * time.Second,
		SignInURL: "/giris",
	}, store, log)
	require.NoError(t, err)

	svc := NewAuthService(c, store, c.Invalidations(), log)
	t.Cleanup(svc.Close)

	return &harness{dir: dir, store: store, persist: persist, client: c, svc: svc}
}

func (h *harness) register(t *testing.T) models.TokenPairResponse {
	t.Helper()
	resp, err := h.svc.Register(testCtx, models.RegisterRequest{
		Email:     testEmail,
		Password:  testPassword,
		Password2: testPassword,
		FirstName: "Ayse",
		LastName:  "Yilmaz",
	})
	require.NoError(t, err)
	return resp
}

func TestAuthService_Register_AuthenticatesImmediately(t *testing.T) {
	h := newHarness(t)

	resp := h.register(t)

	assert.Equal(t, resp.Token, h.store.AccessToken())
	assert.Equal(t, resp.Refresh, h.store.RefreshToken())

	sess := h.svc.Session()
	assert.True(t, sess.IsAuthenticated)
	assert.False(t, sess.Loading)
	require.NotNil(t, sess.User)
	assert.Equal(t, testEmail, sess.User.Email)
}

func TestAuthService_Register_FieldErrorsSurfaceVerbatim(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Register(testCtx, models.RegisterRequest{Email: testEmail, Password: "short", Password2: "short"})
	require.Error(t, err)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.FieldErrors()["password"][0], "too short")
	assert.True(t, h.store.Get().IsZero())
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	require.NoError(t, h.svc.Logout(testCtx))

	_, err := h.svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: "nope-nope-nope"})
	require.Error(t, err)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message())
	assert.NotErrorIs(t, err, client.ErrRefreshFailed)
	assert.True(t, h.store.Get().IsZero())
}

func TestAuthService_Login_TwoFactorChallenge(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	_, err := h.svc.EnableTwoFactor(testCtx)
	require.NoError(t, err)
	require.NoError(t, h.svc.Logout(testCtx))

	res, err := h.svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor())
	assert.Equal(t, models.TwoFactorRequired, res.Outcome)
	assert.Equal(t, testEmail, res.Email)
	assert.True(t, h.store.Get().IsZero())
	assert.False(t, h.svc.Session().IsAuthenticated)

	code, ok := h.dir.LastTwoFactorCode(testEmail)
	require.True(t, ok)

	_, err = h.svc.VerifyTwoFactor(testCtx, testEmail, "not-it")
	require.Error(t, err)
	assert.True(t, h.store.Get().IsZero())

	resp, err := h.svc.VerifyTwoFactor(testCtx, testEmail, code)
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{AccessToken: resp.Token, RefreshToken: resp.Refresh}, h.store.Get())
	assert.True(t, h.svc.Session().IsAuthenticated)
}

func TestAuthService_Login_Success(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	require.NoError(t, h.svc.Logout(testCtx))

	res, err := h.svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.LoginSucceeded, res.Outcome)
	assert.Equal(t, res.Credentials, h.store.Get())
	require.NotNil(t, res.User)
	assert.Equal(t, "Ayse", res.User.FirstName)
}

func TestAuthService_ChangePassword_RotatesCredentials(t *testing.T) {
	h := newHarness(t)
	old := h.register(t)

	resp, err := h.svc.ChangePassword(testCtx, models.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "battery-staple-2",
	})
	require.NoError(t, err)

	assert.NotEqual(t, old.Token, resp.Token)
	assert.Equal(t, models.Credentials{AccessToken: resp.Token, RefreshToken: resp.Refresh}, h.store.Get())

	_, err = h.dir.Authenticate(old.Token)
	assert.Error(t, err)

	user, err := h.svc.GetCurrentUser(testCtx)
	require.NoError(t, err)
	assert.Equal(t, testEmail, user.Email)
	assert.Equal(t, resp.Token, h.store.AccessToken())
}

func TestAuthService_ChangePassword_WrongCurrent(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t)

	_, err := h.svc.ChangePassword(testCtx, models.ChangePasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "battery-staple-2",
	})
	require.Error(t, err)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"Current password is incorrect."}, apiErr.FieldErrors()["current_password"])
	assert.Equal(t, pair.Token, h.store.AccessToken())
}

func TestAuthService_ExpiredAccessToken_RefreshedTransparently(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t)
	h.dir.InvalidateAccessTokens(testEmail)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.GetCurrentUser(testCtx)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.NotEqual(t, pair.Token, h.store.AccessToken())
	// The backend rotates refresh tokens on every refresh.
	assert.NotEqual(t, pair.Refresh, h.store.RefreshToken())
	assert.True(t, h.svc.Session().IsAuthenticated)
}

func TestAuthService_RefreshFailure_InvalidatesSession(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t)

	var got client.Invalidation
	unsubscribe := h.client.Invalidations().Subscribe(func(inv client.Invalidation) { got = inv })
	defer unsubscribe()

	h.dir.InvalidateAccessTokens(testEmail)
	require.NoError(t, h.store.Set(testCtx, pair.Token, "bogus.refresh"))

	_, err := h.svc.GetCurrentUser(testCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrRefreshFailed)

	assert.True(t, h.store.Get().IsZero())
	assert.Equal(t, "/giris", got.SignInURL)

	sess := h.svc.Session()
	assert.False(t, sess.IsAuthenticated)
	assert.Nil(t, sess.User)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	h := newHarness(t)
	h.register(t)

	_, err := h.svc.DeleteAccount(testCtx, "wrong-password")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPassword)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Password is incorrect", apiErr.Message())
	assert.False(t, h.store.Get().IsZero())

	_, err = h.svc.DeleteAccount(testCtx, testPassword)
	require.NoError(t, err)
	assert.True(t, h.store.Get().IsZero())
	assert.False(t, h.svc.Session().IsAuthenticated)

	_, err = h.svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: testPassword})
	assert.True(t, client.IsUnauthorized(err))
}

func TestAuthService_Logout_RevokesRefreshToken(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t)

	require.NoError(t, h.svc.Logout(testCtx))
	assert.True(t, h.store.Get().IsZero())
	assert.False(t, h.svc.Session().IsAuthenticated)

	_, err := h.dir.Refresh(pair.Refresh)
	assert.ErrorIs(t, err, backend.ErrTokenRevoked)
}

func TestAuthService_Logout_WithExpiredAccessTokenRevokesRotatedToken(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t)
	h.dir.InvalidateAccessTokens(testEmail)

	require.NoError(t, h.svc.Logout(testCtx))
	assert.True(t, h.store.Get().IsZero())

	rotated := h.persist.lastSaved().RefreshToken
	require.NotEmpty(t, rotated)
	require.NotEqual(t, pair.Refresh, rotated, "logout should have gone through a refresh")

	_, err := h.dir.Refresh(rotated)
	assert.ErrorIs(t, err, backend.ErrTokenRevoked)
	_, err = h.dir.Refresh(pair.Refresh)
	assert.ErrorIs(t, err, backend.ErrTokenRevoked)
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	require.NoError(t, h.svc.Logout(testCtx))

	_, err := h.svc.RequestPasswordReset(testCtx, "nobody@b.com")
	require.NoError(t, err)
	_, err = h.svc.RequestPasswordReset(testCtx, testEmail)
	require.NoError(t, err)

	token, ok := h.dir.LastResetToken(testEmail)
	require.True(t, ok)

	_, err = h.svc.ResetPassword(testCtx, "bogus", "brand-new-pass")
	assert.Equal(t, http.StatusBadRequest, client.StatusCode(err))

	_, err = h.svc.ResetPassword(testCtx, token, "brand-new-pass")
	require.NoError(t, err)

	_, err = h.svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: "brand-new-pass"})
	assert.NoError(t, err)
}

func TestAuthService_VerifyEmail_StoresCredentials(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	require.NoError(t, h.svc.Logout(testCtx))

	_, err := h.svc.ResendVerificationEmail(testCtx, testEmail)
	require.NoError(t, err)
	token, ok := h.dir.LastVerificationToken(testEmail)
	require.True(t, ok)

	resp, err := h.svc.VerifyEmail(testCtx, token)
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.IsEmailVerified)
	assert.Equal(t, resp.Token, h.store.AccessToken())
	assert.True(t, h.svc.Session().IsAuthenticated)
}

func TestAuthService_UpdateProfile_RefreshesState(t *testing.T) {
	h := newHarness(t)
	h.register(t)

	var seen []models.Session
	unsubscribe := h.svc.State().Subscribe(func(s models.Session) { seen = append(seen, s) })
	defer unsubscribe()

	city := "Istanbul"
	user, err := h.svc.UpdateProfile(testCtx, models.ProfileUpdate{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Istanbul", user.City)
	assert.Equal(t, "Ayse", user.FirstName)

	require.Len(t, seen, 1)
	assert.Equal(t, "Istanbul", seen[0].User.City)
}

func TestAuthService_TwoFactorToggleUpdatesCachedUser(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	before := h.svc.Session().User

	_, err := h.svc.EnableTwoFactor(testCtx)
	require.NoError(t, err)
	assert.True(t, h.svc.Session().User.TwoFactorEnabled)
	assert.False(t, before.TwoFactorEnabled)

	_, err = h.svc.DisableTwoFactor(testCtx)
	require.NoError(t, err)
	assert.False(t, h.svc.Session().User.TwoFactorEnabled)
}

func TestAuthService_CheckAuth(t *testing.T) {
	h := newHarness(t)

	sess := h.svc.CheckAuth(testCtx)
	assert.Equal(t, models.Session{}, sess)

	h.register(t)
	fresh := NewAuthService(h.client, h.store, nil, zap.NewNop().Sugar())
	assert.True(t, fresh.Session().Loading)

	sess = fresh.CheckAuth(testCtx)
	assert.True(t, sess.IsAuthenticated)
	assert.False(t, sess.Loading)
	assert.Equal(t, testEmail, sess.User.Email)
}

// failingAPI answers every call with a transport error.
type failingAPI struct {
	calls int
}

var errNetwork = errors.New("dial tcp: connection refused")

func (f *failingAPI) Get(context.Context, string, any, ...client.RequestOption) error {
	f.calls++
	return errNetwork
}

func (f *failingAPI) Post(context.Context, string, any, any, ...client.RequestOption) error {
	f.calls++
	return errNetwork
}

func (f *failingAPI) Patch(context.Context, string, any, any, ...client.RequestOption) error {
	f.calls++
	return errNetwork
}

func TestAuthService_Logout_ClearsEvenWhenServerFails(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)
	require.NoError(t, store.Set(testCtx, "a", "r"))

	fake := &failingAPI{}
	svc := NewAuthService(fake, store, nil, log)

	assert.NoError(t, svc.Logout(testCtx))
	assert.Equal(t, 1, fake.calls)
	assert.True(t, store.Get().IsZero())
	assert.Equal(t, models.Session{}, svc.Session())
}

func TestAuthService_Logout_SkipsServerWithoutRefreshToken(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)

	fake := &failingAPI{}
	svc := NewAuthService(fake, store, nil, log)

	assert.NoError(t, svc.Logout(testCtx))
	assert.Zero(t, fake.calls)
}

func TestAuthService_CheckAuth_NoTokenNoNetwork(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)

	fake := &failingAPI{}
	svc := NewAuthService(fake, store, nil, log)

	sess := svc.CheckAuth(testCtx)
	assert.Equal(t, models.Session{}, sess)
	assert.Zero(t, fake.calls)
}

func TestAuthService_CheckAuth_ProfileFailureClears(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)
	require.NoError(t, store.Set(testCtx, "a", "r"))

	svc := NewAuthService(&failingAPI{}, store, nil, log)

	sess := svc.CheckAuth(testCtx)
	assert.False(t, sess.IsAuthenticated)
	assert.True(t, store.Get().IsZero())
}

func TestAuthService_Login_UnexpectedResponse(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)
	svc := NewAuthService(&emptyLoginAPI{}, store, nil, log)

	_, err := svc.Login(testCtx, models.LoginRequest{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, err, ErrUnexpectedLoginResponse)
	assert.True(t, store.Get().IsZero())
}

type emptyLoginAPI struct{ failingAPI }

func (*emptyLoginAPI) Post(_ context.Context, _ string, _, out any, _ ...client.RequestOption) error {
	*out.(*models.LoginResponse) = models.LoginResponse{Message: "hello"}
	return nil
}

func TestAuthService_ChangePassword_MissingPairDropsSession(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewCredentialStore(memory.NewCredentialRepository(log), "test", log)
	require.NoError(t, store.Set(testCtx, "a", "r"))

	svc := NewAuthService(&emptyResponseAPI{}, store, nil, log)

	_, err := svc.ChangePassword(testCtx, models.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "new-password-1"})
	assert.ErrorIs(t, err, ErrMissingTokenPair)
	assert.True(t, store.Get().IsZero())
	assert.False(t, svc.Session().IsAuthenticated)
}

// emptyResponseAPI answers every POST with 2xx and an empty body.
type emptyResponseAPI struct{ failingAPI }

func (*emptyResponseAPI) Post(context.Context, string, any, any, ...client.RequestOption) error {
	return nil
}
