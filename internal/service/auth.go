package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/client"
	"github.com/rryowa/storefront/internal/models"
)

var (
	ErrInvalidPassword         = errors.New("invalid password")
	ErrUnexpectedLoginResponse = errors.New("login response carries neither tokens nor a second-factor challenge")
	ErrMissingTokenPair        = errors.New("response carries no token pair")
)

// API is the slice of the authenticated pipeline the facade calls through.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.RequestOption) error
	Post(ctx context.Context, path string, in, out any, opts ...client.RequestOption) error
	Patch(ctx context.Context, path string, in, out any, opts ...client.RequestOption) error
}

type CredentialStore interface {
	Get() models.Credentials
	Set(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

type InvalidationSubscriber interface {
	Subscribe(fn func(client.Invalidation)) (unsubscribe func())
}

// AuthService is the session facade the UI layer talks to. Every call goes
// through the interceptor pipeline; backend error payloads are returned as
// *client.APIError without rewording.
type AuthService struct {
	api   API
	store CredentialStore
	state *SessionState
	log   *zap.SugaredLogger

	unsubscribe func()
}

func NewAuthService(api API, store CredentialStore, invalidations InvalidationSubscriber, log *zap.SugaredLogger) *AuthService {
	s := &AuthService{
		api:   api,
		store: store,
		state: NewSessionState(),
		log:   log,
	}
	if invalidations != nil {
		s.unsubscribe = invalidations.Subscribe(func(inv client.Invalidation) {
			s.log.Infow("Session invalidated", "sign_in_url", inv.SignInURL, "reason", inv.Reason)
			s.state.setAnonymous()
		})
	}
	return s
}

// Close detaches the facade from the invalidation signal.
func (s *AuthService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *AuthService) State() *SessionState { return s.state }

func (s *AuthService) Session() models.Session { return s.state.Snapshot() }

// CheckAuth rebuilds the session from stored credentials. Without an access
// token nothing is sent; a failing profile call drops the credentials.
func (s *AuthService) CheckAuth(ctx context.Context) models.Session {
	if s.store.Get().AccessToken == "" {
		s.state.setAnonymous()
		return s.state.Snapshot()
	}

	user, err := s.GetCurrentUser(ctx)
	if err != nil {
		s.log.Infow("Stored session rejected", "error", err)
		s.clearCredentials(ctx)
		s.state.setAnonymous()
		return s.state.Snapshot()
	}

	s.state.setUser(user)
	return s.state.Snapshot()
}

// Login stores the issued pair, or returns a TwoFactorRequired result without
// touching the store when the backend asks for a second factor.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.LoginResult, error) {
	var resp models.LoginResponse
	if err := s.api.Post(ctx, models.PathLogin, req, &resp, client.WithoutRefresh()); err != nil {
		return models.LoginResult{}, err
	}

	if resp.Requires2FA {
		email := resp.Email
		if email == "" {
			email = req.Email
		}
		return models.LoginResult{
			Outcome: models.TwoFactorRequired,
			Email:   email,
			Message: resp.Message,
		}, nil
	}

	creds, ok := models.TokenPairResponse{Token: resp.Token, Refresh: resp.Refresh}.Credentials()
	if !ok {
		return models.LoginResult{}, ErrUnexpectedLoginResponse
	}
	s.storeCredentials(ctx, creds)
	s.state.setUser(resp.User)

	return models.LoginResult{
		Outcome:     models.LoginSucceeded,
		Credentials: creds,
		User:        resp.User,
		Message:     resp.Message,
	}, nil
}

func (s *AuthService) VerifyTwoFactor(ctx context.Context, email openapi_types.Email, code string) (models.TokenPairResponse, error) {
	var resp models.TokenPairResponse
	req := models.VerifyTwoFactorRequest{Email: email, Code: code}
	if err := s.api.Post(ctx, models.PathTwoFactorVerify, req, &resp, client.WithoutRefresh()); err != nil {
		return models.TokenPairResponse{}, err
	}
	s.adoptTokenPair(ctx, resp)
	return resp, nil
}

// Register authenticates right away when the backend hands out a pair.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (models.TokenPairResponse, error) {
	var resp models.TokenPairResponse
	if err := s.api.Post(ctx, models.PathRegister, req, &resp, client.WithoutRefresh()); err != nil {
		return models.TokenPairResponse{}, err
	}
	s.adoptTokenPair(ctx, resp)
	return resp, nil
}

// Logout asks the backend to revoke the refresh token, then clears local
// credentials whatever the outcome of that call.
func (s *AuthService) Logout(ctx context.Context) error {
	defer s.state.setAnonymous()

	if s.store.Get().RefreshToken != "" {
		// Read at dispatch: a replay after a refresh must revoke the rotated token.
		body := client.WithBodyFrom(func() any {
			return models.LogoutRequest{RefreshToken: s.store.Get().RefreshToken}
		})
		if err := s.api.Post(ctx, models.PathLogout, nil, nil, body); err != nil {
			s.log.Warnw("Server-side logout failed, clearing local session anyway", "error", err)
		}
	}

	if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.api.Get(ctx, models.PathProfile, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := s.api.Patch(ctx, models.PathProfile, update, &user); err != nil {
		return nil, err
	}
	s.state.setUser(&user)
	return &user, nil
}

// ChangePassword rotates the stored pair: the backend revokes every token
// issued before the change, so a success without a new pair ends the session.
func (s *AuthService) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) (models.TokenPairResponse, error) {
	var resp models.TokenPairResponse
	if err := s.api.Post(ctx, models.PathChangePassword, req, &resp); err != nil {
		return models.TokenPairResponse{}, err
	}

	creds, ok := resp.Credentials()
	if !ok {
		s.clearCredentials(ctx)
		s.state.setAnonymous()
		return models.TokenPairResponse{}, fmt.Errorf("change password: %w", ErrMissingTokenPair)
	}
	s.storeCredentials(ctx, creds)
	return resp, nil
}

// DeleteAccount maps the backend's 400 to ErrInvalidPassword while keeping the
// backend message reachable through the wrapped *client.APIError.
func (s *AuthService) DeleteAccount(ctx context.Context, password string) (models.MessageResponse, error) {
	var resp models.MessageResponse
	err := s.api.Post(ctx, models.PathDeleteAccount, models.DeleteAccountRequest{Password: password}, &resp)
	if err != nil {
		if client.StatusCode(err) == http.StatusBadRequest {
			return models.MessageResponse{}, fmt.Errorf("%w: %w", ErrInvalidPassword, err)
		}
		return models.MessageResponse{}, err
	}

	s.clearCredentials(ctx)
	s.state.setAnonymous()
	return resp, nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email openapi_types.Email) (models.MessageResponse, error) {
	var resp models.MessageResponse
	err := s.api.Post(ctx, models.PathPasswordReset, models.EmailRequest{Email: email}, &resp, client.WithoutRefresh())
	return resp, err
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (models.MessageResponse, error) {
	var resp models.MessageResponse
	req := models.PasswordResetConfirmRequest{Token: token, NewPassword: newPassword}
	err := s.api.Post(ctx, models.PathPasswordResetConfirm, req, &resp, client.WithoutRefresh())
	return resp, err
}

// VerifyEmail signs the user in when the backend answers with a token pair.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (models.TokenPairResponse, error) {
	var resp models.TokenPairResponse
	err := s.api.Post(ctx, models.PathVerifyEmail, models.VerifyEmailRequest{Token: token}, &resp, client.WithoutRefresh())
	if err != nil {
		return models.TokenPairResponse{}, err
	}
	s.adoptTokenPair(ctx, resp)
	return resp, nil
}

func (s *AuthService) ResendVerificationEmail(ctx context.Context, email openapi_types.Email) (models.MessageResponse, error) {
	var resp models.MessageResponse
	err := s.api.Post(ctx, models.PathResendVerification, models.EmailRequest{Email: email}, &resp, client.WithoutRefresh())
	return resp, err
}

func (s *AuthService) EnableTwoFactor(ctx context.Context) (models.MessageResponse, error) {
	return s.setTwoFactor(ctx, models.PathTwoFactorEnable, true)
}

func (s *AuthService) DisableTwoFactor(ctx context.Context) (models.MessageResponse, error) {
	return s.setTwoFactor(ctx, models.PathTwoFactorDisable, false)
}

func (s *AuthService) setTwoFactor(ctx context.Context, path string, enabled bool) (models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := s.api.Post(ctx, path, nil, &resp); err != nil {
		return models.MessageResponse{}, err
	}
	s.state.patchUser(func(u *models.User) { u.TwoFactorEnabled = enabled })
	return resp, nil
}

func (s *AuthService) adoptTokenPair(ctx context.Context, resp models.TokenPairResponse) {
	creds, ok := resp.Credentials()
	if !ok {
		return
	}
	s.storeCredentials(ctx, creds)
	s.state.setUser(resp.User)
}

// storeCredentials keeps the session usable even if the durable backend
// rejects the write; the store already holds the pair in memory.
func (s *AuthService) storeCredentials(ctx context.Context, creds models.Credentials) {
	if err := s.store.Set(ctx, creds.AccessToken, creds.RefreshToken); err != nil {
		s.log.Warnw("Credentials kept in memory only", "error", err)
	}
}

func (s *AuthService) clearCredentials(ctx context.Context) {
	if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.Warnw("Persisted credentials not cleared", "error", err)
	}
}
