package backend

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/storefront/internal/models"
)

const (
	minPasswordLength = 8
	twoFactorCodeMax  = 1000000
	passwordHashCost  = bcrypt.MinCost
)

var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrInvalidPassword          = errors.New("password is incorrect")
	ErrInvalidTwoFactorCode     = errors.New("invalid or expired verification code")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
)

// FieldError is a validation failure tied to one request field.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Msg }

type TokenPair struct {
	Access  string
	Refresh string
}

type account struct {
	user         models.User
	passwordHash []byte
	epoch        int
}

type refreshRecord struct {
	userID       string
	verifierHash string
	expiresAt    time.Time
}

// Directory is the in-memory account database of the development backend.
type Directory struct {
	mu     sync.Mutex
	tokens *TokenService
	log    *zap.SugaredLogger
	now    func() time.Time

	byEmail map[string]*account
	byID    map[string]*account
	refresh map[string]refreshRecord // by selector

	twoFactorCodes     map[string]string // email -> code
	resetTokens        map[string]string // token -> user id
	verificationTokens map[string]string // token -> user id
	lastReset          map[string]string // email -> token
	lastVerification   map[string]string // email -> token
}

func NewDirectory(tokens *TokenService, log *zap.SugaredLogger) *Directory {
	return &Directory{
		tokens:             tokens,
		log:                log,
		now:                time.Now,
		byEmail:            make(map[string]*account),
		byID:               make(map[string]*account),
		refresh:            make(map[string]refreshRecord),
		twoFactorCodes:     make(map[string]string),
		resetTokens:        make(map[string]string),
		verificationTokens: make(map[string]string),
		lastReset:          make(map[string]string),
		lastVerification:   make(map[string]string),
	}
}

func emailKey(email openapi_types.Email) string {
	return strings.ToLower(strings.TrimSpace(string(email)))
}

func checkPassword(field, password string) error {
	if len(password) < minPasswordLength {
		return &FieldError{Field: field, Msg: fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength)}
	}
	return nil
}

func (d *Directory) Register(req models.RegisterRequest) (models.User, TokenPair, error) {
	key := emailKey(req.Email)
	if key == "" {
		return models.User{}, TokenPair{}, &FieldError{Field: "email", Msg: "This field may not be blank."}
	}
	if req.Password2 != "" && req.Password != req.Password2 {
		return models.User{}, TokenPair{}, &FieldError{Field: "password2", Msg: "Password fields didn't match."}
	}
	if err := checkPassword("password", req.Password); err != nil {
		return models.User{}, TokenPair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordHashCost)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byEmail[key]; ok {
		return models.User{}, TokenPair{}, &FieldError{Field: "email", Msg: "user with this email already exists."}
	}

	acc := &account{
		user: models.User{
			ID:         uuid.NewString(),
			Email:      openapi_types.Email(key),
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Phone:      req.Phone,
			DateJoined: d.now().UTC(),
		},
		passwordHash: hash,
	}
	d.byEmail[key] = acc
	d.byID[acc.user.ID] = acc
	d.issueVerificationLocked(acc)

	pair, err := d.issuePairLocked(acc)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return acc.user, pair, nil
}

// Login returns a token pair, or challenged=true when the account has a
// second factor; the pending code is then available from LastTwoFactorCode.
func (d *Directory) Login(email openapi_types.Email, password string) (models.User, TokenPair, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byEmail[emailKey(email)]
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return models.User{}, TokenPair{}, false, ErrInvalidCredentials
	}

	if acc.user.TwoFactorEnabled {
		code, err := newTwoFactorCode()
		if err != nil {
			return models.User{}, TokenPair{}, false, err
		}
		d.twoFactorCodes[emailKey(email)] = code
		d.log.Infow("Two-factor code issued", "email", acc.user.Email, "code", code)
		return acc.user, TokenPair{}, true, nil
	}

	pair, err := d.issuePairLocked(acc)
	if err != nil {
		return models.User{}, TokenPair{}, false, err
	}
	return acc.user, pair, false, nil
}

func (d *Directory) VerifyTwoFactor(email openapi_types.Email, code string) (models.User, TokenPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := emailKey(email)
	want, ok := d.twoFactorCodes[key]
	if !ok || want != code {
		return models.User{}, TokenPair{}, ErrInvalidTwoFactorCode
	}
	acc, ok := d.byEmail[key]
	if !ok {
		return models.User{}, TokenPair{}, ErrInvalidTwoFactorCode
	}
	delete(d.twoFactorCodes, key)

	pair, err := d.issuePairLocked(acc)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return acc.user, pair, nil
}

// Refresh rotates: the presented refresh token is revoked and a new pair is
// issued.
func (d *Directory) Refresh(token string) (TokenPair, error) {
	selector, _, err := splitRefreshToken(token)
	if err != nil {
		return TokenPair{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.refresh[selector]
	if !ok {
		return TokenPair{}, ErrTokenRevoked
	}
	if err := d.tokens.ValidateRefreshToken(token, rec.verifierHash); err != nil {
		return TokenPair{}, err
	}
	delete(d.refresh, selector)
	if d.now().After(rec.expiresAt) {
		return TokenPair{}, ErrTokenExpired
	}

	acc, ok := d.byID[rec.userID]
	if !ok {
		return TokenPair{}, ErrUserNotFound
	}
	return d.issuePairLocked(acc)
}

func (d *Directory) Revoke(token string) error {
	selector, _, err := splitRefreshToken(token)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.refresh[selector]
	if !ok {
		return ErrTokenRevoked
	}
	if err := d.tokens.ValidateRefreshToken(token, rec.verifierHash); err != nil {
		return err
	}
	delete(d.refresh, selector)
	return nil
}

// Authenticate resolves a bearer access token to its user id.
func (d *Directory) Authenticate(accessToken string) (string, error) {
	userID, epoch, err := d.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	if acc.epoch != epoch {
		return "", ErrTokenRevoked
	}
	return userID, nil
}

func (d *Directory) Profile(userID string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return acc.user, nil
}

func (d *Directory) UpdateProfile(userID string, upd models.ProfileUpdate) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}

	u := &acc.user
	for dst, src := range map[*string]*string{
		&u.FirstName:    upd.FirstName,
		&u.LastName:     upd.LastName,
		&u.Phone:        upd.Phone,
		&u.AddressTitle: upd.AddressTitle,
		&u.Address:      upd.Address,
		&u.City:         upd.City,
		&u.District:     upd.District,
		&u.PostalCode:   upd.PostalCode,
	} {
		if src != nil {
			*dst = *src
		}
	}
	return acc.user, nil
}

// ChangePassword revokes every token the user holds and issues a fresh pair.
func (d *Directory) ChangePassword(userID, current, next string) (TokenPair, error) {
	if err := checkPassword("new_password", next); err != nil {
		return TokenPair{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), passwordHashCost)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return TokenPair{}, ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(current)) != nil {
		return TokenPair{}, &FieldError{Field: "current_password", Msg: "Current password is incorrect."}
	}

	acc.passwordHash = hash
	d.revokeAllLocked(acc)
	return d.issuePairLocked(acc)
}

func (d *Directory) DeleteAccount(userID, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return ErrInvalidPassword
	}

	d.revokeAllLocked(acc)
	key := emailKey(acc.user.Email)
	delete(d.byEmail, key)
	delete(d.byID, userID)
	delete(d.twoFactorCodes, key)
	return nil
}

// RequestPasswordReset never reports whether the address is known.
func (d *Directory) RequestPasswordReset(email openapi_types.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byEmail[emailKey(email)]
	if !ok {
		return nil
	}

	token := uuid.NewString()
	d.resetTokens[token] = acc.user.ID
	d.lastReset[emailKey(email)] = token
	d.log.Infow("Password reset token issued", "email", acc.user.Email, "token", token)
	return nil
}

func (d *Directory) ResetPassword(token, next string) error {
	if err := checkPassword("new_password", next); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), passwordHashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok := d.resetTokens[token]
	if !ok {
		return ErrInvalidResetToken
	}
	delete(d.resetTokens, token)

	acc, ok := d.byID[userID]
	if !ok {
		return ErrInvalidResetToken
	}
	acc.passwordHash = hash
	d.revokeAllLocked(acc)
	return nil
}

// VerifyEmail marks the address verified and signs the user in.
func (d *Directory) VerifyEmail(token string) (models.User, TokenPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok := d.verificationTokens[token]
	if !ok {
		return models.User{}, TokenPair{}, ErrInvalidVerificationToken
	}
	delete(d.verificationTokens, token)

	acc, ok := d.byID[userID]
	if !ok {
		return models.User{}, TokenPair{}, ErrInvalidVerificationToken
	}
	acc.user.IsEmailVerified = true

	pair, err := d.issuePairLocked(acc)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return acc.user, pair, nil
}

func (d *Directory) ResendVerification(email openapi_types.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byEmail[emailKey(email)]
	if !ok || acc.user.IsEmailVerified {
		return nil
	}
	d.issueVerificationLocked(acc)
	return nil
}

func (d *Directory) SetTwoFactor(userID string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	acc.user.TwoFactorEnabled = enabled
	return nil
}

// InvalidateAccessTokens makes every access token of the user fail with 401
// while leaving refresh tokens usable, as if they had expired.
func (d *Directory) InvalidateAccessTokens(email openapi_types.Email) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if acc, ok := d.byEmail[emailKey(email)]; ok {
		acc.epoch++
	}
}

func (d *Directory) LastTwoFactorCode(email openapi_types.Email) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	code, ok := d.twoFactorCodes[emailKey(email)]
	return code, ok
}

func (d *Directory) LastResetToken(email openapi_types.Email) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	token, ok := d.lastReset[emailKey(email)]
	return token, ok
}

func (d *Directory) LastVerificationToken(email openapi_types.Email) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	token, ok := d.lastVerification[emailKey(email)]
	return token, ok
}

func (d *Directory) issuePairLocked(acc *account) (TokenPair, error) {
	now := d.now()

	access, err := d.tokens.CreateAccessToken(acc.user.ID, acc.epoch, now)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, selector, verifierHash, err := d.tokens.CreateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	d.refresh[selector] = refreshRecord{
		userID:       acc.user.ID,
		verifierHash: verifierHash,
		expiresAt:    d.tokens.RefreshExpiry(now),
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (d *Directory) revokeAllLocked(acc *account) {
	for selector, rec := range d.refresh {
		if rec.userID == acc.user.ID {
			delete(d.refresh, selector)
		}
	}
	acc.epoch++
}

func (d *Directory) issueVerificationLocked(acc *account) {
	token := uuid.NewString()
	d.verificationTokens[token] = acc.user.ID
	d.lastVerification[emailKey(acc.user.Email)] = token
	d.log.Infow("Email verification token issued", "email", acc.user.Email, "token", token)
}

func newTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(twoFactorCodeMax))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
