package backend

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/storefront/internal/util"
)

const refreshTokenParts = 2

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

type TokenService struct {
	JwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		JwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

type jwtClaims struct {
	UserID string `json:"uid"`
	// Epoch is bumped on password change; older access tokens stop working.
	Epoch int `json:"epoch"`
	jwt.RegisteredClaims
}

// CreateAccessToken создает SHA512 signed access токен с новым JTI
func (ts *TokenService) CreateAccessToken(userID string, epoch int, now time.Time) (string, error) {
	claims := &jwtClaims{
		UserID: userID,
		Epoch:  epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.JwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// CreateRefreshToken returns selector.verifier; only the verifier hash is kept
// server side.
func (ts *TokenService) CreateRefreshToken() (token, selector, verifierHash string, err error) {
	rawToken := make([]byte, util.RawTokenLength)
	if _, err = rand.Read(rawToken); err != nil {
		return "", "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	selector = base64.RawURLEncoding.EncodeToString(rawToken[:16])
	verifier := base64.RawURLEncoding.EncodeToString(rawToken[16:])

	hashedVerifierBytes := sha256.Sum256([]byte(verifier))
	verifierHash = hex.EncodeToString(hashedVerifierBytes[:])

	token = selector + "." + verifier

	return token, selector, verifierHash, nil
}

func (ts *TokenService) RefreshExpiry(now time.Time) time.Time {
	return now.Add(ts.refreshTTL)
}

func splitRefreshToken(token string) (selector, verifier string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != refreshTokenParts || parts[0] == "" || parts[1] == "" {
		return "", "", ErrTokenMalformed
	}
	return parts[0], parts[1], nil
}

func (ts *TokenService) ValidateRefreshToken(token, verifierHash string) error {
	_, verifier, err := splitRefreshToken(token)
	if err != nil {
		return err
	}

	hashedVerifierBytes, err := hex.DecodeString(verifierHash)
	if err != nil {
		return fmt.Errorf("failed to decode stored hash: %w", err)
	}

	newHashBytes := sha256.Sum256([]byte(verifier))

	if subtle.ConstantTimeCompare(newHashBytes[:], hashedVerifierBytes) != 1 {
		return ErrTokenInvalid
	}

	return nil
}

// ParseAccessToken checks signature and expiry and returns the user id and
// epoch the token was minted for.
func (ts *TokenService) ParseAccessToken(token string) (string, int, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.JwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", 0, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return "", 0, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		}
		return "", 0, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return "", 0, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.UserID == "" {
		return "", 0, ErrTokenInvalid
	}

	return claims.UserID, claims.Epoch, nil
}
