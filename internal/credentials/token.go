package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is the fixed session token lifetime (§4.B).
const SessionDuration = 30 * 24 * time.Hour

// Errors returned by TokenService.Verify; callers map them to the HTTP
// codes §4.B specifies (signature/expiry -> 403).
var (
	ErrTokenInvalid = errors.New("credentials: invalid session token")
	ErrTokenExpired = errors.New("credentials: session token expired")
)

// Claims is the session token payload. device_uuid is the core
// anti-token-theft invariant: every authenticated request must present an
// X-Device-UUID header matching this claim.
type Claims struct {
	jwt.RegisteredClaims

	UserID     uint   `json:"user_id"`
	UserUUID   string `json:"user_uuid"`
	Email      string `json:"email"`
	DeviceUUID string `json:"device_uuid"`
}

// TokenService mints and verifies HMAC-signed session tokens.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService builds a TokenService from the configured JWT_SECRET.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: "photosync"}
}

// Issue mints a session token bound to the given identity, valid for
// SessionDuration.
func (s *TokenService) Issue(userID uint, userUUID, email, deviceUUID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userUUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionDuration)),
		},
		UserID:     userID,
		UserUUID:   userUUID,
		Email:      email,
		DeviceUUID: deviceUUID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, returning its claims. It does
// not check device binding; callers compare Claims.DeviceUUID against the
// request's X-Device-UUID header themselves (see internal/api/middleware).
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
