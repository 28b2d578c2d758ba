package verification

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
)

// scopeVerified marks a session token as having passed CAPTCHA verification.
const scopeVerified = "captcha_verified"

// SessionIssuer mints and checks short-lived session tokens handed out after
// a successful CAPTCHA verification. Tokens are HMAC-signed and expire on
// their own; nothing is stored server side.
type SessionIssuer struct {
	signingKey []byte
	ttl        time.Duration
	clock      detection.Clock
}

// NewSessionIssuer creates a session issuer. A zero ttl defaults to the
// thirty-minute verification grace period.
func NewSessionIssuer(signingKey []byte, ttl time.Duration, clock detection.Clock) *SessionIssuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if clock == nil {
		clock = detection.RealClock{}
	}

	return &SessionIssuer{
		signingKey: signingKey,
		ttl:        ttl,
		clock:      clock,
	}
}

type sessionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issue mints a verified-session token bound to the given network address.
func (s *SessionIssuer) Issue(address string) (string, error) {
	now := s.clock.Now()
	claims := sessionClaims{
		Scope: scopeVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", domainerrors.NewInternalError("signing session token failed").WithCause(err)
	}
	return signed, nil
}

// TTL returns the configured session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Validate checks a session token and returns the address it was issued to.
func (s *SessionIssuer) Validate(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domainerrors.NewValidationError("BAD_SIGNING_METHOD", "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return "", domainerrors.NewValidationError("INVALID_SESSION", "session token is invalid or expired").WithCause(err)
	}

	if !token.Valid || claims.Scope != scopeVerified {
		return "", domainerrors.NewValidationError("INVALID_SESSION", "session token is invalid or expired")
	}
	return claims.Subject, nil
}
