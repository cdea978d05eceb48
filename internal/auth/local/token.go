package local

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"peoplehub/internal/auth/models"
	dErrors "peoplehub/pkg/domain-errors"
)

// Claims are the claims of a local access token. The subject is the identity id.
type Claims struct {
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
}

func NewTokenIssuer(signingKey, issuer string) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs an access token for user valid from now for ttl.
func (s *TokenIssuer) Issue(user *models.User, now time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		Email:    user.Email,
		Metadata: user.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user.ID),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return signed, claims, nil
}

// Validate checks signature, issuer and expiry as of now.
func (s *TokenIssuer) Validate(token string, now time.Time) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "invalid token claims")
	}
	return claims, nil
}
