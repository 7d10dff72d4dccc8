package auth

import (
	gerrors "errors"
	"strings"
	"time"

	"courier/domain"
	"courier/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID       string `json:"user_id"`
	DisplayLabel string `json:"display_label"`
	jwt.RegisteredClaims
}

// Verifier validates bearer credentials against the service signing
// secret. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return Verifier{secret: []byte(secret)}
}

// Verify parses and validates the signature and expiry of a JWT string
// and returns the verified identity along with the token expiry
// instant, so the session layer can bound the connection lifetime to
// the token's validity.
func (v Verifier) Verify(tokenString string) (domain.Identity, time.Time, error) {
	if strings.TrimSpace(tokenString) == "" {
		return domain.Identity{}, time.Time{}, errors.ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, time.Time{}, classifyParseError(err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, time.Time{}, errors.ErrInvalidSignature
	}

	identity := domain.Identity{
		UserID:       claims.UserID,
		DisplayLabel: claims.DisplayLabel,
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return identity, expiresAt, nil
}

// classifyParseError maps jwt parsing failures to the service error
// taxonomy: malformed, expired, or bad signature.
func classifyParseError(err error) error {
	switch {
	case gerrors.Is(err, jwt.ErrTokenMalformed):
		return errors.ErrMalformedToken
	case gerrors.Is(err, jwt.ErrTokenExpired):
		return errors.ErrTokenExpired
	default:
		return errors.ErrInvalidSignature
	}
}

// Minter issues signed JWTs for authenticated users.
type Minter struct {
	secret   []byte
	duration time.Duration
}

func NewMinter(secret string, duration time.Duration) Minter {
	return Minter{secret: []byte(secret), duration: duration}
}

// Mint creates a signed token carrying the user's verified identity.
func (m Minter) Mint(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:       identity.UserID,
		DisplayLabel: identity.DisplayLabel,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "courier",
		},
	}

	// HS256: HMAC with SHA256, signed with the server secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
