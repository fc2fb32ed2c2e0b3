package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionTTL is how long an issued session token stays valid. There is no
// server-side revocation; logout only discards the client cookie.
const sessionTTL = 7 * 24 * time.Hour

// Session is the identity carried by a verified token.
type Session struct {
	UserID uuid.UUID
	Role   string
}

// Claims is the JWT payload for a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Tokens issues and verifies HS256-signed session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: sessionTTL}
}

// Issue signs a session token for the given user and role.
func (t *Tokens) Issue(userID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a session token. It fails closed: expired,
// tampered, malformed, or wrong-algorithm tokens all yield (nil, false),
// never an error, so callers treat every broken session the same way.
func (t *Tokens) Verify(tokenStr string) (*Session, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, false
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, false
	}
	if claims.Role == "" {
		return nil, false
	}

	// Roles may have been persisted with inconsistent casing in older
	// deployments; normalize once here.
	return &Session{UserID: userID, Role: strings.ToLower(claims.Role)}, true
}
