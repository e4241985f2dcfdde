package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleController is the only role accepted on the control API.
const RoleController = "controller"

// JWTClaims represents the claims in a control API token.
type JWTClaims struct {
	Subject string `json:"sub_name,omitempty"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and validates control API tokens. An empty secret
// disables authentication entirely (development mode); callers decide whether
// to allow that.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator with the given HS256 secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// GenerateControllerToken generates a token granting access to the control
// API, typically issued to the conversational engine.
func (a *Authenticator) GenerateControllerToken(subject string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("no signing secret configured")
	}
	claims := &JWTClaims{
		Subject: subject,
		Role:    RoleController,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates a token and returns its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
