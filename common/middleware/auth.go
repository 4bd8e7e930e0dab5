package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// SubjectKey is the context key for the authenticated token subject.
const SubjectKey = contextKey("subject")

// AdminClaims are the claims carried by operator API tokens.
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AdminAuth validates HS256 bearer tokens on operator endpoints.
// Token issuance (login, roles, user management) lives outside this service;
// we only check that the token was signed with the shared admin secret.
type AdminAuth struct {
	secret []byte
}

func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret)}
}

// RequireToken wraps a handler, rejecting requests without a valid bearer token.
func (a *AdminAuth) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		if _, err := a.Validate(parts[1]); err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// Validate parses and verifies a token string, returning its claims.
func (a *AdminAuth) Validate(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueToken mints a short-lived operator token. Used by the CLI for local
// setups where no external identity provider issues tokens.
func (a *AdminAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	claims := AdminClaims{
		Scope: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "paystream",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
