// Package auth is an optional bearer-token gate in front of the match
// endpoint. Tokens are HS256 JWTs minted by whoever holds the shared secret.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seanblong/resumematch/pkg/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// CookieName is checked when no Authorization header is sent.
const CookieName = "auth_token"

// DefaultTTL is how long minted tokens stay valid.
const DefaultTTL = 24 * time.Hour

var ErrNotConfigured = errors.New("auth not initialized")

type User struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret  []byte
	enabled bool
}

// New returns an Authenticator. A disabled one lets every request through.
func New(jwtSecret string, enabled bool) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), enabled: enabled}
}

// Enabled reports whether requests must carry a valid token. A nil
// Authenticator is disabled.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.enabled
}

// GenerateJWT creates a token for user valid for ttl.
func (a *Authenticator) GenerateJWT(user *User, ttl time.Duration) (string, error) {
	if a == nil || len(a.secret) == 0 {
		return "", ErrNotConfigured
	}
	if user == nil || user.Subject == "" {
		return "", errors.New("token subject is required")
	}
	now := time.Now()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.Subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateJWT validates and parses a JWT token
func (a *Authenticator) ValidateJWT(tokenString string) (*User, error) {
	if a == nil || len(a.secret) == 0 {
		return nil, ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &User{Subject: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

// TokenFromRequest reads a bearer token from the Authorization header,
// falling back to the auth cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// OptionalAuthMiddleware validates the request token when auth is enabled
// and stores the user in the request context. When auth is disabled every
// request passes through untouched.
func (a *Authenticator) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			writeUnauthorized(w, "authentication required")
			return
		}

		user, err := a.ValidateJWT(tokenString)
		if err != nil {
			writeUnauthorized(w, "invalid authentication token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StatusHandler reports whether auth is enabled and, if a valid token was
// sent, who the caller is.
func (a *Authenticator) StatusHandler(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Enabled bool  `json:"enabled"`
		User    *User `json:"user,omitempty"`
	}{Enabled: a.Enabled()}
	if body.Enabled {
		if tok := TokenFromRequest(r); tok != "" {
			if user, err := a.ValidateJWT(tok); err == nil {
				body.User = user
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// GetUserFromContext extracts user from request context
func GetUserFromContext(ctx context.Context) *User {
	if user, ok := ctx.Value(UserContextKey).(*User); ok {
		return user
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
