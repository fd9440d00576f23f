package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const sessionIDKey ctxKey = "session_id"

const defaultTokenTTL = 24 * time.Hour

type sessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// SessionTokens issues and checks HS256 tokens bound to one session id.
// A zero secret disables tokens and every check passes.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionTokens(secret string) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), ttl: defaultTokenTTL}
}

func (t *SessionTokens) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

// Issue returns "" when tokens are disabled.
func (t *SessionTokens) Issue(sessionID string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}
	now := time.Now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates tokenStr and returns its session id.
func (t *SessionTokens) Parse(tokenStr string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.SessionID == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.SessionID, nil
}

// Middleware validates the Authorization header and attaches session_id to the request context.
func (t *SessionTokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w, "missing or invalid token")
			return
		}

		sessionID, err := t.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			unauthorized(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorized reports whether the request may act on sessionID.
func (t *SessionTokens) Authorized(ctx context.Context, sessionID string) bool {
	if !t.Enabled() {
		return true
	}
	got, ok := SessionIDFromContext(ctx)
	return ok && got == sessionID
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// unauthorized answers in the same {error, code} shape the handlers use.
func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "unauthorized"})
}
