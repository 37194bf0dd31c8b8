package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type callerContextKey struct{}

// Caller returns the authenticated identity placed in ctx by the
// authenticator, or "" when there is none.
func Caller(ctx context.Context) string {
	caller, _ := ctx.Value(callerContextKey{}).(string)
	return caller
}

// Authenticator validates HS256 bearer tokens. The token subject becomes the
// caller identity: the depositor or holder on user routes, and the identity
// checked against the protocol authority on admin routes.
type Authenticator struct {
	secret []byte
	leeway time.Duration
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), leeway: 30 * time.Second}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", "auth")
			return
		}

		subject, err := a.parseSubject(tokenString)
		if err != nil {
			zap.L().Info("Rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid token", "auth")
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseSubject(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.leeway), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

// IssueToken signs a token for subject. Used by the admin CLI and tests.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
