package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TWRT/task-tracker/internal/api/res"
)

var ErrInvalidToken = errors.New("invalid token")

type AuthConfig struct {
	Required  bool
	JWTSecret string
	JWTIssuer string
}

type subjectKey struct{}

// SubjectFrom returns the token subject placed on the context by Auth. It is
// empty when tokens are treated as opaque.
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}

// Auth requires a bearer token. With a secret configured the token must be
// an HS256 JWT signed with it; otherwise any non-empty token is accepted.
func Auth(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if !cfg.Required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization header is required")
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, "Invalid authorization header format. Use: Bearer <token>")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				unauthorized(w, "Token is required")
				return
			}

			ctx := r.Context()
			if cfg.JWTSecret != "" {
				subject, err := verifyToken(token, cfg.JWTSecret, cfg.JWTIssuer)
				if err != nil {
					unauthorized(w, "Invalid or expired token")
					return
				}
				ctx = context.WithValue(ctx, subjectKey{}, subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyToken(tokenString, secret, issuer string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tasks"`)
	res.Error(w, "unauthorized", msg, http.StatusUnauthorized)
}
