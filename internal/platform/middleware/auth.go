package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	TokenID string
}

// Context keys for storing authenticated operator information
type contextKeySubject struct{}
type contextKeyTokenID struct{}

// ContextKeySubject is exported for use in handlers
var (
	ContextKeySubject = contextKeySubject{}
	ContextKeyTokenID = contextKeyTokenID{}
)

// GetSubject retrieves the authenticated operator subject from the context
func GetSubject(ctx context.Context) string {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	if !ok {
		return ""
	}
	return subject
}

// GetTokenID retrieves the token ID from the context
func GetTokenID(ctx context.Context) string {
	tokenID, ok := ctx.Value(ContextKeyTokenID).(string)
	if !ok {
		return ""
	}
	return tokenID
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				token := after
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					requestID := GetRequestID(ctx)
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, err = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
					if err != nil {
						logger.ErrorContext(ctx, "failed to write unauthorized response",
							"error", err,
							"request_id", requestID,
						)
					}
					return
				}

				ctx := r.Context()
				ctx = context.WithValue(ctx, ContextKeySubject, claims.Subject)
				ctx = context.WithValue(ctx, ContextKeyTokenID, claims.TokenID)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			requestID := GetRequestID(ctx)
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", requestID,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
			if err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response",
					"error", err,
					"request_id", requestID,
				)
			}
		})
	}
}
