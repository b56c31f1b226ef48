package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/auth"
	"github.com/leadboost/leadboost/internal/model"
)

type ctxKey int

const (
	userKey ctxKey = iota
	authInfoKey
)

// authInfo is injected by the request logger and filled by the auth
// middleware, so the outer logger can report who made the call.
type authInfo struct {
	userID         string
	organizationID string
}

// currentUser returns the authenticated user. Handlers behind the auth
// middleware can rely on it being present.
func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

// requestLogger emits one api_call event per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &authInfo{}
		r = r.WithContext(context.WithValue(r.Context(), authInfoKey, info))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		zap.L().Info("api_call",
			zap.String("endpoint", r.URL.Path),
			zap.String("method", r.Method),
			zap.String("user_id", info.userID),
			zap.String("organization_id", info.organizationID),
			zap.Int64("response_time_ms", time.Since(start).Milliseconds()),
			zap.Int("status_code", ww.Status()),
		)
	})
}

// authenticate resolves the caller from a Bearer JWT or an lb_ API key.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			unauthorized(w, "Not authenticated")
			return
		}

		var user *model.User
		if strings.HasPrefix(token, auth.APIKeyPrefix) {
			user = s.userFromAPIKey(r.Context(), w, token)
		} else {
			user = s.userFromJWT(r.Context(), w, token)
		}
		if user == nil {
			return
		}
		if !user.IsActive {
			unauthorized(w, "Inactive user")
			return
		}

		if info, ok := r.Context().Value(authInfoKey).(*authInfo); ok {
			info.userID = user.ID
			info.organizationID = user.OrganizationID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// userFromJWT verifies an access token and loads its subject. Writes the
// 401 itself and returns nil on any failure.
func (s *Server) userFromJWT(ctx context.Context, w http.ResponseWriter, token string) *model.User {
	userID, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		unauthorized(w, "Invalid token")
		return nil
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user == nil {
		unauthorized(w, "User not found")
		return nil
	}
	return user
}

// userFromAPIKey validates an lb_ key against its stored hash. Writes the
// 401 itself and returns nil on any failure.
func (s *Server) userFromAPIKey(ctx context.Context, w http.ResponseWriter, key string) *model.User {
	prefix, err := auth.APIKeyLookupPrefix(key)
	if err != nil {
		unauthorized(w, "Invalid token")
		return nil
	}

	apiKey, err := s.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil || apiKey == nil {
		unauthorized(w, "Invalid token")
		return nil
	}
	if apiKey.KeyHash != auth.HashAPIKey(key) ||
		!apiKey.IsActive || apiKey.IsRevoked ||
		(apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now().UTC())) {
		unauthorized(w, "Invalid token")
		return nil
	}

	if err := s.store.TouchAPIKey(ctx, apiKey.ID); err != nil {
		zap.L().Warn("server: touch api key failed", zap.Error(err))
	}

	user, err := s.store.GetUser(ctx, apiKey.UserID)
	if err != nil || user == nil {
		unauthorized(w, "User not found")
		return nil
	}
	return user
}
