package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"khazna-backend/internal/config"
	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/repository"
	"khazna-backend/internal/security"
)

// AuthMiddleware validates the bearer token and loads the caller's current
// role and scope from the users table.
type AuthMiddleware struct {
	tokens security.TokenManager
	uow    repository.UnitOfWork
}

func NewAuthMiddleware(tokens security.TokenManager, uow repository.UnitOfWork) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, uow: uow}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		if config.GetSecurityLevel(name) == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "unauthenticated", "authorization token is not provided")
			return
		}
		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}

		var user *domain.User
		err = m.uow.Within(r.Context(), func(repos *repository.Repos) error {
			var err error
			user, err = repos.Users.GetByID(r.Context(), claims.UserID)
			return err
		})
		if domain.IsNotFound(err) {
			writeStatus(w, http.StatusUnauthorized, "unauthenticated", "user no longer exists")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		logger.WithActor(user.ID, string(user.Role)).Debug("Actor resolved", "route", name)
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), domain.ActorFromUser(user))))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		header = header[7:]
	}
	header = strings.TrimSpace(header)
	return header, header != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// RecoveryMiddleware turns a handler panic into a 500.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", rec)
				writeStatus(w, http.StatusInternalServerError, "internal_error", "حدث خطأ غير متوقع")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
