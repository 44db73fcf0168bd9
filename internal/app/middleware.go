package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/rest"
	"github.com/spendwise/spendwise/pkg/user"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(requestLogging)
	r.Use(currentUser(deps))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		log.WithFields(log.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// currentUser resolves the caller into the request context. With a token secret configured
// only bearer tokens are accepted, otherwise the X-User-Id header carries the user uid.
// Requests without credentials pass through and fail in services that need a user.
func currentUser(deps *Dependencies) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid, ok := callerUid(w, req, deps)
			if !ok {
				return
			}
			ctx := req.Context()

			if uid != "" {
				u, err := deps.UserService.GetUserByUid(ctx, uid)
				if err != nil {
					if errors.Is(err, user.ErrUserNotFound) {
						log.Debugf("user not found: %s", uid)
						rest.WriteError(w, http.StatusForbidden, "User not found", "")
						return
					}
					log.Errorf("failed to get user: %v", err)
					rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
					return
				}
				log.Tracef("user found: %s", u.Uid)
				ctx = user.WithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func callerUid(w http.ResponseWriter, req *http.Request, deps *Dependencies) (string, bool) {
	if !deps.TokenValidator.Enabled() {
		return req.Header.Get("X-User-Id"), true
	}

	header := req.Header.Get("Authorization")
	if header == "" {
		return "", true
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		rest.WriteError(w, http.StatusUnauthorized, "Invalid authorization header", "expected a bearer token")
		return "", false
	}
	uid, err := deps.TokenValidator.Validate(strings.TrimSpace(token))
	if err != nil {
		log.Debugf("rejected token: %v", err)
		rest.WriteError(w, http.StatusUnauthorized, "Invalid token", "")
		return "", false
	}
	return uid, true
}
