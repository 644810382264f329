package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

type contextKey string

const contextKeyActor contextKey = "actor"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := wrap(w)

		next.ServeHTTP(rw, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}
		if actor, ok := actorFrom(r.Context()); ok {
			fields["user_id"] = actor.UserID
		}
		s.logger.WithFields(fields).Info("http request")
	})
}

// Recover turns a handler panic into a 500 response.
func (s *Service) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := wrap(w)
		defer func() {
			if v := recover(); v != nil {
				s.logger.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  v,
				}).Error("handler panicked")
				if !rw.written {
					writeFailure(rw, http.StatusInternalServerError, types.KindInternal, "internal server error")
				}
			}
		}()
		next.ServeHTTP(rw, r)
	})
}

// RequireAuth accepts a bearer token or the encrypted session cookie set at login,
// and stores the verified actor on the request context.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := s.accessToken(r)
		if err != nil {
			s.logger.WithError(err).Debug("no usable access token")
			s.writeError(w, r, types.ErrUnauthenticated)
			return
		}

		actor, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.logger.WithError(err).Info("failed to verify access token")
			if !types.IsKind(err, types.KindUnauthenticated) {
				err = types.WrapError(types.KindUnauthenticated, "unable to verify access token", err)
			}
			s.writeError(w, r, err)
			return
		}

		s.logger.WithFields(logrus.Fields{
			"user_id": actor.UserID,
			"role":    actor.Role,
		}).Debug("authenticated user")

		ctx := context.WithValue(r.Context(), contextKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r.Context())
		if !ok {
			s.writeError(w, r, types.ErrUnauthenticated)
			return
		}
		if !actor.IsAdmin() {
			s.writeError(w, r, types.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			// 308 keeps the method and body, unlike 301.
			http.Redirect(w, r, newURL.String(), http.StatusPermanentRedirect)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) accessToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", types.NewError(types.KindUnauthenticated, "authorization header must be a bearer token")
		}
		return strings.TrimSpace(token), nil
	}

	cookie, err := r.Cookie(s.config.CookieName)
	if err != nil {
		return "", err
	}

	var token string
	if err := s.cookie.Decode(s.config.CookieName, cookie.Value, &token); err != nil {
		return "", err
	}
	return token, nil
}

func actorFrom(ctx context.Context) (types.Actor, bool) {
	actor, ok := ctx.Value(contextKeyActor).(types.Actor)
	return actor, ok
}

// actor is only called behind RequireAuth, so a missing value yields an empty Actor
// that every service rejects as unauthenticated.
func actor(r *http.Request) types.Actor {
	a, _ := actorFrom(r.Context())
	return a
}
