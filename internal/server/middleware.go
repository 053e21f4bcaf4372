package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// statusRecorder captures what the handler wrote for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// middleware wraps the mux: request logger, panic recovery, admin auth.
func (s *Server) middleware(next http.Handler) http.Handler {
	return s.withRequestLogger(recoverPanics(s.requireAdmin(next)))
}

// withRequestLogger tags the request with a correlation id, stores a logger
// carrying it in the request context and writes one access line per request.
func (s *Server) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		corrID := r.Header.Get("X-Correlation-ID")
		if corrID == "" {
			corrID = r.Header.Get("X-Request-ID")
		}
		if corrID == "" {
			corrID = uuid.NewString()[:8]
		}
		w.Header().Set("X-Correlation-ID", corrID)

		reqLogger := s.logger.With().Str("correlation_id", corrID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := zerolog.DebugLevel
		switch {
		case rec.status >= 500:
			level = zerolog.ErrorLevel
		case rec.status >= 400:
			level = zerolog.InfoLevel
		}
		zerolog.Ctx(r.Context()).WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("path", r.URL.Path).
					Msg("Panic recovered in HTTP handler")
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// publicPaths skip admin auth.
var publicPaths = map[string]bool{
	"/api/health":  true,
	"/api/version": true,
}

// requireAdmin rejects requests without an admin bearer token on every
// non-public route.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	secret := []byte(s.app.Config.Auth.AdminJWTSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			challenge(w, "missing bearer token")
			return
		}
		claims, err := validateJWT(token, secret)
		if err != nil {
			zerolog.Ctx(r.Context()).Info().Err(err).Msg("Rejected operator token")
			challenge(w, "invalid or expired token")
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}

		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("operator", claims.Subject)
		})
		next.ServeHTTP(w, r)
	})
}

func challenge(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tickercal"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", description)
}
