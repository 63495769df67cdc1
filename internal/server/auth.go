package server

import (
	"net/http"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
)

// authRealm is announced in the Basic auth challenge.
const authRealm = "sightline"

// requireAuth enforces HTTP Basic auth against the configured bcrypt hash.
// It is a pass-through when no hash is configured.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthPasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Authorization")

		_, password, ok := r.BasicAuth()
		if !ok {
			s.authenticationRequired(w)
			return
		}

		match, err := config.PasswordMatches(s.cfg.AuthPasswordHash, password)
		if err != nil {
			s.logger.Error("checking password", logging.Field{Key: "error", Value: err.Error()})
			writeError(w, http.StatusInternalServerError, "authentication unavailable")
			return
		}
		if !match {
			s.logger.Warn("rejected credentials", logging.Field{Key: "path", Value: r.URL.Path})
			s.authenticationRequired(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticationRequired(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
}
