// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/conversation"
	"github.com/crosstabs/surveychat/internal/resolver"
	"github.com/crosstabs/surveychat/internal/tabulate"
)

type Server struct {
	router chi.Router
	conv   *conversation.Resolver
	ident  *resolver.Resolver
	engine *tabulate.Engine
}

// Config controls the HTTP surface of the server.
type Config struct {
	AllowedOrigins []string
}

// DefaultConfig returns the standard configuration used when no
// overrides are provided.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
	}
}

// Merge overlays non-empty override fields onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if len(override.AllowedOrigins) > 0 {
		result.AllowedOrigins = append([]string(nil), override.AllowedOrigins...)
	}
	return result
}

func NewServer(conv *conversation.Resolver, ident *resolver.Resolver, engine *tabulate.Engine, cfg *Config) *Server {
	logger := common.Logger()
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	srv := &Server{
		router: chi.NewRouter(),
		conv:   conv,
		ident:  ident,
		engine: engine,
	}
	srv.routes(configuration)
	logger.Info("api: server ready", "origins", strings.Join(configuration.AllowedOrigins, ","))
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(cfg Config) {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Session-ID"},
		AllowCredentials: true,
	}))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/query", s.handleQuery)
	s.router.Post("/v1/validate", s.handleValidate)
	s.router.Get("/v1/counts/{questionID}", s.handleCounts)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
