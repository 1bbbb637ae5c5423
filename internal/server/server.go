// Package server provides the HTTP server and routing for riskd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/database"
	concentrationhandlers "github.com/aristath/riskd/internal/modules/concentration/handlers"
	contagionhandlers "github.com/aristath/riskd/internal/modules/contagion/handlers"
	credithandlers "github.com/aristath/riskd/internal/modules/credit/handlers"
	factorshandlers "github.com/aristath/riskd/internal/modules/factors/handlers"
	portfoliohandlers "github.com/aristath/riskd/internal/modules/portfolio/handlers"
	reporthandlers "github.com/aristath/riskd/internal/modules/report/handlers"
	stresshandlers "github.com/aristath/riskd/internal/modules/stress/handlers"
	varhandlers "github.com/aristath/riskd/internal/modules/varengine/handlers"
)

// Config holds server configuration.
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	PortfolioDB *database.DB
	HistoryDB   *database.DB

	VaRHandler           *varhandlers.Handler
	StressHandler        *stresshandlers.Handler
	FactorsHandler       *factorshandlers.Handler
	ConcentrationHandler *concentrationhandlers.Handler
	CreditHandler        *credithandlers.Handler
	ContagionHandler     *contagionhandlers.Handler
	ReportHandler        *reporthandlers.Handler
	PortfolioHandler     *portfoliohandlers.Handler
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/risk", func(r chi.Router) {
			s.cfg.VaRHandler.RegisterRoutes(r)
			s.cfg.StressHandler.RegisterRoutes(r)
			s.cfg.FactorsHandler.RegisterRoutes(r)
			s.cfg.ConcentrationHandler.RegisterRoutes(r)
			s.cfg.CreditHandler.RegisterRoutes(r)
			s.cfg.ContagionHandler.RegisterRoutes(r)
			s.cfg.ReportHandler.RegisterRoutes(r)
		})

		r.Route("/reports", func(r chi.Router) {
			s.cfg.ReportHandler.RegisterSnapshotRoutes(r)
		})

		r.Route("/portfolio", func(r chi.Router) {
			s.cfg.PortfolioHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type dbHealth struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
	}

	healthy := true
	var databases []dbHealth
	for _, db := range []*database.DB{s.cfg.PortfolioDB, s.cfg.HistoryDB} {
		if db == nil {
			continue
		}
		err := db.HealthCheck(r.Context())
		if err != nil {
			healthy = false
		}
		databases = append(databases, dbHealth{Name: db.Name(), OK: err == nil})
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":%q,"databases":[`, state)
	for i, db := range databases {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, `{"name":%q,"ok":%t}`, db.Name, db.OK)
	}
	fmt.Fprint(w, `]}`)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
