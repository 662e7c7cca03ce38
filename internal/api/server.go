// Package api exposes the retrieval service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	apihandler "github.com/newthinker/stockscope/internal/api/handler/api"
	"github.com/newthinker/stockscope/internal/api/job"
	"github.com/newthinker/stockscope/internal/api/middleware"
	"github.com/newthinker/stockscope/internal/api/response"
	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/metrics"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     *mux.Router
	stats      func() map[string]any
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// APIKey, when set, guards every /api route except health.
	APIKey      string
	MetricsPath string
}

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Service          apihandler.Retriever
	Metrics          *metrics.Registry // optional
	BacktestDefaults backtest.Params
	Stats            func() map[string]any // optional, reported by health
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("api: retrieval service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	router := mux.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		router: router,
		stats:  deps.Stats,
	}
	s.setupRoutes(cfg, deps)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.router.Use(metrics.LoggingMiddleware(s.logger))
	if deps.Metrics != nil {
		s.router.Use(metrics.HTTPMiddleware(deps.Metrics))
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	market := apihandler.NewMarketHandler(deps.Service)
	screen := apihandler.NewScreenHandler(deps.Service)
	bt := apihandler.NewBacktestHandler(deps.Service, job.NewStore(100, time.Hour), deps.BacktestDefaults, s.logger)
	admin := apihandler.NewAdminHandler(deps.Service)
	stocks := apihandler.NewStocksHandler(deps.Service, s.logger)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.APIKeyAuth(cfg.APIKey))

	api.HandleFunc("/quote/{symbol}", market.Quote).Methods(http.MethodGet)
	api.HandleFunc("/history/{symbol}", market.History).Methods(http.MethodGet)
	api.HandleFunc("/news/{symbol}", market.News).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{symbol}", market.Indicators).Methods(http.MethodGet)
	api.HandleFunc("/analysis/{symbol}", market.Analysis).Methods(http.MethodGet)
	api.HandleFunc("/screen", screen.Screen).Methods(http.MethodPost)
	api.HandleFunc("/backtest", bt.Run).Methods(http.MethodPost)
	api.HandleFunc("/backtest/jobs", bt.Create).Methods(http.MethodPost)
	api.HandleFunc("/backtest/jobs/{id}", bt.Status).Methods(http.MethodGet)
	api.HandleFunc("/test", admin.TestConnections).Methods(http.MethodGet)
	api.HandleFunc("/cache", admin.ClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/stocks", stocks.Handle).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.stats != nil {
		body["stats"] = s.stats()
	}
	response.JSON(w, http.StatusOK, body)
}
