package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"creator-analytics/internal/handlers"
	"creator-analytics/internal/ui/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const renderTimeout = 10 * time.Second

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
	defaultShop string
}

// Deps are the collaborators the routes are wired to. Gatherer may be nil,
// in which case /metrics is not served.
type Deps struct {
	API         *handlers.APIHandlers
	SSE         *handlers.SSEHandlers
	Gatherer    prometheus.Gatherer
	DefaultShop string
	Logger      *slog.Logger
}

func NewServer(deps Deps) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      deps.Logger,
		apiHandlers: deps.API,
		sseHandlers: deps.SSE,
		defaultShop: deps.DefaultShop,
	}
	s.setupRoutes(deps.Gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("GET /api/snapshot", s.apiHandlers.HandleSnapshot)
	s.mux.HandleFunc("GET /api/export.csv", s.apiHandlers.HandleExport)

	s.mux.HandleFunc("GET /sse/snapshot", s.sseHandlers.HandleSnapshot)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	q := r.URL.Query()
	params := templates.DashboardParams{
		ShopID: q.Get("shop"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	if params.ShopID == "" {
		params.ShopID = s.defaultShop
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := templates.Dashboard(params).Render(ctx, w); err != nil {
		s.logger.Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
