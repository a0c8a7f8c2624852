package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"allocation-dashboard/internal/handlers"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	router      chi.Router
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

type Options struct {
	UploadMaxBytes int64
	Metrics        *observability.Metrics
	// Middleware wraps every route. chi needs it registered before the routes.
	Middleware []func(http.Handler) http.Handler
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers, opts Options) *Server {
	s := &Server{
		analytics:   analytics,
		router:      chi.NewRouter(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, opts.UploadMaxBytes),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.router.Use(opts.Middleware...)
	s.setupRoutes(templateHandlers, opts.Metrics)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers, metrics *observability.Metrics) {
	r := s.router

	// Dashboard routes
	r.Get("/", templateHandlers.Dashboard)
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Post("/dataset", s.apiHandlers.HandleUpload)
		r.Delete("/dataset", s.apiHandlers.HandleReset)

		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/locations", s.apiHandlers.HandleLocations)
		r.Get("/locations/{id}/products", s.apiHandlers.HandleLocationProducts)
		r.Get("/products", s.apiHandlers.HandleProducts)
		r.Get("/products/{id}/locations", s.apiHandlers.HandleProductLocations)
		r.Get("/pairs", s.apiHandlers.HandlePairs)
		r.Get("/distribution", s.apiHandlers.HandleDistribution)
		r.Get("/zero-units", s.apiHandlers.HandleZeroUnits)
		r.Get("/gap", s.apiHandlers.HandleGap)
	})

	// Downloads
	r.Get("/export/report.xlsx", s.apiHandlers.HandleExportXLSX)
	r.Get("/export/{view}.csv", s.apiHandlers.HandleExportCSV)

	// Datastar SSE endpoints
	r.Route("/sse", func(r chi.Router) {
		r.Get("/summary", s.sseHandlers.HandleSummary)
		r.Get("/locations", s.sseHandlers.HandleLocations)
		r.Get("/products", s.sseHandlers.HandleProducts)
		r.Get("/distribution", s.sseHandlers.HandleDistribution)
		r.Get("/zero-units", s.sseHandlers.HandleZeroUnits)
		r.Get("/gap", s.sseHandlers.HandleGap)
		r.Get("/drill/location/{id}", s.sseHandlers.HandleDrillLocation)
		r.Get("/drill/product/{id}", s.sseHandlers.HandleDrillProduct)
		r.Get("/refresh-all", s.sseHandlers.HandleRefreshAll)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
