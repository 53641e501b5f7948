package server

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	importsources "ndta-news/pipeline/internal/import"
	"ndta-news/pipeline/internal/pipeline"
	"ndta-news/pipeline/internal/server/api"
	"ndta-news/pipeline/internal/server/storage"
	"ndta-news/pipeline/internal/store"
)

// Options configure the dashboard.
type Options struct {
	APIKey      string
	GraphicsDir string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests. The health check is always open.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			reqApiKey := r.Header.Get("X-API-Key")
			if reqApiKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqApiKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewHandler builds the dashboard routes and middleware chain.
func NewHandler(p *pipeline.Pipeline, st *store.Store, opts Options, logger zerolog.Logger) http.Handler {
	articles := api.NewArticlesHandler(storage.NewRepository(st))
	dash := api.NewDashboardHandler(p, st, opts.GraphicsDir)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", dash.GetStatus)
	mux.HandleFunc("GET /v1/articles", articles.GetArticles)
	mux.HandleFunc("POST /v1/articles", dash.SubmitArticle)
	mux.HandleFunc("GET /v1/articles/pending", dash.GetPendingArticles)
	mux.HandleFunc("GET /v1/articles/{id}", dash.GetArticle)
	mux.HandleFunc("POST /v1/articles/{id}/approve", dash.ApproveArticle)
	mux.HandleFunc("POST /v1/articles/{id}/reject", dash.RejectArticle)
	mux.HandleFunc("GET /v1/reports", dash.GetReports)
	mux.HandleFunc("POST /v1/reports/{id}/approve", dash.ApproveReport)
	mux.HandleFunc("POST /v1/reports/{id}/reject", dash.RejectReport)
	mux.HandleFunc("GET /v1/approved", dash.GetApproved)
	mux.HandleFunc("GET /v1/state-alerts", dash.GetStateAlerts)
	mux.HandleFunc("POST /v1/run/{stage}", dash.RunStage)
	mux.HandleFunc("GET /v1/graphics", dash.GetGraphics)
	mux.HandleFunc("GET /v1/sources", exportSourcesHandler(st))
	mux.Handle("GET /graphics/", http.StripPrefix("/graphics/", http.FileServer(http.Dir(opts.GraphicsDir))))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", healthCheckHandler(st))

	// Set up middleware chain for logging and request tracking
	h := apiKeyMiddleware(opts.APIKey)(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.MethodHandler("method")(h)
	h = hlog.NewHandler(logger)(h)

	if opts.APIKey != "" {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}
	return h
}

// RunServer serves h on listenAddr until ctx is cancelled, then shuts down
// gracefully.
func RunServer(ctx context.Context, h http.Handler, listenAddr string, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "ndta-dashboard").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Stage runs answer only when the stage finishes.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("Dashboard starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err

	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler answers 200 OK while the store is reachable.
func healthCheckHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Health check request received")

		if err := st.Ping(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check failed: store unreachable")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}

// exportSourcesHandler returns every tracked source as CSV in the format the
// import command reads.
func exportSourcesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		sources, err := st.ListSources(r.Context(), r.URL.Query().Get("kind"), false)
		if err != nil {
			log.Error().Err(err).Msg("Failed to query sources")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=sources.csv")

		csvWriter := csv.NewWriter(w)
		if err := csvWriter.Write(importsources.Columns); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV header")
			return
		}
		for _, src := range sources {
			record := []string{src.URL, src.Name, src.Kind, src.Status, src.Comments.String}
			if err := csvWriter.Write(record); err != nil {
				log.Error().Err(err).Msg("Failed to write CSV record")
				return
			}
		}

		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Error().Err(err).Msg("Error flushing CSV data")
			return
		}
		log.Info().Int("source_count", len(sources)).Msg("Exported sources as CSV")
	}
}
