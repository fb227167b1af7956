// Route registration and go-chi router setup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/askbot/internal/api/handlers"
	"github.com/matiasleandrokruk/askbot/internal/api/mcptools"
	apmiddleware "github.com/matiasleandrokruk/askbot/internal/api/middleware"
	"github.com/matiasleandrokruk/askbot/internal/domain/assistant"
	"github.com/matiasleandrokruk/askbot/internal/domain/session"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
	"github.com/matiasleandrokruk/askbot/internal/infra/search"
	pkgauth "github.com/matiasleandrokruk/askbot/pkg/auth"
)

// Deps are the services the routes are built from.
// Images and Jobs are nil when the Kandinsky keys are missing.
type Deps struct {
	Orchestrator *assistant.Orchestrator
	Sessions     *session.Store
	Search       *search.Client
	Images       *kandinsky.Client
	Jobs         *kandinsky.Monitor
	Signer       *pkgauth.Signer
	Version      string
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog)
	r.Use(middleware.Recoverer)

	// Health check, used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// Interfaces stay nil (not typed nil) when image generation is off.
	var (
		generator assistant.ImageGenerator
		imageSvc  handlers.ImageService
		mcpImages mcptools.ImageService
		jobs      handlers.JobCounter
	)
	if d.Images != nil {
		generator, imageSvc, mcpImages = d.Images, d.Images, d.Images
	}
	if d.Jobs != nil {
		jobs = d.Jobs
	}

	var searcher mcptools.Searcher
	if d.Search != nil {
		searcher = d.Search
	}

	chatHandler := handlers.NewChatHandler(d.Orchestrator, d.Sessions, generator)
	statusHandler := handlers.NewStatusHandler(d.Orchestrator, imageSvc, jobs)

	r.Route("/api", func(r chi.Router) {
		r.Use(apmiddleware.SessionMiddleware(d.Signer))

		r.Post("/chat", chatHandler.Chat)      // POST /api/chat
		r.Post("/clear", chatHandler.Clear)    // POST /api/clear
		r.Get("/history", chatHandler.History) // GET /api/history

		r.Get("/model_status", statusHandler.ModelStatus) // GET /api/model_status
		r.Get("/image_status", statusHandler.ImageStatus) // GET /api/image_status
		r.Get("/status", statusHandler.Overview)          // GET /api/status
		r.Get("/kandinsky/styles", statusHandler.Styles)  // GET /api/kandinsky/styles
	})

	r.Handle("/mcp", mcptools.Handler(mcptools.NewServer(searcher, mcpImages, d.Version)))

	return r
}
