package routes

import (
	"net/http"

	"github.com/careloop/postop-followup/backend/internal/api/handlers"
	"github.com/careloop/postop-followup/backend/internal/api/middleware"
	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	authHandler    *handlers.AuthHandler
	patientHandler *handlers.PatientHandler
	alertHandler   *handlers.AlertHandler
	webhookHandler *handlers.WebhookHandler

	jwtSecret string
	metrics   *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	authHandler *handlers.AuthHandler,
	patientHandler *handlers.PatientHandler,
	alertHandler *handlers.AlertHandler,
	webhookHandler *handlers.WebhookHandler,
	jwtSecret string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		authHandler:    authHandler,
		patientHandler: patientHandler,
		alertHandler:   alertHandler,
		webhookHandler: webhookHandler,
		jwtSecret:      jwtSecret,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Login
	r.mux.HandleFunc("POST /api/login", r.authHandler.Login)

	// WhatsApp webhook (Cloud API authenticates via the verify token)
	r.mux.HandleFunc("GET /webhook/whatsapp", r.webhookHandler.Verify)
	r.mux.HandleFunc("POST /webhook/whatsapp", r.webhookHandler.Receive)

	auth := middleware.Auth(r.jwtSecret)
	clinical := middleware.RequireRoles(entities.RoleDoctor, entities.RoleAdmin)

	// Patient endpoints; listing and record lookup are clinical-only,
	// conversations and pain trend enforce ownership in the handler.
	r.handle("GET /api/patients", auth(clinical(http.HandlerFunc(r.patientHandler.ListPatients))))
	r.handle("GET /api/patients/{id}", auth(clinical(http.HandlerFunc(r.patientHandler.GetPatient))))
	r.handle("GET /api/patients/{id}/conversations", auth(http.HandlerFunc(r.patientHandler.ListConversations)))
	r.handle("GET /api/patients/{id}/pain-trend", auth(http.HandlerFunc(r.patientHandler.PainTrend)))

	// Alert endpoints
	r.handle("GET /api/alerts", auth(clinical(http.HandlerFunc(r.alertHandler.ListAlerts))))
	r.handle("POST /api/alerts/{id}/acknowledge", auth(clinical(http.HandlerFunc(r.alertHandler.AcknowledgeAlert))))
	r.handle("GET /api/alerts/stream", auth(clinical(http.HandlerFunc(r.alertHandler.StreamAlerts))))

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so error responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}

func (r *Router) handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}
