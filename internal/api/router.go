package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/photosync/backend/internal/api/handlers"
	apimiddleware "github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/ratelimit"
	"github.com/photosync/backend/internal/subscription"
)

// Deps bundles every dependency NewRouter needs to wire handlers and
// middleware; built once at startup by cmd/photosyncd.
type Deps struct {
	Tokens        *credentials.TokenService
	Resolver      *subscription.Resolver
	AuthRateLimit *ratelimit.Limiter
	Auth          *handlers.AuthHandler
	Subscription  *handlers.SubscriptionHandler
	Usage         *handlers.UsageHandler
	Classic       *handlers.ClassicHandler
	Cloud         *handlers.CloudHandler
	Capacity      *handlers.CapacityHandler
}

// NewRouter configures the chi router with the middleware stack and routes
// spec §6 fixes, grounded directly on the teacher's pkg/api/router.go
// structure (request id / real ip / custom logger / recoverer / timeout,
// then route groups layered with auth and gate middleware).
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", handlers.Health)
	r.Get("/", handlers.Root)
	r.Get("/api/capacity", d.Capacity.Get)
	r.Get("/.well-known/*-capacity.json", d.Capacity.Get)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.RateLimit(d.AuthRateLimit))
			r.Post("/register", d.Auth.Register)
			r.Post("/login", d.Auth.Login)
		})

		r.Post("/revenuecat/webhook", d.Subscription.Webhook)
		r.Get("/admin/webhook-log", d.Subscription.WebhookLog)

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.Auth(d.Tokens))

			r.Get("/subscription/status", d.Subscription.Status)
			r.Get("/cloud/usage", d.Usage.Get)

			r.Group(func(r chi.Router) {
				r.Use(apimiddleware.SubscriptionGate(d.Resolver, subscription.GateUpload))
				r.With(chimiddleware.Timeout(2 * time.Minute)).Post("/upload", d.Classic.Upload)
				r.With(chimiddleware.Timeout(2 * time.Minute)).Post("/upload/raw", d.Classic.UploadRaw)
				r.With(chimiddleware.Timeout(2 * time.Minute)).Post("/cloud/chunks", d.Cloud.UploadChunk)
				r.Post("/cloud/manifests", d.Cloud.UploadManifest)
				r.Put("/cloud/device-state", d.Cloud.PutDeviceState)
			})

			r.Group(func(r chi.Router) {
				r.Use(apimiddleware.SubscriptionGate(d.Resolver, subscription.GateRead))
				r.Get("/files", d.Classic.List)
				r.Get("/files/{name}", d.Classic.Download)
				r.Post("/files/purge", d.Classic.Purge)
				r.Get("/cloud/chunks/{id}", d.Cloud.DownloadChunk)
				r.Get("/cloud/manifests", d.Cloud.ListManifests)
				r.Get("/cloud/manifests/{id}", d.Cloud.GetManifest)
				r.Get("/cloud/device-state", d.Cloud.GetDeviceState)
				r.Post("/cloud/purge", d.Cloud.Purge)
			})
		})
	})

	return r
}

// requestLogger logs request start at debug and completion at info,
// adapted from the teacher's router.go requestLogger to emit through
// internal/logger instead of a package-level slog call.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.RequestIDStr(requestID), logger.Path(r.URL.Path))

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			logger.RequestIDStr(requestID), logger.Path(r.URL.Path),
			logger.Status(ww.Status()), logger.DurationMs(float64(time.Since(start).Milliseconds())))
	})
}
