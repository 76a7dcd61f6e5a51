// Package httpapi wires the HTTP transport (Gin) to the registry, the claim
// workflow, middleware and route handlers. It centralizes cross-cutting
// concerns: tracing, correlation IDs, access logging, panic recovery,
// compression, metrics, CORS and security headers.
//
// Route layout:
//
//	GET /health
//	GET /metrics
//	GET /swagger/*any                                 (SWAGGER_ENABLED)
//	GET /.well-known/atproto-did                      (Host form)
//	GET /:domain                                      (claim view)
//	GET /:domain/:username                            (handle page)
//	GET /:domain/:username/.well-known/atproto-did    (path form)
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/atproto-handles/docs" // registers the swagger doc
	"github.com/tbourn/atproto-handles/internal/config"
	"github.com/tbourn/atproto-handles/internal/domain"
	"github.com/tbourn/atproto-handles/internal/http/handlers"
	"github.com/tbourn/atproto-handles/internal/http/middleware"
	"github.com/tbourn/atproto-handles/internal/repo"
	"github.com/tbourn/atproto-handles/internal/services"
)

// claimRepoShim adapts the repository free functions to the
// services.ClaimRepo interface expected by the Registry.
type claimRepoShim struct{}

// FindClaim proxies repo.FindClaim.
func (claimRepoShim) FindClaim(ctx context.Context, db *gorm.DB, domainName, username string) (*domain.Claim, error) {
	return repo.FindClaim(ctx, db, domainName, username)
}

// GetOrCreateDomain proxies repo.GetOrCreateDomain.
func (claimRepoShim) GetOrCreateDomain(ctx context.Context, db *gorm.DB, name string) (*domain.Domain, error) {
	return repo.GetOrCreateDomain(ctx, db, name)
}

// CreateClaim proxies repo.CreateClaim.
func (claimRepoShim) CreateClaim(ctx context.Context, db *gorm.DB, d *domain.Domain, username, did string) (*domain.Claim, error) {
	return repo.CreateClaim(ctx, db, d, username, did)
}

// Deps are the out-of-process collaborators of the claim workflow.
type Deps struct {
	// Profiles resolves handles and DIDs to profiles (atproto.Client).
	Profiles services.ProfileLookup
	// Notifier receives unexpected-error reports (notify.Webhook).
	Notifier services.Notifier
	// Denylist and Reserved are the username policy lists; nil means empty.
	Denylist *services.Denylist
	Reserved *services.Denylist
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: access log + request-scoped logger
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (skips /metrics, which negotiates its own encoding)
//  7. Metrics
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// Every route is a GET; bodies are never read.
	r.Use(limitBody(64 << 10))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// CORS posture: resolvers and the claim page are public, so allow all
	// origins unless an allowlist is configured.
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Accept", "Content-Type"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		WellKnownMaxAge: cfg.Security.WellKnownMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/collaborators
	reg := services.NewRegistry(db, claimRepoShim{})
	wf := &services.ClaimWorkflow{
		Registry:      reg,
		Profiles:      deps.Profiles,
		Notifier:      deps.Notifier,
		Denylist:      deps.Denylist,
		Reserved:      deps.Reserved,
		DefaultSuffix: cfg.Profile.DefaultSuffix,
	}
	h := handlers.New(reg, wf, deps.Profiles)

	r.GET("/.well-known/atproto-did", h.HostWellKnownDID)
	r.GET("/:domain", h.ClaimView)
	r.GET("/:domain/:username", h.GetHandle)
	r.GET("/:domain/:username/.well-known/atproto-did", h.WellKnownDID)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
