// Command server runs the atproto handle registry: the claim page API and the
// well-known DID documents for every claimed handle.
//
// @title       atproto handles API
// @version     1.0
// @description Vanity atproto handles under your own domain: claim a username for an existing Bluesky account and serve its well-known DID document.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/atproto-handles/internal/atproto"
	"github.com/tbourn/atproto-handles/internal/config"
	httpapi "github.com/tbourn/atproto-handles/internal/http"
	"github.com/tbourn/atproto-handles/internal/notify"
	"github.com/tbourn/atproto-handles/internal/observability"
	"github.com/tbourn/atproto-handles/internal/repo"
	"github.com/tbourn/atproto-handles/internal/services"
	"github.com/tbourn/atproto-handles/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	sysutil.SetupLogger(os.Stdout, sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, observability.DefaultServiceName), cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	target := cfg.DB.Path
	if cfg.DB.Driver == repo.DriverPostgres {
		target = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, target)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.InstrumentTracing(db); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	denylist, err := services.LoadDenylist(cfg.Policy.DenylistFile, cfg.Policy.Denylist...)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Policy.DenylistFile).Msg("load denylist")
	}
	reserved := services.NewDenylist(cfg.Policy.Reserved...)
	log.Info().Int("denylist", denylist.Len()).Int("reserved", reserved.Len()).Msg("username policy loaded")

	deps := httpapi.Deps{
		Profiles: atproto.New(cfg.Profile.BaseURL, cfg.Profile.Timeout),
		Notifier: notify.NewWebhook(cfg.Notify.URLEnv, cfg.Notify.Mention, cfg.Notify.Timeout),
		Denylist: denylist,
		Reserved: reserved,
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("db", cfg.DB.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
