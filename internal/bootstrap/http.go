package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dialcoach/partner-api/config"
	httpx "github.com/dialcoach/partner-api/internal/http"
	"github.com/dialcoach/partner-api/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		PartnerAuth:        cfg.Services.PartnerAuth,
		RateLimiter:        cfg.Services.RateLimiter,
		Companies:          cfg.Services.Companies,
		Calls:              cfg.Services.Calls,
		Jobs:               cfg.Services.Jobs,
		Keys:               cfg.Services.Keys,
		Webhooks:           cfg.Services.Webhooks,
		Logs:               cfg.Services.RequestLogs,
		CookieDomain:       appCfg.HTTP.CookieDomain,
		PartnerAPIEnabled:  appCfg.HTTP.PartnerAPIEnabled,
		CompressionEnabled: appCfg.HTTP.CompressionEnabled,
		CompressionLevel:   appCfg.HTTP.CompressionLevel,
		Logger:             logger,
	}
	// Interface fields only get a value when the concrete service exists,
	// otherwise a typed nil would defeat the router's nil checks.
	if cfg.Services.RequestLogs != nil {
		services.RequestLogs = cfg.Services.RequestLogs
	}
	if cfg.Services.Auth != nil {
		services.Auth = cfg.Services.Auth
	}

	handler := httpx.NewRouter(services)

	// Start server (logs "starting HTTP server" internally)
	return startServer(logger, handler, appCfg.HTTP.Addr)
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context     context.Context
	Server      *http.Server
	RequestLogs *service.RequestLogService
	Logger      *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Drain buffered request log entries once no more requests can arrive.
	if cfg.RequestLogs != nil {
		cfg.RequestLogs.Close()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
