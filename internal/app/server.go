package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/agriai/agriai/internal/api"
	"github.com/agriai/agriai/internal/api/middleware"
)

// APIServiceName names the HTTP server in logs, spans and metrics.
const APIServiceName = "agriai-api"

// NewHTTPServer builds the API server over the wired services.
func (s *Services) NewHTTPServer(version, buildTime string) (*http.Server, error) {
	metrics, err := middleware.NewMetrics()
	if err != nil {
		return nil, err
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            version,
		BuildTime:          buildTime,
		Logger:             s.Logger,
		ServiceName:        APIServiceName,
		Metrics:            metrics,
		RequireTLS:         s.Config.Server.RequireTLS,
		ExpensiveRateLimit: s.Config.RateLimit.Expensive,
		StandardRateLimit:  s.Config.RateLimit.Standard,
		Advisor:            s.Advisor,
		ReportService:      s.Reports,
		FeatureFlagService: s.Flags,
		Health:             s.Registry,
	})

	return &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		IdleTimeout:  s.Config.Server.IdleTimeout,
	}, nil
}

// Serve runs server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
