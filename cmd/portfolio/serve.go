package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mvpetrera/portfolio/internal/config"
	"github.com/mvpetrera/portfolio/internal/content"
	"github.com/mvpetrera/portfolio/internal/feed"
	"github.com/mvpetrera/portfolio/internal/subscribers"
	"github.com/mvpetrera/portfolio/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the site on $PORT (default 8080).

Storage is chosen with STORAGE_TYPE: in-memory (default), postgres or sqlite.
SQL backends read DATABASE_URL and are migrated on start. Markdown content
is reloaded whenever a file under the content directory changes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	library, err := content.NewLibrary(cfg.ContentDir, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	site, err := web.NewServer(web.Options{
		Feed:            feed.NewService(store, logger),
		Content:         library,
		Subscribers:     subscribers.NewClient(cfg.SiteBaseURL, &http.Client{Timeout: 5 * time.Second}, logger),
		Registry:        registry,
		Logger:          logger,
		SubscriberCount: cfg.Subscribers,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           site.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server is running", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return library.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
