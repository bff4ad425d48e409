package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/changelog/internal/api"
	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/binding"
	"github.com/persistorai/changelog/internal/config"
	"github.com/persistorai/changelog/internal/db"
	"github.com/persistorai/changelog/internal/db/migrations"
	"github.com/persistorai/changelog/internal/dbpool"
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/middleware"
	"github.com/persistorai/changelog/internal/service"
	"github.com/persistorai/changelog/internal/store"
	"github.com/persistorai/changelog/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the change log API server",
		Long:  "Run the HTTP API and metrics servers. Configuration is read from the environment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, newLogger(cfg.LogLevel), !skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations at startup")
	return cmd
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if lvl != logrus.DebugLevel && lvl != logrus.TraceLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	return log
}

func buildFilter(path string) (filter.Filter, error) {
	if path == "" {
		return filter.AllowAll{}, nil
	}

	rules, err := filter.LoadRules(path)
	if err != nil {
		return nil, err
	}

	return rules.Build()
}

func buildKeySet(keys []config.APIKey) *middleware.KeySet {
	if len(keys) == 0 {
		return nil
	}

	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[k.Principal] = k.Key.Value()
	}

	return middleware.NewKeySet(m)
}

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) error {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{
		MaxConns:      cfg.DBMaxConns,
		Log:           log,
		SlowThreshold: cfg.SlowQuery,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	prometheus.MustRegister(pool.Collectors()...)

	if migrate {
		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			return err
		}
	}

	logFilter, err := buildFilter(cfg.FilterFile)
	if err != nil {
		return err
	}

	changeLog := store.NewChangeLogStore(store.Base{Pool: pool, Log: log})
	encoder := binding.NewRegistry(nil)

	sessions := func(uow store.UnitOfWork) audit.Session {
		return store.NewSession(changeLog, uow)
	}

	hub := ws.NewHub(log)

	keys := buildKeySet(cfg.APIKeys)
	if keys == nil {
		log.Warn("no API keys configured, the API is unauthenticated")
	}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:        log,
		Database:   db.NewProbe(pool),
		ChangeSets: service.NewChangeSetService(changeLog, log),
		History:    service.NewHistoryService(changeLog, log),
		Records: service.NewRecordService(sessions, encoder, service.RecordOptions{
			Enabled:   cfg.ChangelogEnabled,
			Filter:    logFilter,
			Publisher: hub,
		}, log),
		CORSOrigins:      cfg.CORSOrigins,
		Version:          config.Version,
		ChangelogEnabled: cfg.ChangelogEnabled,
		Keys:             keys,
		Hub:              hub,
	})

	apiSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	for _, srv := range []*http.Server{apiSrv, metricsSrv} {
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	return g.Wait()
}
