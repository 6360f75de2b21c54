// Command server boots the full compliance-core process: config, database
// pool + schema bootstrap, token service, pattern engine, feedback system,
// regulatory monitor, and the HTTP API surface registered through
// internal/registry. Grounded on cmd/appserver/main.go and cmd/gateway/main.go's
// flag/log.Fatalf/signal-channel/http.Server-with-timeouts shape; generalized
// to this module's component set instead of the teacher's blockchain stack.
package main

import (
	"context"
	"log"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/feedback"
	"github.com/regulens/compliance-core/internal/handlers"
	"github.com/regulens/compliance-core/internal/httpclient"
	"github.com/regulens/compliance-core/internal/monitor"
	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
	"github.com/regulens/compliance-core/pkg/auth"
	"github.com/regulens/compliance-core/pkg/config"
	"github.com/regulens/compliance-core/pkg/logging"
	"github.com/regulens/compliance-core/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(rootCtx, database.Config{
		DSN:            cfg.Database.DSN(),
		MaxConnections: cfg.Database.MaxConnections,
		AcquireTimeout: cfg.Database.AcquireTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("connect to postgres")
	}

	bootstrapCtx, bootstrapCancel := context.WithTimeout(rootCtx, 30*time.Second)
	err = pool.Bootstrap(bootstrapCtx, database.SchemaDDL)
	bootstrapCancel()
	if err != nil {
		log.WithError(err).Fatal("bootstrap schema")
	}

	refreshStore := database.NewRefreshStore(pool)
	tokens, err := auth.NewService(cfg.Auth.JWTSecret, refreshStore, cfg.Auth.AccessTokenTTLHours, cfg.Auth.RefreshTokenTTLDays)
	if err != nil {
		log.WithError(err).Fatal("build token service")
	}

	patternStore := database.NewPatternStore(pool)
	patterns := pattern.New(pattern.Config{
		MinOccurrences:  cfg.Pattern.MinOccurrences,
		MinConfidence:   cfg.Pattern.MinConfidence,
		RetentionHours:  cfg.Pattern.RetentionHours,
		PerEntityCap:    cfg.Pattern.PerEntityCap,
		CleanupInterval: cfg.Pattern.CleanupInterval,
	}, log, patternStore)

	feedbackStore := database.NewFeedbackStore(pool)
	feedbackSys := feedback.New(feedback.Config{
		MaxPerEntity:        cfg.Feedback.MaxPerEntity,
		RetentionHours:      cfg.Feedback.RetentionHours,
		MinForLearning:      cfg.Feedback.MinForLearning,
		ConfidenceThreshold: cfg.Feedback.ConfidenceThreshold,
		RealTimeLearning:    cfg.Feedback.RealTimeLearning,
		BatchInterval:       cfg.Feedback.BatchInterval,
		WorkerInterval:      cfg.Feedback.LearningTickInterval,
	}, log, feedbackStore, patterns)

	monitorStore := database.NewMonitorStore(pool)
	httpClient := httpclient.New(time.Duration(cfg.Monitor.ScrapeTimeoutSeconds) * time.Second)

	sources := make([]monitor.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, monitor.Source{
			ID:                   s.ID,
			Name:                 s.Name,
			BaseURL:              s.BaseURL,
			SourceType:           s.SourceType,
			CheckIntervalMinutes: s.CheckIntervalMinutes,
			Active:               s.Active,
		})
	}

	mon := monitor.New(monitor.Config{
		ScrapeTimeout:    time.Duration(cfg.Monitor.ScrapeTimeoutSeconds) * time.Second,
		FailureThreshold: cfg.Monitor.FailureThreshold,
		MinBackoff:       time.Duration(cfg.Monitor.MinBackoffMinutes) * time.Minute,
		MaxBackoff:       time.Duration(cfg.Monitor.MaxBackoffHours) * time.Hour,
	}, log, monitorStore, httpClient, patterns, sources)

	h := handlers.New(pool, tokens, patterns, feedbackSys, mon, log)

	reg := registry.New(tokens, log)
	if err := reg.RegisterAll(h.Routes()...); err != nil {
		log.WithError(err).Fatal("register routes")
	}

	go patterns.Run(rootCtx)
	go feedbackSys.Run(rootCtx)
	if err := mon.Start(rootCtx); err != nil {
		log.WithError(err).Fatal("start regulatory monitor")
	}

	mux := http.NewServeMux()
	mux.Handle("/", reg.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)

	server := &http.Server{
		Addr:              ":" + portString(cfg.Server.Port),
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("compliance-core listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	mon.Stop()
	patterns.Wait()
	feedbackSys.Wait()
}

func portString(p int) string {
	if p <= 0 {
		return "3000"
	}
	return strconv.Itoa(p)
}
