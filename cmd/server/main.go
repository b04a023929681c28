// Command server runs the identity verification service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veriflow/internal/audit"
	auditkafka "veriflow/internal/audit/kafka"
	"veriflow/internal/certificate"
	apihttp "veriflow/internal/http"
	"veriflow/internal/platform/config"
	"veriflow/internal/platform/httpserver"
	"veriflow/internal/platform/logger"
	"veriflow/internal/platform/postgres"
	platformredis "veriflow/internal/platform/redis"
	providerhandler "veriflow/internal/provider/handler"
	providermetrics "veriflow/internal/provider/metrics"
	"veriflow/internal/provider/registry"
	"veriflow/internal/provider/selector"
	providerservice "veriflow/internal/provider/service"
	providerstore "veriflow/internal/provider/store"
	"veriflow/internal/verification/handler"
	"veriflow/internal/verification/invoker"
	"veriflow/internal/verification/lifecycle"
	verificationmetrics "veriflow/internal/verification/metrics"
	"veriflow/internal/verification/recorder"
	"veriflow/internal/verification/service"
	requeststore "veriflow/internal/verification/store/request"
	"veriflow/internal/verification/store/reservation"
	resultstore "veriflow/internal/verification/store/result"
	"veriflow/internal/verification/sweeper"
	"veriflow/pkg/platform/middleware/ratelimit"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// providerStore is what the admin service and the registry together need
// from a provider store. Both store implementations satisfy it.
type providerStore interface {
	providerservice.Store
	registry.Store
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores fall back to in-memory when no database is configured, which
	// keeps local development dependency-free.
	var (
		providers providerStore
		requests  lifecycle.RequestStore
		results   recorder.ResultStore
		auditLog  audit.Store
	)
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		providers = providerstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		results = resultstore.NewPostgres(db)
		auditLog = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		providers = providerstore.NewInMemory()
		requests = requeststore.NewInMemory()
		results = resultstore.NewInMemory()
		auditLog = audit.NewInMemoryStore()
		log.Warn("no postgres configured, using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.Redis())
	if err != nil {
		return err
	}
	var reservations recorder.ReservationStore
	if rdb != nil {
		defer rdb.Close()
		reservations = reservation.NewRedis(rdb.Client, 24*time.Hour)
	} else {
		reservations = reservation.NewInMemory()
	}

	var sinks []audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit events publishing to kafka", "topic", cfg.AuditTopic)
	}
	auditPublisher := audit.NewPublisher(auditLog, log, sinks...)

	pMetrics := providermetrics.New()
	vMetrics := verificationmetrics.New()

	reg := registry.New(providers)
	sel := selector.New(reg, pMetrics)

	providerSvc := providerservice.New(providers,
		providerservice.WithLogger(log),
		providerservice.WithAuditPublisher(auditPublisher),
		providerservice.WithMetrics(pMetrics),
	)

	rec := recorder.New(results,
		recorder.WithReservationStore(reservations),
		recorder.WithLogger(log),
		recorder.WithAuditPublisher(auditPublisher),
		recorder.WithMetrics(vMetrics),
	)
	lc := lifecycle.New(requests,
		lifecycle.WithLogger(log),
		lifecycle.WithAuditPublisher(auditPublisher),
		lifecycle.WithMetrics(vMetrics),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(vMetrics),
	}
	if cfg.CertSigningKey != "" {
		opts = append(opts, service.WithCertificateIssuer(
			certificate.NewIssuer(cfg.CertSigningKey, cfg.CertIssuer),
		))
	}
	verificationSvc := service.New(sel, rec, lc,
		invoker.NewSimulated(0),
		service.Policy{
			ApprovalThreshold: cfg.ApprovalThreshold,
			ApprovalTTL:       cfg.ApprovalTTL,
		},
		opts...,
	)

	var limiter *ratelimit.Middleware
	if cfg.RateLimit > 0 {
		var limiterStore ratelimit.Store
		if rdb != nil {
			limiterStore = ratelimit.NewRedisStore(rdb.Client)
		} else {
			limiterStore = ratelimit.NewInMemoryStore()
		}
		limiter = ratelimit.New(limiterStore, cfg.RateLimit, cfg.RateLimitWindow, log)
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Verification: handler.New(verificationSvc, log),
		Provider:     providerhandler.New(providerSvc, log),
		RateLimit:    limiter,
		AdminToken:   cfg.AdminToken,
		Logger:       log,
	})
	srv := httpserver.New(cfg.Addr, router)

	sw := sweeper.New(lc, cfg.SweepInterval, cfg.SweepCutoff,
		sweeper.WithLogger(log),
		sweeper.WithAuditPublisher(auditPublisher),
		sweeper.WithMetrics(vMetrics),
	)
	go func() {
		if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting veriflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
