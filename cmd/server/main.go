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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"dealdesk/internal/jwttoken"
	listinghandler "dealdesk/internal/listing/handler"
	listingmetrics "dealdesk/internal/listing/metrics"
	listingports "dealdesk/internal/listing/ports"
	listingservice "dealdesk/internal/listing/service"
	listingmemory "dealdesk/internal/listing/store/memory"
	listingpg "dealdesk/internal/listing/store/postgres"
	pipelinehandler "dealdesk/internal/pipeline/handler"
	pipelinemetrics "dealdesk/internal/pipeline/metrics"
	pipelineports "dealdesk/internal/pipeline/ports"
	pipelineservice "dealdesk/internal/pipeline/service"
	"dealdesk/internal/pipeline/store/idempotency"
	pipelinememory "dealdesk/internal/pipeline/store/memory"
	pipelinepg "dealdesk/internal/pipeline/store/postgres"
	"dealdesk/internal/platform/config"
	"dealdesk/internal/platform/database"
	"dealdesk/internal/platform/httpserver"
	"dealdesk/internal/platform/logger"
	"dealdesk/internal/platform/metrics"
	"dealdesk/internal/platform/middleware"
	platformredis "dealdesk/internal/platform/redis"
	audit "dealdesk/pkg/platform/audit"
	audithandler "dealdesk/pkg/platform/audit/handler"
	"dealdesk/pkg/platform/audit/publisher"
	auditmemory "dealdesk/pkg/platform/audit/store/memory"
	auditpg "dealdesk/pkg/platform/audit/store/postgres"
	"dealdesk/pkg/platform/audit/worker"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Storage. Without DATABASE_URL everything runs in process memory,
	// which is enough for local development.
	var (
		db            *database.DB
		auditStore    audit.Store
		propertyStore pipelineports.PropertyStore
		listingStore  listingports.ListingStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		auditStore = auditpg.New(db.SQL)
		propertyStore = pipelinepg.New(db.Pool)
		listingStore = listingpg.New(db.Pool)
		log.Info("connected to postgres")
	} else {
		memSink := auditmemory.NewInMemoryStore()
		auditStore = memSink
		propertyStore = pipelinememory.NewInMemoryPropertyStore(memSink)
		listingStore = listingmemory.NewInMemoryListingStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	auditPub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer auditPub.Close()

	// Idempotency cache. Optional: the stage machine falls back to stored
	// input hashes when Redis is absent.
	pipelineOpts := []pipelineservice.Option{
		pipelineservice.WithLogger(log),
		pipelineservice.WithAuditPublisher(auditPub),
		pipelineservice.WithMetrics(pipelinemetrics.New()),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		pipelineOpts = append(pipelineOpts,
			pipelineservice.WithIdempotencyCache(idempotency.NewRedisCache(redisClient.Client)),
		)
		log.Info("connected to redis")
	}

	pipelineSvc, err := pipelineservice.New(propertyStore, pipelineOpts...)
	if err != nil {
		return err
	}
	listingSvc, err := listingservice.New(listingStore,
		listingservice.WithLogger(log),
		listingservice.WithAuditPublisher(auditPub),
		listingservice.WithMetrics(listingmetrics.New()),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Audit outbox worker ships events to Kafka for downstream consumers.
	// Needs both Postgres (the outbox lives there) and brokers.
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, kerr := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if kerr != nil {
			return kerr
		}
		defer kafkaClient.Close()

		if err := worker.EnsureTopic(ctx, kafkaClient, cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		outbox := worker.New(auditpg.New(db.SQL), kafkaClient,
			worker.WithTopic(cfg.Kafka.AuditTopic),
			worker.WithLogger(log),
		)
		g.Go(func() error { return outbox.Run(ctx) })
		log.Info("audit outbox worker started", "topic", cfg.Kafka.AuditTopic)
	}

	router := newRouter(cfg, log, pipelineSvc, listingSvc, auditStore, db, redisClient)
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting dealdesk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(
	cfg config.Config,
	log *slog.Logger,
	pipelineSvc *pipelineservice.Service,
	listingSvc *listingservice.Service,
	auditStore audit.Store,
	db *database.DB,
	redisClient *platformredis.Client,
) chi.Router {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if !cfg.AuthDisabled {
			jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "dealdesk", "dealdesk-api")
			r.Use(middleware.RequireAuth(jwtService, log))
		}
		pipelinehandler.New(pipelineSvc, log).Register(r)
		listinghandler.New(listingSvc, log).Register(r)
		audithandler.New(auditStore, log).Register(r)
	})
	return r
}

func healthHandler(db *database.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","postgres":"unreachable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","redis":"unreachable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
