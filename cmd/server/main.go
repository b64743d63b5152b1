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

	"golang.org/x/sync/errgroup"

	"lineage/internal/audit"
	"lineage/internal/graph"
	graphmemory "lineage/internal/graph/memory"
	graphpostgres "lineage/internal/graph/postgres"
	"lineage/internal/identity"
	personhandler "lineage/internal/person/handler"
	personservice "lineage/internal/person/service"
	"lineage/internal/platform/config"
	"lineage/internal/platform/httpserver"
	"lineage/internal/platform/logger"
	"lineage/internal/platform/metrics"
	"lineage/internal/platform/middleware"
	platformpostgres "lineage/internal/platform/postgres"
	platformredis "lineage/internal/platform/redis"
	relationshiphandler "lineage/internal/relationship/handler"
	relationshipservice "lineage/internal/relationship/service"
	httptransport "lineage/internal/transport/http"
	"lineage/internal/tree"
	treecache "lineage/internal/tree/cache"
	treehandler "lineage/internal/tree/handler"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	if cfg.GatewaySigningKey == config.DevSigningKey {
		log.Warn("GATEWAY_SIGNING_KEY not set, accepting assertions signed with the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err.Error())
		os.Exit(1)
	}
	defer closeStore()

	health := func() error { return nil }

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis initialization failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		health = func() error {
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(hctx)
		}
	}

	auditor, closeAudit, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		log.Error("audit sink initialization failed", "error", err.Error())
		os.Exit(1)
	}
	defer closeAudit()

	var cache tree.Cache
	if redisClient != nil {
		cache = treecache.NewRedis(redisClient.Client, cfg.TreeCacheTTL, log)
	} else {
		cache = treecache.NewMemory(cfg.TreeCacheTTL)
	}

	trees := tree.New(store,
		tree.WithLogger(log),
		tree.WithMetrics(m),
		tree.WithCache(cache),
	)

	relationships := relationshipservice.New(store,
		relationshipservice.WithLogger(log),
		relationshipservice.WithMetrics(m),
		relationshipservice.WithAuditPublisher(auditor),
		relationshipservice.WithTreeInvalidator(trees),
	)

	allocator := identity.New(store,
		identity.WithLogger(log),
		identity.WithMetrics(m),
	)

	persons := personservice.New(store, allocator,
		personservice.WithLogger(log),
		personservice.WithMetrics(m),
		personservice.WithAuditPublisher(auditor),
		personservice.WithTreeInvalidator(trees),
		personservice.WithParentLinker(relationships),
	)

	verifier := middleware.NewAccessVerifier(cfg.GatewaySigningKey)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Verifier:      verifier,
		Persons:       personhandler.New(persons, log),
		Relationships: relationshiphandler.New(relationships, log),
		Trees:         treehandler.New(trees, log),
		Health:        health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lineage server", "addr", cfg.Addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStore selects the graph backend. Memory serves single-process
// deployments and tests; postgres is the durable default for production.
func buildStore(ctx context.Context, cfg config.Server) (graph.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := platformpostgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := graphpostgres.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return graphmemory.New(), func() {}, nil
	}
}

// buildAuditPublisher wires the audit trail. Without brokers configured the
// trail stays in process memory, which is enough for development.
func buildAuditPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		publisher := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithPublisherLogger(log))
		return publisher, publisher.Close, nil
	}
	sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	publisher := audit.NewPublisher(sink,
		audit.WithPublisherLogger(log),
		audit.WithAsyncBuffer(256),
	)
	closer := func() {
		publisher.Close()
		sink.Close()
	}
	return publisher, closer, nil
}
