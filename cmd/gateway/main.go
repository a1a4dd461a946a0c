// Command gateway runs the MIGA network-operations gateway: the
// dynamic routing fabric, the role fan-out engine, and the INFER
// event correlation and reasoning tools, exposed as a single
// JSON-RPC-over-HTTP MCP surface.
//
// # Configuration
//
// Environment variables (see internal/config for the full list and
// defaults):
//
//	MIGA_GATEWAY_LISTEN_ADDR      - HTTP listen address (default: ":8000")
//	MIGA_DIRECTORY_URL            - discovery service base URL (default: standalone)
//	MIGA_REDIS_ADDR               - event bus Redis address (default: disabled)
//	MIGA_MONGO_URI                - audit log MongoDB URI (default: in-memory)
//	MIGA_ROUTING_REFRESH_INTERVAL - routing table refresh cadence (default: "60s")
//
// # Example
//
//	MIGA_GATEWAY_LISTEN_ADDR=:8000 go run ./cmd/gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/audit"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/bus"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/config"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/directory"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/fanout"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/forwarder"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/incident"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/lifecycle"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/mcpserver"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/rca"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	staticPathF := flag.String("static-backends", "config/static_backends.yaml", "path to the static fallback backend table")
	rcaCatalogF := flag.String("rca-catalog", "config/rca_templates.yaml", "path to the root-cause-analysis template catalog")
	flag.Parse()

	cfg := config.FromEnv()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	table := capability.NewStore()

	dirClient := directory.New(cfg.DirectoryURL, cfg.DirectoryTimeout, cfg.DirectoryCacheTTL, logger, metrics)

	eventBus := bus.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ChannelPrefix, logger, metrics)
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "close event bus"})
		}
	}()

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build audit store: %w", err)
	}
	defer closeAudit()
	auditor := audit.New(auditStore, eventBus)

	fwd := forwarder.New(cfg.ForwarderTimeout, cfg.ForwarderMaxRetries, logger, metrics, tracer)
	engine := fanout.New(table, fwd, fanout.WithLogger(logger), fanout.WithMetrics(metrics), fanout.WithTracer(tracer))

	buffer := ingest.New(cfg.IngestBufferCapacity, cfg.IngestBufferEvictTo)
	history := incident.New(cfg.IncidentHistoryCapacity)

	catalog, err := rca.LoadCatalog(*rcaCatalogF)
	if err != nil {
		return fmt.Errorf("load rca catalog: %w", err)
	}

	mgr := lifecycle.New(lifecycle.Config{
		Table:      table,
		Directory:  dirClient,
		StaticPath: *staticPathF,
		SelfRecord: directory.Record{
			Name:        "miga_gateway",
			Version:     "1.0.0",
			Description: "MIGA network-operations gateway: dynamic routing, role fan-out and INFER reasoning",
			Attributes: directory.RecordAttributes{
				Platform:  "gateway",
				Transport: "http",
				Endpoint:  cfg.ListenAddr,
			},
		},
		RefreshInterval: cfg.RoutingRefreshInterval,
		ShutdownGrace:   cfg.ShutdownGrace,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start lifecycle manager: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer stopCancel()
		mgr.Stop(stopCtx)
	}()

	srv, err := mcpserver.New(mcpserver.Deps{
		Engine:             engine,
		Table:              table,
		Buffer:             buffer,
		Catalog:            catalog,
		Auditor:            auditor,
		History:            history,
		CorrelationWindow:  cfg.CorrelationWindowDefault,
		AnomalySensitivity: cfg.AnomalySensitivity,
		Version:            "1.0.0",
		ListenAddr:         cfg.ListenAddr,
		Logger:             logger,
		Metrics:            metrics,
		Tracer:             tracer,
	})
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf(ctx, "gateway listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Print(ctx, log.KV{K: "msg", V: "shutting down"})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildAuditStore constructs the audit.Store configured by cfg: a
// MongoStore when MIGA_MONGO_URI is set, otherwise an in-memory store
// suitable for standalone runs and tests. The returned close function
// disconnects the Mongo client, if one was created.
func buildAuditStore(ctx context.Context, cfg config.Config) (audit.Store, func(), error) {
	if cfg.MongoURI == "" {
		return audit.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	defer cancel()
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	store, err := audit.NewMongoStore(ctx, audit.MongoOptions{
		Client:     client,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Timeout:    cfg.MongoTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build mongo audit store: %w", err)
	}

	closeFn := func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		defer disconnectCancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "disconnect mongo"})
		}
	}
	return store, closeFn, nil
}
