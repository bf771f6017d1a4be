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
	log "github.com/sirupsen/logrus"

	"bus-tracker/algo"
	"bus-tracker/archive"
	"bus-tracker/config"
	"bus-tracker/db"
	"bus-tracker/handler"
	"bus-tracker/metrics"
	"bus-tracker/publisher"
	"bus-tracker/routing"
	"bus-tracker/stream"
)

// store is what both backends provide.
type store interface {
	handler.Store
	algo.Store
	archive.Source
	routing.SegmentSource
	IsEmpty(ctx context.Context) (bool, error)
	Import(ctx context.Context, set *db.SeedSet) error
}

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	setupLogging(cfg)
	time.Local = cfg.Location

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		collector.Serve(ctx, cfg.MetricsAddr)
	}

	// 2. Store, with the seed file imported on first run
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	if err := seedIfEmpty(ctx, st, cfg.SeedFile); err != nil {
		log.Fatalf("failed to import seed data: %v", err)
	}

	// 3. Engine and route drawing
	engine := algo.NewEngine(st, cfg.Tunables)
	paths := routing.NewBuilder(newProvider(cfg, collector), st)

	// 4. Fan-out: websocket hub and optional NATS
	hub := stream.NewHub(collector)
	go hub.Run(ctx)

	h := handler.New(st, engine, paths, handler.Options{
		JWTSecret:      []byte(cfg.JWTSecret),
		TokenTTL:       cfg.TokenTTL,
		Retention:      cfg.PositionRetention,
		MetricsHandler: collector.Handler(),
	}).WithStream(hub).WithMetrics(collector)

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, collector)
		if err != nil {
			log.WithError(err).Warn("nats unavailable, position events stay local")
		} else {
			defer pub.Close()
			h.WithPublisher(pub)
		}
	}

	// 5. Archive of aged-out positions
	if cfg.ArchiveEnabled() {
		client := archive.NewS3Client(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
		archiver := archive.New(st, client, archive.Options{
			Bucket:   cfg.S3Bucket,
			After:    cfg.ArchiveAfter,
			Interval: cfg.ArchiveInterval,
		}, collector)
		go archiver.Run(ctx)
		log.WithField("bucket", cfg.S3Bucket).Info("position archive enabled")
	}

	// 6. HTTP server
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "store": cfg.Store, "routing": cfg.RoutingProvider}).Info("bus tracker listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.Store == "memory" {
		log.WithField("ring_size", cfg.RingSize).Info("using in-memory store")
		return db.NewMemoryStore(cfg.RingSize), nil
	}
	gdb, err := db.InitDB(ctx, db.Options{DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	return db.NewGormStore(gdb), nil
}

func seedIfEmpty(ctx context.Context, st store, path string) error {
	empty, err := st.IsEmpty(ctx)
	if err != nil || !empty {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.WithField("file", path).Warn("store is empty and no seed file was found")
		return nil
	}
	set, err := db.LoadSeedFile(path)
	if err != nil {
		return err
	}
	if err := st.Import(ctx, set); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"routes": len(set.Routes),
		"stops":  len(set.Stops),
		"buses":  len(set.Buses),
	}).Info("seed data imported")
	return nil
}

func newProvider(cfg *config.Config, m routing.Metrics) routing.Provider {
	var p routing.Provider
	switch cfg.RoutingProvider {
	case "osrm":
		p = routing.NewOSRM(cfg.OSRMURL, cfg.RoutingTimeout)
	case "graphhopper":
		p = routing.NewGraphHopper(cfg.GraphHopperURL, cfg.GraphHopperAPIKey, cfg.RoutingTimeout)
	default:
		return routing.NoopProvider{}
	}
	return routing.NewCached(p, cfg.RouteCacheSize, cfg.RouteCacheTTL, m)
}
