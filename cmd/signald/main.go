package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"github.com/Elephantprime/Unhinged-sub000/internal/config"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/server"
	"github.com/Elephantprime/Unhinged-sub000/internal/session"
	sig "github.com/Elephantprime/Unhinged-sub000/internal/signal"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
	"github.com/Elephantprime/Unhinged-sub000/internal/store/memory"
	"github.com/Elephantprime/Unhinged-sub000/internal/store/redisstore"
	"github.com/Elephantprime/Unhinged-sub000/internal/stream"
)

func main() {
	configDir := flag.String("config", "conf", "directory with configuration files")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))

	manager, err := config.NewManager(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := manager.Get()

	docs, err := buildStore(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}

	channel := sig.NewChannel(docs,
		sig.WithWindow(cfg.Signaling.SignalWindow),
		sig.WithStalenessWindow(cfg.Signaling.StalenessWindowDuration()),
	)
	registry := stream.NewRegistry(docs)

	factory, err := peer.NewPionTransportFactory(peer.FactoryConfig{
		ICEServers: cfg.WebRTC.ICEServers,
		PortMin:    cfg.WebRTC.PortMin,
		PortMax:    cfg.WebRTC.PortMax,
	})
	if err != nil {
		slog.Error("failed to initialize webrtc transport factory", "error", err)
		os.Exit(1)
	}

	hub := session.NewHub(channel, registry, factory, docs, session.Config{
		NegotiationTimeout: cfg.Signaling.NegotiationTimeoutDuration(),
		ReconcileInterval:  cfg.Signaling.ReconcileIntervalDuration(),
	})

	srv := server.NewServer(manager, hub, registry, docs)
	srv.Setup()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Listen(); err != nil {
			slog.Error("server stopped", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.StopAll(ctx)
	if err := srv.Shutdown(); err != nil {
		slog.Error("failed to shut down cleanly", "error", err)
		os.Exit(1)
	}
}

func buildStore(cfg config.StoreConfig) (store.DocumentStore, error) {
	switch cfg.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.NewStore(rdb, cfg.KeyPrefix), nil
	default:
		return memory.NewStore(), nil
	}
}
