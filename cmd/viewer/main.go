// Command viewer joins a live broadcast from the terminal. It shares the
// document store with the signaling daemon, so it works against any node
// as long as both point at the same redis instance.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Elephantprime/Unhinged-sub000/internal/config"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/session"
	sig "github.com/Elephantprime/Unhinged-sub000/internal/signal"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
	"github.com/Elephantprime/Unhinged-sub000/internal/store/memory"
	"github.com/Elephantprime/Unhinged-sub000/internal/store/redisstore"
	"github.com/Elephantprime/Unhinged-sub000/internal/stream"
)

func main() {
	configDir := flag.String("config", "conf", "directory with configuration files")
	streamID := flag.String("stream", "", "stream id to watch")
	viewerID := flag.String("id", "", "viewer id (random when empty)")
	viewerName := flag.String("name", "anonymous", "display name")
	withCamera := flag.Bool("camera", false, "join with a camera")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})))

	if *streamID == "" {
		slog.Error("missing -stream")
		os.Exit(2)
	}
	if *viewerID == "" {
		*viewerID = uuid.NewString()
	}

	cfg, err := config.LoadAppConfig(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	docs := buildStore(cfg.Store)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target, err := registry.Get(ctx, *streamID)
	if err != nil {
		slog.Error("stream is not live", "stream", *streamID, "error", err)
		os.Exit(1)
	}

	viewer := session.NewViewer(*viewerID, *viewerName, *withCamera, channel, factory,
		session.Config{NegotiationTimeout: cfg.Signaling.NegotiationTimeoutDuration()},
		session.WithTrackHandler(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			slog.Info("receiving media", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		}),
	)

	if err := viewer.Watch(ctx, target, nil); err != nil {
		slog.Error("failed to join stream", "stream", *streamID, "error", err)
		os.Exit(1)
	}
	slog.Info("joined", "stream", target.ID, "title", target.Title, "broadcaster", target.BroadcasterName)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	viewer.Leave()
	slog.Info("left stream", "stream", target.ID)
}

func buildStore(cfg config.StoreConfig) store.DocumentStore {
	if cfg.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.NewStore(rdb, cfg.KeyPrefix)
	}
	return memory.NewStore()
}
