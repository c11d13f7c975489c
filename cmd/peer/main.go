// Command peer is a headless relay client: it hosts or joins a room,
// negotiates direct channels and reports seat latencies. Useful for
// exercising a relay deployment without a browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/infrastructure/blob"
	"playmesh/internal/peer"
	"playmesh/pkg/config"
	"playmesh/pkg/logger"
	"playmesh/pkg/retry"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		serverURL  = flag.String("server", "http://localhost:8080", "relay base URL")
		mode       = flag.String("mode", "host", "host or join")
		room       = flag.String("room", "", "room code (required for join, optional for host)")
		useWS      = flag.Bool("ws", true, "use the websocket transport instead of polling")
		game       = flag.String("game", "", "game image to load when hosting")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zlog := logger.New(cfg.Logging.Level, "console")
	defer zlog.Sync()
	log := zlog.Sugar()

	var transport peer.Transport
	if *useWS {
		transport = peer.NewWSTransport(*serverURL, cfg.Peer.RequestTimeout, log)
	} else {
		transport = peer.NewHTTPTransport(*serverURL, cfg.Peer.PollInterval, cfg.Peer.RequestTimeout, log)
	}

	session := peer.NewSession(transport, peer.SessionConfig{
		Blobs:  blob.NewFileStore(cfg.Blob.Dir),
		WebRTC: peer.WebRTCConfiguration(cfg),
		Reconnect: retry.Config{
			MaxAttempts:  cfg.Peer.ReconnectAttempts,
			InitialDelay: cfg.Peer.ReconnectBase,
			MaxDelay:     cfg.Peer.ReconnectMax,
			Multiplier:   2.0,
		},
		LatencyInterval: cfg.Peer.LatencyInterval,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "host":
		result, err := session.Host(ctx, domain.RoomCode(*room))
		if err != nil {
			log.Fatalw("hosting failed", "error", err)
		}
		fmt.Printf("room code: %s\n", result.Code)
		if *game != "" {
			if err := session.LoadGame(ctx, *game); err != nil {
				log.Fatalw("loading game failed", "error", err)
			}
		}

	case "join":
		if *room == "" {
			log.Fatal("join mode requires -room")
		}
		result, err := session.Join(ctx, domain.RoomCode(*room))
		if err != nil {
			log.Fatalw("joining failed", "error", err)
		}
		fmt.Printf("seat: %d\n", result.Seat)

	default:
		log.Fatalw("unknown mode", "mode", *mode)
	}

	go reportLatencies(ctx, session, log)

	if err := session.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalw("session ended", "error", err)
	}
	session.Leave(context.Background())
}

func reportLatencies(ctx context.Context, session *peer.Session, log *zap.SugaredLogger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for seat := domain.Seat(1); seat <= domain.MaxSeats; seat++ {
				if latency, ok := session.Latency(seat); ok {
					log.Infow("seat latency", "seat", seat, "latency", latency)
				}
			}
		}
	}
}
