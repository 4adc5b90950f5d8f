package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/phoenix-visual-support/signal-relay/internal/config"
	"github.com/phoenix-visual-support/signal-relay/internal/httpserver"
	"github.com/phoenix-visual-support/signal-relay/internal/metrics"
	"github.com/phoenix-visual-support/signal-relay/internal/origin"
	"github.com/phoenix-visual-support/signal-relay/internal/relay"
	"github.com/phoenix-visual-support/signal-relay/internal/session"
	"github.com/phoenix-visual-support/signal-relay/internal/signaling"
	"github.com/phoenix-visual-support/signal-relay/internal/turnrest"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: failed to load .env:", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	policy, err := origin.NewPolicy(cfg.AllowedOrigins)
	if err != nil {
		logger.Error("failed to configure origin policy", "err", err)
		os.Exit(2)
	}

	var turn *turnrest.Generator
	if cfg.TURNREST.Enabled() {
		turn, err = turnrest.NewGenerator(turnrest.Config{
			SharedSecret:   cfg.TURNREST.SharedSecret,
			TTL:            time.Duration(cfg.TURNREST.TTLSeconds) * time.Second,
			UsernamePrefix: cfg.TURNREST.UsernamePrefix,
		})
		if err != nil {
			logger.Error("failed to configure turn rest credentials", "err", err)
			os.Exit(2)
		}
	}

	logger.Info("starting phoenix-signal-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"static_dir", cfg.StaticDir,
		"session_ttl", cfg.SessionTTL,
		"session_sweep_interval", cfg.SessionSweepInterval,
		"session_expiry_basis", cfg.SessionExpiryBasis,
		"max_sessions", cfg.MaxSessions,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest_enabled", turn != nil,
	)

	logStartupSecurityWarnings(logger, cfg)

	m := metrics.New()
	registry := session.NewRegistry(session.Options{
		MaxSessions: cfg.MaxSessions,
		Basis:       cfg.SessionExpiryBasis,
	})
	hub := relay.NewHub(registry, m, logger)

	sig := signaling.NewServer(signaling.Config{
		Hub:               hub,
		Metrics:           m,
		Logger:            logger,
		CheckOrigin:       policy.AllowRequest,
		MaxMessageBytes:   cfg.MaxSignalingMessageBytes,
		MessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		SendQueue:         cfg.SignalingSendQueue,
		IdleTimeout:       cfg.SignalingWSIdleTimeout,
		PingInterval:      cfg.SignalingWSPingInterval,
	})

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built}, httpserver.Deps{
		Registry:  registry,
		Metrics:   m,
		Policy:    policy,
		Signaling: sig,
		TURN:      turn,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := &session.Sweeper{
		Registry:  registry,
		Retention: cfg.SessionTTL,
		Interval:  cfg.SessionSweepInterval,
		Logger:    logger,
		OnExpired: func(ids []string) {
			m.Add(metrics.SessionsExpired, uint64(len(ids)))
			hub.NotifyExpired(ids)
		},
	}
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		stop()
		<-sweepDone
		hub.Close()
		registry.Clear()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections, so close the peers
	// explicitly once new traffic has stopped.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	hub.Close()
	<-sweepDone
	registry.Clear()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags values, falling back to VCS stamps for go run / dev builds.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}
	return commit, buildTime
}
