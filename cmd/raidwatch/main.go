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
	"go.uber.org/zap/zapcore"

	"github.com/raidwatch/raidwatch/internal/config"
	"github.com/raidwatch/raidwatch/internal/definitions"
	"github.com/raidwatch/raidwatch/internal/logtail"
	"github.com/raidwatch/raidwatch/internal/overlay"
	"github.com/raidwatch/raidwatch/internal/replay"
	"github.com/raidwatch/raidwatch/internal/repository"
	"github.com/raidwatch/raidwatch/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	replayPath = flag.String("replay", "", "replay a recorded combat log instead of tailing the live one")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting raidwatch",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	bundle, err := definitions.Load(cfg.Definitions.Dir, logger)
	if err != nil {
		logger.Fatal("failed to load definitions", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if *replayPath != "" {
		runReplay(ctx, bundle, *replayPath, logger)
		return
	}

	var recorder repository.Recorder = repository.NoopRecorder{}
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		recorder = repository.NewEncounterRepository(db, logger)
	}

	sess := session.New(bundle, session.Config{Live: true, Recorder: recorder}, logger)

	var overlaySrv *overlay.Server
	if cfg.Overlay.Enabled {
		overlaySrv = overlay.NewServer(cfg.Overlay, logger)
		go func() {
			if err := overlaySrv.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("overlay server error", zap.Error(err))
			}
		}()
	}

	tailer := logtail.New(cfg.Log.Dir, cfg.Log.PollInterval, logger)
	lines := make(chan logtail.Line, 256)
	go func() {
		if err := tailer.Run(ctx, lines); err != nil && ctx.Err() == nil {
			logger.Error("log tailer error", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("raidwatch initialized",
		zap.String("log_dir", cfg.Log.Dir),
		zap.Int("bosses", len(bundle.Bosses)),
		zap.Int("effects", len(bundle.Effects)),
		zap.Int("timers", len(bundle.Timers)),
		zap.Bool("overlay", cfg.Overlay.Enabled),
		zap.Bool("recording", cfg.Database.Enabled),
	)

	runLive(ctx, cfg, sess, overlaySrv, lines)

	logger.Info("raidwatch stopped")
}

// runLive is the single goroutine that owns all session state: log lines,
// tick-driven expiry and overlay publishing are serialized here.
func runLive(ctx context.Context, cfg *config.Config, sess *session.Session, overlaySrv *overlay.Server, lines <-chan logtail.Line) {
	ticker := time.NewTicker(cfg.Session.TickInterval)
	defer ticker.Stop()

	publish := time.NewTicker(cfg.Overlay.SnapshotInterval)
	defer publish.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			sess.HandleLine(ctx, line.Text)
		case <-ticker.C:
			// Log timestamps drive the pipeline clock; a quiet log still
			// needs tombstone purging at the last seen instant.
			if last := sess.LastTimestamp(); !last.IsZero() {
				sess.Tick(last)
			}
		case <-publish.C:
			if overlaySrv != nil {
				overlaySrv.Publish(sess.Snapshot(sess.LastTimestamp()), sess.DrainAlerts())
			}
		}
	}
}

func runReplay(ctx context.Context, bundle *definitions.Bundle, path string, logger *zap.Logger) {
	player := replay.NewPlayer(bundle, logger)
	res, err := player.RunFile(ctx, path)
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}
	logger.Info("replay finished",
		zap.Int("lines", res.Lines),
		zap.Int("encounters", res.Encounters),
		zap.String("area", res.Final.Area),
	)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
