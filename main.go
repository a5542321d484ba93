package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Scrimzay/gridsim/internal/config"
	"github.com/Scrimzay/gridsim/internal/server"
	"github.com/Scrimzay/gridsim/internal/ticklog"
	"github.com/Scrimzay/gridsim/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gridsim:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("GRIDSIM_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// PORT wins over the config file (set by the hosting platform)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	gameWorld := world.New(world.Options{Seed: cfg.Sim.Seed}, log.Named("world"))
	if err := gameWorld.InitMap(cfg.Sim.Map); err != nil {
		return err
	}
	if cfg.Sim.Scenario != "" {
		if err := gameWorld.LoadScenario(cfg.Sim.Scenario); err != nil {
			return err
		}
	}

	if cfg.TickLog.Enabled {
		tl := ticklog.NewWriter(cfg.TickLog.Dir, "ticks")
		defer tl.Close()
		gameWorld.SetSink(tl)
		log.Info("tick log enabled", zap.String("dir", cfg.TickLog.Dir))
	}

	broadcaster, err := world.NewBroadcaster(gameWorld, world.BroadcasterOptions{
		TickInterval:      cfg.Sim.TickInterval.Duration,
		BroadcastInterval: cfg.Broadcast.Interval.Duration,
		Autoplay:          cfg.Sim.Autoplay,
		Compress:          cfg.Broadcast.Compress,
	}, log.Named("broadcast"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go broadcaster.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.SetupRouter(broadcaster, gameWorld, log.Named("http")),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.String("map", cfg.Sim.Map))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
