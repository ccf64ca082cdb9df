package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/pulse/internal/api"
	"github.com/dgnsrekt/pulse/internal/audio"
	"github.com/dgnsrekt/pulse/internal/bridge"
	"github.com/dgnsrekt/pulse/internal/browser"
	"github.com/dgnsrekt/pulse/internal/capture"
	"github.com/dgnsrekt/pulse/internal/cdpengine"
	"github.com/dgnsrekt/pulse/internal/config"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/history"
	"github.com/dgnsrekt/pulse/internal/metrics"
	"github.com/dgnsrekt/pulse/internal/netutil"
	"github.com/dgnsrekt/pulse/internal/notify"
	"github.com/dgnsrekt/pulse/internal/relay"
	"github.com/dgnsrekt/pulse/internal/snapshot"
	"github.com/dgnsrekt/pulse/internal/transport"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	shutdownTimeout   = 10 * time.Second
	journalBufferSize = 256
	journalMaxSizeMB  = 50
)

var errBrowserGone = errors.New("browser connection lost")

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flagSet := pflag.NewFlagSet("pulse", pflag.ContinueOnError)
	cfg.AddFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("pulse config loaded",
		"agent_url", cfg.AgentURL,
		"user_id", cfg.UserID,
		"session_id", cfg.SessionID,
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"launch_browser", cfg.LaunchBrowser,
		"capture_interval", cfg.CaptureInterval,
		"log_level", cfg.LogLevel,
		"snapshot_dir", cfg.SnapshotDir,
		"history_dir", cfg.HistoryDir,
	)

	if err := run(cfg); err != nil {
		slog.Error("pulse stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress:   cfg.CDPAddress,
			CDPPort:      cfg.CDPPort,
			ProfileDir:   cfg.ProfileDir,
			Binary:       cfg.BrowserBinary,
			WindowWidth:  cfg.WindowWidth,
			WindowHeight: cfg.WindowHeight,
		})
		if err := launcher.Launch(ctx); err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer launcher.Stop()
	}

	eng, err := cdpengine.Connect(ctx, cfg.CDPURL())
	if err != nil {
		return fmt.Errorf("connect browser at %s: %w", cfg.CDPURL(), err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Debug("browser engine close failed", "error", err)
		}
	}()

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		return err
	}

	journal := history.NewJournal(cfg.HistoryDir, "visits", journalBufferSize, journalMaxSizeMB)
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Warn("history journal close failed", "error", err)
		}
	}()

	m := metrics.New()
	broker := relay.NewBroker()
	hub := audio.NewHub()

	var capturer audio.Capturer = hub
	if cfg.MicPath != "" {
		capturer = audio.NewFileCapturer(cfg.MicPath)
	}

	channel := transport.NewChannel(transport.Options{
		URL:            transport.Endpoint(cfg.AgentURL, cfg.UserID, cfg.SessionID),
		ReconnectDelay: cfg.ReconnectDelay,
		Metrics:        m,
	})

	b := bridge.New(bridge.Options{
		Engine:         eng,
		Sender:         channel,
		Capturer:       capturer,
		Player:         hub,
		Broker:         broker,
		Snapshots:      snapStore,
		History:        history.NewRecorder(cfg.SessionID, journal, nil),
		Metrics:        m,
		Notifier:       notify.New(cfg.NtfyURL, &http.Client{Timeout: 10 * time.Second}, notify.DefaultInterval),
		Window:         engine.Size{Width: cfg.WindowWidth, Height: cfg.WindowHeight},
		HeaderHeight:   cfg.HeaderHeight,
		ActionTimeout:  cfg.ActionTimeout,
		CaptureMaxDim:  cfg.CaptureMaxDim,
		CaptureQuality: cfg.CaptureQuality,
		NotifyAfter:    cfg.NotifyAfter,
	})
	channel.SetHandler(b)

	sampler := capture.NewLoop(b.CaptureTarget, b.HandleFrame, capture.Options{
		Interval: cfg.CaptureInterval,
		MaxDim:   cfg.CaptureMaxDim,
		Quality:  cfg.CaptureQuality,
		OnSkip:   b.CaptureSkipped,
	})

	ln, err := netutil.Listen(cfg.BindAddr, cfg.BindFallback)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.BindAddr, err)
	}
	srv := &http.Server{
		Handler: api.NewServer(b, api.Options{
			Snapshots: snapStore,
			Events:    broker,
			Audio:     hub,
			Metrics:   m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error {
		addr := ln.Addr().String()
		slog.Info("pulse listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sampler.Start(gctx); err != nil {
			return fmt.Errorf("start capture loop: %w", err)
		}
		select {
		case <-eng.Done():
			sampler.Stop()
			return errBrowserGone
		case <-gctx.Done():
			sampler.Stop()
			return nil
		}
	})
	g.Go(func() error {
		openStartupSurfaces(gctx, b, cfg.SurfacesFile)
		return nil
	})

	err = g.Wait()
	slog.Info("pulse shutting down")
	return err
}

func openStartupSurfaces(ctx context.Context, b *bridge.Bridge, path string) {
	startup, err := config.LoadStartupSurfaces(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no startup surfaces file", "path", path)
		} else {
			slog.Warn("startup surfaces skipped", "path", path, "error", err)
		}
		return
	}
	ids := make([]int, 0, len(startup.Surfaces))
	for _, s := range startup.Surfaces {
		info, err := b.OpenSurface(ctx, s.URL)
		if err != nil {
			slog.Warn("startup surface failed", "url", s.URL, "error", err)
			continue
		}
		ids = append(ids, info.ID)
	}
	if startup.Active > 0 && startup.Active <= len(ids) {
		if err := b.ActivateSurface(ctx, ids[startup.Active-1]); err != nil {
			slog.Warn("startup activate failed", "surface_id", ids[startup.Active-1], "error", err)
		}
	}
	slog.Info("startup surfaces opened", "count", len(ids))
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
