package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/signbridge/internal/app"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/server"
	"github.com/ayusman/signbridge/internal/store"
	"github.com/ayusman/signbridge/internal/tray"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "signbridge: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.Component("main")
	logger.Info().Str("version", version).Msg("SignBridge - sign language translator")

	dataDir, err := cfg.DataPath()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare data directory")
	}

	st, err := store.New(filepath.Join(dataDir, "signbridge.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer st.Close()

	translator, err := app.New(app.Config{Settings: cfg, Store: st})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build translator")
	}
	if err := translator.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start translator")
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(dataDir)
	}
	if staticDir != "" {
		logger.Info().Str("dir", staticDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:    staticDir,
		Version:      version,
		Metrics:      cfg.MetricsEnabled,
		Translator:   translator.Controller(),
		Artifacts:    translator.Resources(),
		Store:        st,
		Preview:      translator.Preview(),
		Transcriber:  translator.Transcriber(),
		Synthesizer:  translator.Synthesizer(),
		HealthChecks: translator.HealthChecks(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	if cfg.Tray {
		runTray(ctx, stop, translator, "http://localhost"+addr)
	} else {
		<-ctx.Done()
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}
	translator.Stop()
}

// runTray blocks on the tray loop until quit is chosen or ctx is cancelled.
func runTray(ctx context.Context, stop context.CancelFunc, translator *app.App, url string) {
	logger := observability.Component("tray")
	ctrl := translator.Controller()

	st := ctrl.Mode()
	t := tray.New(st.Direction, st.Variant)
	t.OnToggleDirection(func() {
		if err := ctrl.ToggleDirection(); err != nil {
			logger.Warn().Err(err).Msg("toggle direction failed")
		}
	})
	t.OnToggleVariant(func() {
		if err := ctrl.ToggleVariant(); err != nil {
			logger.Warn().Err(err).Msg("toggle variant failed")
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("failed to open browser")
		}
	})
	t.OnQuit(stop)

	snapshots, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	go func() {
		for snap := range snapshots {
			t.SetMode(snap.Direction, snap.Variant)
			t.SetLastText(snap.Text)
		}
	}()

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web" and <data dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
