package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blengine/engine/internal/config"
	"github.com/blengine/engine/internal/engine"
	"github.com/blengine/engine/internal/persist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              blengine  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main engine logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Engine.Name)

	// 3. Engine context
	eng, err := engine.New(cfg, log)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer eng.Close()

	// 4. Optional PostgreSQL snapshot store
	var repo *persist.SnapshotRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool, log.Named("migrate")); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		repo = persist.NewSnapshotRepo(db)
		eng.EnablePersistence(repo)
		cancel()
		fmt.Println()
	}

	// 5. Prefabs, scripts and the starting world
	printSection("content")
	if cfg.Prefab.Path != "" {
		if err := eng.LoadPrefabs(cfg.Prefab.Path); err != nil {
			return fmt.Errorf("prefabs: %w", err)
		}
		printStat("prefabs", eng.Prefabs().Count())
	}
	if cfg.Scripting.Enabled {
		if err := eng.LoadScripts(cfg.Scripting.Dir); err != nil {
			return fmt.Errorf("scripts: %w", err)
		}
		printOK("scripts loaded from " + cfg.Scripting.Dir)
	}

	restored, err := restoreWorld(eng, repo, cfg.Database.SnapshotName)
	if err != nil {
		return err
	}
	if !restored && cfg.Prefab.Scene != "" {
		n, err := eng.LoadScene(cfg.Prefab.Scene)
		if err != nil {
			return fmt.Errorf("scene: %w", err)
		}
		printStat("scene entities", n)
	}
	printStat("live entities", eng.Registry().Count())
	fmt.Println()

	// 6. Systems and frame loop
	eng.RegisterDefaultSystems(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("ready")
	printReady(fmt.Sprintf("frame loop started (frame: %s, systems: %d)", cfg.Engine.FrameRate, eng.Runner().Len()))
	fmt.Println()

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("frame loop: %w", err)
	}
	log.Info("shutdown signal received", zap.Uint64("frames", eng.Frames()))

	// Save before stopping
	if repo != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.SaveSnapshot(saveCtx); err != nil {
			log.Error("final snapshot failed", zap.Error(err))
		}
	}
	log.Info("engine stopped")
	return nil
}

// restoreWorld loads the named snapshot when a store is configured. It
// reports whether a snapshot was found.
func restoreWorld(eng *engine.Engine, repo *persist.SnapshotRepo, name string) (bool, error) {
	if repo == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := repo.Load(ctx, name)
	if err != nil {
		return false, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	if snap == nil {
		return false, nil
	}
	if err := eng.RestoreSnapshot(name, snap); err != nil {
		return false, err
	}
	printOK(fmt.Sprintf("snapshot %q restored", name))
	return true, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "", "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	default:
		return nil, errors.New("logging.format must be json or console")
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
