package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/config"
	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/core/event"
	coresys "github.com/ferrumgo/server/internal/core/system"
	"github.com/ferrumgo/server/internal/handler"
	gonet "github.com/ferrumgo/server/internal/net"
	"github.com/ferrumgo/server/internal/net/packet"
	"github.com/ferrumgo/server/internal/persist"
	"github.com/ferrumgo/server/internal/scripting"
	"github.com/ferrumgo/server/internal/system"
	"github.com/ferrumgo/server/internal/world"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               Ferrum  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run(args []string) error {
	fs := flag.NewFlagSet("ferrum", flag.ContinueOnError)
	doImport := fs.Bool("import", false, "import world regions from the import directory, then exit")
	batchSize := fs.Int("batch_size", 0, "chunks per import batch (overrides [import].batch_size)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("FERRUM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *batchSize > 0 {
		cfg.Import.BatchSize = *batchSize
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	configureDeadlock(cfg.ECS, log)
	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Connect to PostgreSQL and run migrations
	var chunks *persist.ChunkRepo
	if cfg.Database.Enabled {
		printSection("database")
		db, err := openDatabase(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		chunks = persist.NewChunkRepo(db)
	}

	// 4. ECS world
	ecsWorld := ecs.NewWorld(log)

	// 5. World import mode
	if *doImport {
		return runImport(ctx, cfg.Import, ecsWorld, chunks, log)
	}

	// 6. Spawn area from the chunk store
	if chunks != nil {
		n, err := world.PreloadSpawn(ctx, ecsWorld, chunks, world.DefaultDimension, cfg.Server.SpawnChunkRadius, log)
		if err != nil {
			return fmt.Errorf("spawn preload: %w", err)
		}
		printOK(fmt.Sprintf("spawn area: %d chunks", n))
	}

	// 7. Scripting and packet handlers
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()

	bus := event.NewBus()
	subscribeLifecycle(bus, ecsWorld, log)

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     ecsWorld,
		Scripting: engine,
		Events:    bus,
	})

	// 8. Create network server
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, ecsWorld, gonet.SessionConfig{
		InQueueSize:  cfg.Network.InQueueSize,
		OutQueueSize: cfg.Network.OutQueueSize,
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 9. Create systems and register with runner
	runner := coresys.NewRunner(log)
	runner.Register(system.NewInputSystem(netServer, pktReg, ecsWorld, bus, cfg.Network.MaxPacketsPerTick, log))
	runner.Register(system.NewMovementSystem(ecsWorld))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewCleanupSystem(ecsWorld))

	// 10. Start game loop
	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("tick loop started (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, cfg.Network.TickRate*4)
			if err := runner.Tick(tickCtx, cfg.Network.TickRate); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("tick failed", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
			log.Info("shutdown signal received")
			netServer.Shutdown()
			log.Info("server stopped")
			return nil
		}
	}
}

// subscribeLifecycle logs player arrivals and departures with the current
// online count.
func subscribeLifecycle(bus *event.Bus, w *ecs.World, log *zap.Logger) {
	event.Subscribe(bus, func(e event.PlayerJoined) {
		log.Info("player online",
			zap.String("name", e.Username),
			zap.Int("online", ecs.Len[component.PlayerIdentity](w.Storage())),
		)
	})
	event.Subscribe(bus, func(e event.ConnectionClosed) {
		log.Info("connection closed", zap.Stringer("entity", e.Entity), zap.String("ip", e.IP))
	})
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*persist.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(connectCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(connectCtx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()
	return db, nil
}

func runImport(ctx context.Context, cfg config.ImportConfig, w *ecs.World, chunks *persist.ChunkRepo, log *zap.Logger) error {
	printSection("import")
	dir, err := cfg.ImportDir()
	if err != nil {
		return err
	}

	var sink world.ChunkSink
	if chunks != nil {
		sink = chunks
	} else {
		log.Warn("database disabled, imported chunks are not persisted")
	}

	res, err := world.NewImporter(w, sink, cfg, log).Run(ctx, dir)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	printOK(fmt.Sprintf("imported %d chunks in %s (%d skipped)", res.Imported, world.FormatDuration(res.Elapsed), res.Skipped))

	if chunks != nil {
		stored, err := chunks.Count(ctx, world.DefaultDimension)
		if err != nil {
			return fmt.Errorf("count stored chunks: %w", err)
		}
		log.Info("chunk store", zap.String("dimension", world.DefaultDimension), zap.Int("stored", stored))
		printOK(fmt.Sprintf("%d %s chunks stored", stored, world.DefaultDimension))
	}
	return nil
}

// configureDeadlock switches the structural locks between plain mutexes and
// go-deadlock's lock-order and timeout detection.
func configureDeadlock(cfg config.ECSConfig, log *zap.Logger) {
	deadlock.Opts.Disable = !cfg.DeadlockDetection
	deadlock.Opts.DeadlockTimeout = cfg.DeadlockTimeout
	if cfg.DeadlockDetection {
		log.Info("deadlock detection enabled", zap.Duration("timeout", cfg.DeadlockTimeout))
	}
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
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
