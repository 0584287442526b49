package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"kioskbox/internal/binder"
	"kioskbox/internal/capture"
	"kioskbox/internal/config"
	"kioskbox/internal/controller"
	"kioskbox/internal/devtools"
	"kioskbox/internal/display"
	"kioskbox/internal/handlers"
	"kioskbox/internal/hub"
	"kioskbox/internal/imaging"
	"kioskbox/internal/jobs"
	"kioskbox/internal/journal"
	"kioskbox/internal/logging"
	"kioskbox/internal/state"
	"kioskbox/internal/system"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()
	slogger := slog.Default()

	log.Println("🚀 Starting kioskbox agent...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Display: %s, Binder: %s)", cfg.Port, cfg.Display, cfg.BinderStrategy)

	// Event journal (SQLite)
	eventJournal, err := journal.Open(cfg.JournalDB)
	if err != nil {
		log.Fatalf("❌ Failed to open event journal: %v", err)
	}
	defer eventJournal.Close()

	// Desired-state store, persisted across restarts
	store, err := state.NewStore(cfg.StateFile)
	if err != nil {
		log.Fatalf("❌ Failed to load state file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go store.Watch(ctx)

	// Display topology
	resolver := display.NewResolver(cfg.XrandrPath, cfg.Display)

	// Screen binder
	client := devtools.NewClient()
	var strategy binder.Strategy
	switch cfg.BinderStrategy {
	case "detect":
		strategy = binder.NewDetectStrategy([]int{cfg.Screen1DebugPort, cfg.Screen2DebugPort}, client, resolver)
	default:
		strategy = binder.NewFixedStrategy(cfg.Screen1DebugPort, cfg.Screen2DebugPort, cfg.Screen1Output, cfg.Screen2Output)
	}
	bindings := binder.NewRegistry(strategy, clock.New())
	log.Printf("🖥️  [BINDER] Using %s strategy (ports %d, %d)", strategy.Name(), cfg.Screen1DebugPort, cfg.Screen2DebugPort)

	// Hot-plug watcher feeds the binder; every event is journaled so
	// field techs can correlate cable issues with rebinds.
	hotplug := make(chan struct{}, 1)
	watcher, err := display.NewWatcher(cfg.Display)
	if err != nil {
		log.Printf("⚠️  [DISPLAY] Hot-plug watcher unavailable: %v (periodic redetect only)", err)
	} else {
		go watcher.Run()
		defer watcher.Close()
		go func() {
			for range watcher.Events() {
				eventJournal.Record(journal.KindHotplug, "", "screen change notification")
				select {
				case hotplug <- struct{}{}:
				default:
				}
			}
		}()
	}
	go bindings.Run(ctx, hotplug)

	// Persistent navigation controllers, one per screen
	screenIDs := []string{binder.Screen1, binder.Screen2}
	controllers := controller.NewRegistry(screenIDs, bindings, client, eventJournal)
	controllers.StartAll(ctx)

	// Desired-state changes reach the browsers through the controllers,
	// whether they came from the API or from an edited state file.
	store.Subscribe(func(st state.DesiredState) {
		for _, id := range screenIDs {
			if url := store.URLFor(id); url != "" {
				if err := controllers.Navigate(id, url); err != nil {
					slogger.Warn("navigate on state change failed", "screen_id", id, "error", err)
				}
			}
		}
	})
	for _, id := range screenIDs {
		if url := store.URLFor(id); url != "" {
			if err := controllers.Navigate(id, url); err != nil {
				slogger.Warn("initial navigate failed", "screen_id", id, "error", err)
			}
		}
	}

	// Capture pipeline
	processor := imaging.NewProcessor(cfg.FFmpegPath)
	engine := capture.NewEngine(bindings, resolver, store, processor, eventJournal, client, cfg.FFmpegPath, cfg.Display)

	// Host operations
	patches := system.NewPatchRunner(cfg.PatchDir, slogger)
	rebootGuard := system.NewRebootGuard(cfg.MinUptimeBeforeReboot, slogger)
	cursor := system.NewCursorToggle(cfg.Display, slogger)

	// HTTP API
	app := fiber.New(fiber.Config{
		AppName:      "kioskbox v" + version,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // desktop-grab fallback can take a while
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	// Capture and system endpoints shell out; keep request volume sane.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	prometheus := fiberprometheus.New("kioskbox")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	healthHandler := handlers.NewHealthHandler(bindings)
	screenshotHandler := handlers.NewScreenshotHandler(engine, cfg.CaptureQuality)
	screensHandler := handlers.NewScreensHandler(store, controllers, bindings, resolver, slogger)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(cfg.DeviceID, version, resolver, bindings, controllers, eventJournal)
	systemHandler := handlers.NewSystemHandler(patches, rebootGuard, cursor, eventJournal)

	app.Get("/health", healthHandler.Handle)
	app.Get("/screenshot/:id", screenshotHandler.Handle)
	app.Get("/screens", screensHandler.List)
	app.Post("/screens/:id/url", screensHandler.SetURL)
	app.Post("/screens/:id/clear", screensHandler.Clear)
	app.Get("/diagnostics", diagnosticsHandler.Handle)
	app.Post("/system/patch", systemHandler.Patch)
	app.Post("/system/reboot", systemHandler.Reboot)
	app.Post("/system/cursor", systemHandler.Cursor)

	// Background jobs
	runner, err := jobs.NewRunner(slogger)
	if err != nil {
		log.Fatalf("❌ Failed to create job runner: %v", err)
	}

	if cfg.HubURL != "" {
		hostname, _ := os.Hostname()
		announcer := hub.NewAnnouncer(cfg.HubURL, cfg.DeviceID, hostname, version, hub.Sources{
			Topology: func() any {
				topoCtx, topoCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer topoCancel()
				topo, err := resolver.Resolve(topoCtx)
				if err != nil {
					return nil
				}
				return topo
			},
			Bindings:    func() any { return bindings.Snapshot() },
			Controllers: func() any { return controllers.Statuses() },
			ScreenURLs:  func() any { return store.Get() },
		}, slogger)
		if err := runner.Every("hub_announce", time.Minute, announcer.Tick); err != nil {
			log.Fatalf("❌ Failed to schedule hub announce: %v", err)
		}
		log.Printf("📡 [HUB] Announcing to %s every minute", cfg.HubURL)
	} else {
		log.Println("📡 [HUB] HUB_URL not set, announcing disabled")
	}

	if err := runner.Daily("journal_prune", 3, func() {
		removed, err := eventJournal.Prune(30 * 24 * time.Hour)
		if err != nil {
			slogger.Warn("journal prune failed", "error", err)
			return
		}
		slogger.Info("journal pruned", "removed", removed)
	}); err != nil {
		log.Fatalf("❌ Failed to schedule journal prune: %v", err)
	}

	runner.Start()
	log.Println("🕐 Background jobs started")

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down agent...")

		cancel()

		if err := runner.Shutdown(); err != nil {
			log.Printf("⚠️ Error stopping job runner: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
