package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"arena-sim/internal/api"
	"arena-sim/internal/command"
	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ARENA SIM - COMBAT ENGINE")
	log.Println("🎮 ================================")

	// Load centralized configuration
	appConfig := config.Load()
	simCfg := appConfig.Simulation
	port := strconv.Itoa(appConfig.Server.Port)

	engine := game.NewEngine(game.EngineConfig{
		TickRate: simCfg.TickRate,
		MaxStep:  simCfg.MaxStep,
		Seed:     simCfg.Seed,
		Limits: game.ResourceLimits{
			MaxEntities:    appConfig.Limits.MaxEntities,
			MaxProjectiles: appConfig.Limits.MaxProjectiles,
			MaxIntents:     appConfig.Limits.IntentQueue,
		},
	})
	limits := engine.GetLimits()
	log.Printf("🎮 Config: %d TPS, max step %.4fs, seed %d", engine.TickRate(), simCfg.MaxStep, engine.Seed())
	log.Printf("🛡️ Resource limits: %d entities, %d projectiles, %d intents/tick",
		limits.MaxEntities, limits.MaxProjectiles, limits.MaxIntents)

	// Metrics hooks run after each update, outside the engine lock
	engine.SetCallbacks(api.MetricsCallbacks())

	// Start event log
	if path := appConfig.EventLog.Path; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	// Start debug server
	if err := api.StartDebugServer(appConfig.Observability); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	// Text command intake (WebSocket clients)
	cmdCfg := appConfig.Commands
	handler := command.NewHandler(engine, command.RateLimitConfig{
		MaxPerWindow:     cmdCfg.MaxPerWindow,
		WindowDuration:   cmdCfg.Window,
		CooldownDuration: cmdCfg.Cooldown,
	})
	queue := command.NewCommandQueue(handler, command.QueueConfig{
		BufferSize: cmdCfg.BufferSize,
		Workers:    cmdCfg.Workers,
	})
	queue.OnResult(func(cmd command.Command, err error) {
		api.RecordCommand(commandResult(err))
	})
	queue.Start()

	server := api.NewServer(api.ServerConfig{
		Engine:      engine,
		Commands:    queue,
		RateLimit:   appConfig.RateLimit,
		CORSOrigins: appConfig.Server.CORSOrigins,
	})

	// Start simulation
	engine.Start()
	log.Println("✅ Simulation started")

	// Start API server in goroutine
	go func() {
		if err := server.Start(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	queue.Stop()
	handler.Close()
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}

// commandResult maps a command outcome to its metric label
func commandResult(err error) string {
	switch errors.Cause(err) {
	case nil:
		return "ok"
	case command.ErrRateLimited:
		return "rate_limit"
	case command.ErrRejected:
		return "rejected"
	default:
		return "invalid"
	}
}
