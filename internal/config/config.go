// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig holds the update loop settings.
type SimulationConfig struct {
	TickRate int     // Updates per second when the engine drives itself
	MaxStep  float64 // Largest dt a single update may advance (seconds)
	Seed     int64   // RNG seed, 0 seeds from the clock
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate: 30,
		MaxStep:  1.0 / 30.0,
	}
}

// SimulationFromEnv returns simulation configuration with environment variable overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if ms := getEnvFloat("MAX_STEP", 0); ms > 0 {
		cfg.MaxStep = ms
	}
	if s := getEnvInt64("SIM_SEED", 0); s != 0 {
		cfg.Seed = s
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and performance limits.
type ResourceLimits struct {
	MaxEntities    int // Hard cap on combatants in the arena
	MaxProjectiles int // Hard cap on live projectiles
	IntentQueue    int // Intents accepted per update
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxEntities:    256,
		MaxProjectiles: 512,
		IntentQueue:    1024,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if me := getEnvInt("MAX_ENTITIES", 0); me > 0 {
		cfg.MaxEntities = me
	}
	if mp := getEnvInt("MAX_PROJECTILES", 0); mp > 0 {
		cfg.MaxProjectiles = mp
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
		CORSOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
		},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	return cfg
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig holds per-IP API rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	MaxAge            time.Duration
}

// DefaultRateLimit returns the default API rate limit configuration.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   time.Minute,
		MaxAge:            3 * time.Minute,
	}
}

// RateLimitFromEnv returns rate limit configuration with environment variable overrides.
func RateLimitFromEnv() RateLimitConfig {
	cfg := DefaultRateLimit()

	if rps := getEnvFloat("API_RPS", 0); rps > 0 {
		cfg.RequestsPerSecond = rps
	}
	if b := getEnvInt("API_BURST", 0); b > 0 {
		cfg.Burst = b
	}

	return cfg
}

// =============================================================================
// COMMAND CONFIGURATION
// =============================================================================

// CommandConfig holds text command intake settings.
type CommandConfig struct {
	BufferSize   int           // Queue capacity before commands are dropped
	Workers      int           // Worker goroutines parsing and submitting
	MaxPerWindow int           // Commands per user per window
	Window       time.Duration // Rate limit window
	Cooldown     time.Duration // Minimum gap between two commands of one user
}

// DefaultCommands returns the default command configuration.
func DefaultCommands() CommandConfig {
	return CommandConfig{
		BufferSize:   10000,
		Workers:      4,
		MaxPerWindow: 20,
		Window:       10 * time.Second,
		Cooldown:     100 * time.Millisecond,
	}
}

// CommandsFromEnv returns command configuration with environment variable overrides.
func CommandsFromEnv() CommandConfig {
	cfg := DefaultCommands()

	if w := getEnvInt("CMD_WORKERS", 0); w > 0 {
		cfg.Workers = w
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds debug server settings.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be localhost for security
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservability returns the default debug server configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns debug server configuration with environment variable overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if addr := os.Getenv("DEBUG_LISTEN"); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	if getEnvBool("DISABLE_DEBUG_SERVER", false) {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig holds event sourcing settings.
type EventLogConfig struct {
	Path string // Empty keeps events in memory only
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{Path: "events.ndjson"}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.Path = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation    SimulationConfig
	Server        ServerConfig
	Limits        ResourceLimits
	RateLimit     RateLimitConfig
	Commands      CommandConfig
	Observability ObservabilityConfig
	EventLog      EventLogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Simulation:    SimulationFromEnv(),
		Server:        ServerFromEnv(),
		Limits:        LimitsFromEnv(),
		RateLimit:     RateLimitFromEnv(),
		Commands:      CommandsFromEnv(),
		Observability: ObservabilityFromEnv(),
		EventLog:      EventLogFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
