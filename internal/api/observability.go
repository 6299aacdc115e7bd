package api

import (
	"crypto/subtle"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

// Labels take values from fixed sets only; never an entity handle or IP
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent in a simulation update",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_entity_count",
		Help: "Current number of entities",
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_projectile_count",
		Help: "Current number of live projectiles",
	})

	abilitiesUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_abilities_used_total",
		Help: "Abilities successfully used",
	}, []string{"ability"}) // Bounded: ability table names

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_kills_total",
		Help: "Total kills",
	})

	damageTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_damage_total",
		Help: "Total health damage dealt",
	})

	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_level_ups_total",
		Help: "Total level-ups",
	})

	shieldBreaks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_shield_breaks_total",
		Help: "Total shields broken",
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_event_log_total",
		Help: "Events accepted by the event log",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_event_log_dropped_total",
		Help: "Events the event log rate limited or had no room for",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_commands_total",
		Help: "Text commands by outcome",
	}, []string{"result"}) // ok, rejected, rate_limit, invalid, dropped

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_connection_rejected_total",
		Help: "Requests and sockets turned away before reaching a handler",
	}, []string{"reason"}) // rate_limit, origin, ws_total_limit, ws_ip_limit

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "api_websocket_connections",
		Help: "Open spectator WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_websocket_broadcasts_total",
		Help: "Frames broadcast to spectators",
	})
)

// StartDebugServer serves pprof, /metrics and /health in the background.
// pprof can be used to stall the process, so the listener stays on loopback
// unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg config.ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	addr, err := debugAddr(cfg.ListenAddr, os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true")
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "debug listen %s", addr)
	}
	log.Printf("📊 Debug server on http://%s (/debug/pprof/, /metrics, /health)", ln.Addr())

	go func() {
		if err := http.Serve(ln, DebugHandler(cfg)); err != nil {
			log.Printf("⚠️ Debug server stopped: %v", err)
		}
	}()
	return nil
}

// debugAddr rewrites a non-loopback host to 127.0.0.1, keeping the port
func debugAddr(addr string, allowExternal bool) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errors.Wrapf(err, "debug address %q", addr)
	}
	if allowExternal || host == "localhost" {
		return addr, nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr, nil
	}
	log.Printf("⚠️ Debug server host %q replaced with loopback", host)
	return net.JoinHostPort("127.0.0.1", port), nil
}

// DebugHandler builds the pprof, metrics and health mux
func DebugHandler(cfg config.ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser == "" {
		return mux
	}
	return requireBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
}

func requireBasicAuth(user, pass string, next http.Handler) http.Handler {
	wantUser, wantPass := []byte(user), []byte(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), wantUser) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), wantPass) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="arena-debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsCallbacks returns engine callbacks that feed the Prometheus metrics
func MetricsCallbacks() game.Callbacks {
	return game.Callbacks{
		OnDamage: func(p game.DamagePayload) {
			damageTotal.Add(p.Final)
		},
		OnKill: func(game.KillPayload) {
			killsTotal.Inc()
		},
		OnAbility: func(p game.AbilityPayload) {
			abilitiesUsed.WithLabelValues(p.Ability.String()).Inc()
		},
		OnLevelUp: func(game.LevelUpPayload) {
			levelUps.Inc()
		},
		OnShieldBreak: func(game.ShieldBreakPayload) {
			shieldBreaks.Inc()
		},
		OnTick: func(s game.TickStats) {
			RecordTick(s.Duration)
			UpdateEntityCount(s.Entities)
			UpdateProjectileCount(s.Projectiles)
		},
	}
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// UpdateEntityCount updates the entity gauge
func UpdateEntityCount(count int) {
	entityCount.Set(float64(count))
}

// UpdateProjectileCount updates the projectile gauge
func UpdateProjectileCount(count int) {
	projectileCount.Set(float64(count))
}

// eventLogSeen remembers the last totals pushed so counters only move forward
var eventLogSeen struct {
	sync.Mutex
	total, dropped uint64
}

// UpdateEventLogStats converts the event log's running totals into counter deltas.
// Called periodically from the server's stats loop.
func UpdateEventLogStats(total, dropped uint64) {
	eventLogSeen.Lock()
	defer eventLogSeen.Unlock()

	if total > eventLogSeen.total {
		eventLogTotal.Add(float64(total - eventLogSeen.total))
		eventLogSeen.total = total
	}
	if dropped > eventLogSeen.dropped {
		eventLogDropped.Add(float64(dropped - eventLogSeen.dropped))
		eventLogSeen.dropped = dropped
	}
}

// RecordCommand counts a text command by outcome
func RecordCommand(result string) {
	commandsTotal.WithLabelValues(result).Inc()
}

// RecordConnectionRejected counts a turned-away client by reason
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
