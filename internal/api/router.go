package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

// EngineInterface is the slice of *game.Engine the handlers call
type EngineInterface interface {
	GetState() game.GameState
	GetSnapshot() *game.GameSnapshot
	Scoreboard(limit int) []game.ScoreEntry

	// AddEntity returns false once the entity cap is reached
	AddEntity(name string, opts game.EntityOptions) (game.EntityView, bool)
	GetEntity(h game.EntityHandle) (game.EntityView, bool)
	RemoveEntity(h game.EntityHandle) bool
	SetTransform(h game.EntityHandle, t game.Transform) bool

	// Submit queues an intent for the next update
	Submit(in game.Intent) bool
	Respawn(h game.EntityHandle, pos *game.Vec3) bool
	Heal(h game.EntityHandle, amount float64) bool
}

// RouterConfig holds what NewRouter needs. Only Engine is required.
type RouterConfig struct {
	Engine EngineInterface

	// RateLimiter is shared with the caller so it can be stopped on
	// shutdown. When nil one is built from RateLimitConfig, or from
	// config.DefaultRateLimit if that is nil too.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *config.RateLimitConfig

	// CORSOrigins defaults to DefaultCORSOrigins
	CORSOrigins []string

	DisableLogging bool
}

type routerHandlers struct {
	engine EngineInterface
}

// NewRouter builds the REST API. It opens no listener and never advances
// the simulation, so tests can drive it with httptest directly.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Limit before CORS so rejected clients cost as little as possible
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := config.DefaultRateLimit()
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{engine: cfg.Engine}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/scoreboard", h.handleGetScoreboard)
		r.Get("/arena.png", h.handleArenaPNG)

		// Ability and shield reference tables
		r.Get("/abilities", h.handleGetAbilities)
		r.Get("/shields", h.handleGetShields)

		r.Post("/entities", h.handleCreateEntity)
		r.Route("/entities/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetEntity)
			r.Delete("/", h.handleRemoveEntity)
			r.Post("/transform", h.handleSetTransform)
			r.Post("/intents", h.handleSubmitIntent)
			r.Post("/respawn", h.handleRespawn)
			r.Post("/heal", h.handleHeal)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
