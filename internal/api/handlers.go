package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"arena-sim/internal/game"
)

// handleGetState serves the latest published snapshot
func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	// Lock-free snapshot avoids RWMutex contention on every poll request
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetAbilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, game.GetAllAbilities())
}

func (h *routerHandlers) handleGetShields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, game.GetAllShieldTypes())
}

func (h *routerHandlers) handleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, h.engine.Scoreboard(limit))
}

func (h *routerHandlers) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string           `json:"name"`
		Team       string           `json:"team"`
		Shield     string           `json:"shield"`
		Position   *game.Vec3       `json:"position"`
		Forward    game.Vec3        `json:"forward"`
		Attributes *game.Attributes `json:"attributes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		writeError(w, "Name is required", http.StatusBadRequest)
		return
	}

	view, ok := h.engine.AddEntity(req.Name, game.EntityOptions{
		Team:       req.Team,
		Shield:     game.ParseShieldType(req.Shield),
		Attributes: req.Attributes,
		Position:   req.Position,
		Forward:    req.Forward,
	})

	// Handle entity limit reached (DoS protection)
	if !ok {
		writeError(w, "Entity limit reached", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, view)
}

// entityHandle parses the {id} URL parameter, writing a 400 on failure
func entityHandle(w http.ResponseWriter, r *http.Request) (game.EntityHandle, bool) {
	hdl, err := game.ParseHandle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return game.EntityHandle{}, false
	}
	return hdl, true
}

// requireEntity parses the handle and checks the entity exists
func (h *routerHandlers) requireEntity(w http.ResponseWriter, r *http.Request) (game.EntityView, bool) {
	hdl, ok := entityHandle(w, r)
	if !ok {
		return game.EntityView{}, false
	}
	view, ok := h.engine.GetEntity(hdl)
	if !ok {
		writeError(w, "Entity not found", http.StatusNotFound)
		return game.EntityView{}, false
	}
	return view, true
}

func (h *routerHandlers) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	view, ok := h.requireEntity(w, r)
	if !ok {
		return
	}
	writeJSON(w, view)
}

func (h *routerHandlers) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	hdl, ok := entityHandle(w, r)
	if !ok {
		return
	}
	if !h.engine.RemoveEntity(hdl) {
		writeError(w, "Entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSetTransform(w http.ResponseWriter, r *http.Request) {
	hdl, ok := entityHandle(w, r)
	if !ok {
		return
	}

	var req game.Transform
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !h.engine.SetTransform(hdl, req) {
		writeError(w, "Entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSubmitIntent(w http.ResponseWriter, r *http.Request) {
	view, ok := h.requireEntity(w, r)
	if !ok {
		return
	}

	var req struct {
		Kind      string            `json:"kind"`
		Target    game.EntityHandle `json:"target"`
		Point     *game.Vec3        `json:"point"`
		On        bool              `json:"on"`
		Attribute string            `json:"attribute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	kind := game.ParseIntentKind(req.Kind)
	if kind == game.IntentUnknown {
		writeError(w, "Unknown intent kind", http.StatusBadRequest)
		return
	}

	queued := h.engine.Submit(game.Intent{
		Entity:    view.Handle,
		Kind:      kind,
		Target:    req.Target,
		Point:     req.Point,
		On:        req.On,
		Attribute: req.Attribute,
	})
	writeJSON(w, map[string]bool{"queued": queued})
}

func (h *routerHandlers) handleRespawn(w http.ResponseWriter, r *http.Request) {
	view, ok := h.requireEntity(w, r)
	if !ok {
		return
	}

	var req struct {
		Position *game.Vec3 `json:"position"`
	}
	// Empty body respawns at a random point
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}

	success := h.engine.Respawn(view.Handle, req.Position)
	if success {
		log.Printf("🔄 Respawn requested via API: %s", view.Name)
	}
	writeJSON(w, map[string]bool{"success": success})
}

func (h *routerHandlers) handleHeal(w http.ResponseWriter, r *http.Request) {
	view, ok := h.requireEntity(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	amount := req.Amount
	if amount <= 0 {
		amount = 20
	}

	success := h.engine.Heal(view.Handle, amount)
	writeJSON(w, map[string]bool{"success": success})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
