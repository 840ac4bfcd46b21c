// ABOUTME: HTTP API handlers for the pileup gateway
// ABOUTME: Public queue/viewer endpoints plus the JWT-protected admin surface

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2389/pileup-gateway/internal/auth"
	"github.com/2389/pileup-gateway/internal/coordinator"
	"github.com/2389/pileup-gateway/internal/store"
)

// registerRoutes wires all public and admin routes onto the mux.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// Public caller and viewer endpoints
	mux.HandleFunc("POST /api/queue", g.handleRegister)
	mux.HandleFunc("DELETE /api/queue/{callsign}", g.handleLeaveQueue)
	mux.HandleFunc("GET /api/queue", g.handleGetQueue)
	mux.HandleFunc("GET /api/current", g.handleGetCurrent)
	mux.HandleFunc("GET /api/worked", g.handleGetWorked)
	mux.HandleFunc("GET /api/status", g.handleGetStatus)
	mux.Handle("GET /api/stream", g.streamer)

	if g.admin == nil {
		return
	}

	// Admin endpoints - login issues the token, everything else requires it
	mux.HandleFunc("POST /api/admin/login", g.handleAdminLogin)
	mux.HandleFunc("POST /api/admin/next", g.admin.RequireAdmin(g.handleNext))
	mux.HandleFunc("POST /api/admin/complete", g.admin.RequireAdmin(g.handleComplete))
	mux.HandleFunc("POST /api/admin/direct-start", g.admin.RequireAdmin(g.handleDirectStart))
	mux.HandleFunc("DELETE /api/admin/queue", g.admin.RequireAdmin(g.handleClearQueue))
	mux.HandleFunc("PUT /api/admin/active", g.admin.RequireAdmin(g.handleSetActive))
	mux.HandleFunc("PUT /api/admin/frequency", g.admin.RequireAdmin(g.handleSetFrequency))
	mux.HandleFunc("DELETE /api/admin/frequency", g.admin.RequireAdmin(g.handleClearFrequency))
	mux.HandleFunc("PUT /api/admin/split", g.admin.RequireAdmin(g.handleSetSplit))
	mux.HandleFunc("DELETE /api/admin/split", g.admin.RequireAdmin(g.handleClearSplit))
	mux.HandleFunc("PUT /api/admin/integration", g.admin.RequireAdmin(g.handleSetIntegration))
	mux.HandleFunc("DELETE /api/admin/worked", g.admin.RequireAdmin(g.handleClearWorked))
	mux.HandleFunc("POST /api/admin/worked/extend", g.admin.RequireAdmin(g.handleExtendWorked))
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.GetSettings(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d viewers, up %s)",
		g.bus.SubscriberCount(), time.Since(g.startedAt).Round(time.Second))
}

// handleRegister adds a callsign to the queue.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Callsign string `json:"callsign"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reg, err := g.coordinator.Register(r.Context(), req.Callsign)
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}

	g.sendJSON(w, http.StatusCreated, map[string]any{
		"callsign":  reg.Entry.Callsign,
		"joined_at": reg.Entry.JoinedAt,
		"position":  reg.Position,
	})
}

// handleLeaveQueue removes a callsign from the queue.
func (g *Gateway) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	entry, err := g.coordinator.Remove(r.Context(), r.PathValue("callsign"))
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"callsign": entry.Callsign, "removed": true})
}

// handleGetQueue returns the current queue ordering.
func (g *Gateway) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := g.coordinator.Queue(r.Context())
	if err != nil {
		g.logger.Error("failed to read queue", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, queue)
}

// handleGetCurrent returns the active contact, or null when idle.
func (g *Gateway) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	current, err := g.coordinator.Current(r.Context())
	if err != nil {
		g.logger.Error("failed to read current contact", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"current": current})
}

// handleGetWorked returns the unexpired worked-contact history.
func (g *Gateway) handleGetWorked(w http.ResponseWriter, r *http.Request) {
	worked, err := g.coordinator.Worked(r.Context())
	if err != nil {
		g.logger.Error("failed to read worked history", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"contacts": worked, "total": len(worked)})
}

// handleGetStatus returns a complete snapshot for late-joining viewers.
func (g *Gateway) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := g.coordinator.Snapshot(r.Context())
	if err != nil {
		g.logger.Error("failed to build snapshot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, snapshot)
}

// handleAdminLogin exchanges the admin password for a bearer token.
func (g *Gateway) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := g.admin.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("login failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleNext promotes the queue head to the current contact slot.
func (g *Gateway) handleNext(w http.ResponseWriter, r *http.Request) {
	contact, err := g.coordinator.PromoteNext(r.Context())
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	if contact == nil {
		g.sendJSON(w, http.StatusOK, map[string]any{"current": nil, "queue_empty": true})
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"current": contact})
}

// handleComplete archives the current contact into the worked history.
func (g *Gateway) handleComplete(w http.ResponseWriter, r *http.Request) {
	worked, err := g.coordinator.CompleteCurrent(r.Context())
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"worked": worked})
}

// handleDirectStart begins a contact with an arbitrary callsign, bypassing the queue.
func (g *Gateway) handleDirectStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Callsign  string `json:"callsign"`
		Frequency string `json:"frequency"`
		Mode      string `json:"mode"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var meta *store.ChannelMeta
	if req.Frequency != "" || req.Mode != "" {
		meta = &store.ChannelMeta{Frequency: req.Frequency, Mode: req.Mode}
	}

	result, err := g.coordinator.DirectStart(r.Context(), req.Callsign, meta)
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{
		"current":      result.Contact,
		"was_in_queue": result.WasInQueue,
		"interrupted":  result.Interrupted,
	})
}

// handleClearQueue empties the queue.
func (g *Gateway) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	removed, err := g.coordinator.ClearQueue(r.Context())
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleSetActive toggles the system between active and inactive.
func (g *Gateway) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	settings, err := g.coordinator.SetActive(r.Context(), req.Active)
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, settings)
}

// handleSetFrequency publishes the operating frequency.
func (g *Gateway) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frequency string `json:"frequency"`
	}
	if err := decodeJSON(r.Body, &req); err != nil || req.Frequency == "" {
		g.sendJSONError(w, http.StatusBadRequest, "frequency is required")
		return
	}
	if err := g.coordinator.SetFrequency(r.Context(), req.Frequency); err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"frequency": req.Frequency})
}

// handleClearFrequency clears the published frequency.
func (g *Gateway) handleClearFrequency(w http.ResponseWriter, r *http.Request) {
	if err := g.coordinator.ClearFrequency(r.Context()); err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"frequency": nil})
}

// handleSetSplit publishes the split listening offset.
func (g *Gateway) handleSetSplit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Split string `json:"split"`
	}
	if err := decodeJSON(r.Body, &req); err != nil || req.Split == "" {
		g.sendJSONError(w, http.StatusBadRequest, "split is required")
		return
	}
	if err := g.coordinator.SetSplit(r.Context(), req.Split); err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"split": req.Split})
}

// handleClearSplit clears the split offset.
func (g *Gateway) handleClearSplit(w http.ResponseWriter, r *http.Request) {
	if err := g.coordinator.ClearSplit(r.Context()); err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"split": nil})
}

// handleSetIntegration toggles the external bridge integration flag.
func (g *Gateway) handleSetIntegration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := g.coordinator.SetIntegration(r.Context(), req.Enabled); err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]bool{"integration_enabled": req.Enabled})
}

// handleClearWorked wipes the worked-contact history.
func (g *Gateway) handleClearWorked(w http.ResponseWriter, r *http.Request) {
	removed, err := g.coordinator.ClearWorked(r.Context())
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleExtendWorked extends the retention of all worked contacts.
func (g *Gateway) handleExtendWorked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Seconds <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	extended, err := g.coordinator.ExtendWorkedRetention(r.Context(), time.Duration(req.Seconds)*time.Second)
	if err != nil {
		g.sendCoordinatorError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"extended": extended, "seconds": req.Seconds})
}

// sendCoordinatorError maps domain errors to HTTP status codes.
func (g *Gateway) sendCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrInvalidFormat):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coordinator.ErrDuplicateCallsign):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coordinator.ErrQueueFull):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coordinator.ErrSystemInactive):
		g.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, coordinator.ErrContactInProgress):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coordinator.ErrNothingActive):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "not found")
	default:
		g.logger.Error("request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes a JSON body, rejecting unparseable input.
func decodeJSON(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// sendJSON writes a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
