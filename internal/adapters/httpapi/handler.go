// Package httpapi exposes the engine's public operations over a small
// JSON HTTP surface. It is a thin command layer: every route maps onto
// one public engine operation and never reaches into internal state.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"homewarp/internal/adapters/exports"
	"homewarp/internal/core"
	"homewarp/pkg/domain"
)

// Handler wires the engine components behind HTTP routes.
type Handler struct {
	Homes     *core.HomeStore
	Shares    *core.PendingShareRegistry
	Teleports *core.TeleportScheduler
	Exports   *exports.Worker
}

// Router builds the API route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			return
		}
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/players/{id}/session", h.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/session", h.handleDisconnect).Methods(http.MethodDelete)

	api.HandleFunc("/players/{id}/homes", h.handleListHomes).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/homes/{name}", h.handleGetHome).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/homes/{name}", h.handleSetHome).Methods(http.MethodPut)
	api.HandleFunc("/players/{id}/homes/{name}", h.handleDeleteHome).Methods(http.MethodDelete)
	api.HandleFunc("/players/{id}/homes/{name}/shares/{target}", h.handleUnshare).Methods(http.MethodDelete)

	api.HandleFunc("/players/{id}/teleport", h.handleTeleport).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/teleport", h.handleCancelTeleport).Methods(http.MethodDelete)
	api.HandleFunc("/players/{id}/position", h.handlePosition).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/damage", h.handleDamage).Methods(http.MethodPost)

	api.HandleFunc("/players/{id}/shares", h.handleCreateShare).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/shares/pending", h.handlePendingShare).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/shares/accept", h.handleAcceptShare).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/shares/decline", h.handleDeclineShare).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/shared-with-me", h.handleSharedWithMe).Methods(http.MethodGet)

	if h.Exports != nil {
		api.HandleFunc("/exports", h.handleEnqueueExport).Methods(http.MethodPost)
		api.HandleFunc("/exports", h.handleListExports).Methods(http.MethodGet)
		api.HandleFunc("/exports/{id}", h.handleGetExport).Methods(http.MethodGet)
	}
	return r
}

func playerID(r *http.Request, key string) (domain.PlayerID, error) {
	raw := mux.Vars(r)[key]
	id, err := uuid.Parse(raw)
	if err != nil {
		return domain.NilPlayerID, fmt.Errorf("invalid player id %q", raw)
	}
	return id, nil
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}
	collection := h.Homes.Load(r.Context(), id, body.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"player":   id,
		"username": collection.Username(),
		"homes":    len(collection.List()),
	})
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Teleports.CancelPending(id)
	h.Homes.Unload(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListHomes(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	homes := h.Homes.Homes(id)
	out := make([]domain.HomeSnapshot, 0, len(homes))
	for _, home := range homes {
		out = append(out, home.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"homes": out,
		"limit": h.Homes.HomeLimit(id),
	})
}

func (h *Handler) handleGetHome(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := mux.Vars(r)["name"]
	home, ok := h.Homes.GetHome(id, name)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityHome, ID: name}.Error())
		return
	}
	writeJSON(w, http.StatusOK, home.Snapshot())
}

func (h *Handler) handleSetHome(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var loc domain.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid location")
		return
	}
	if loc.World == "" {
		writeError(w, http.StatusBadRequest, "world required")
		return
	}
	name := mux.Vars(r)["name"]
	home := domain.NewHome(name, loc, timeNow())
	if existing, ok := h.Homes.GetHome(id, name); ok {
		// Overwrite keeps the original creation time and share set.
		home = existing.WithLocation(loc)
	}
	if !h.Homes.SetHome(id, home) {
		writeError(w, http.StatusConflict, "home limit reached or player not loaded")
		return
	}
	writeJSON(w, http.StatusOK, home.Snapshot())
}

func (h *Handler) handleDeleteHome(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := mux.Vars(r)["name"]
	if !h.Homes.DeleteHome(id, name) {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityHome, ID: name}.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnshare(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := uuid.Parse(mux.Vars(r)["target"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	if !h.Homes.UnshareHome(id, mux.Vars(r)["name"], target) {
		writeError(w, http.StatusNotFound, "home not shared with that player")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTeleport(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Owner string          `json:"owner,omitempty"`
		Name  string          `json:"name"`
		From  domain.Location `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "home name required")
		return
	}

	owner := id
	if body.Owner != "" {
		owner, err = uuid.Parse(body.Owner)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid owner id")
			return
		}
	}

	var home domain.Home
	var ok bool
	if owner == id {
		home, ok = h.Homes.GetHome(id, body.Name)
	} else {
		home, ok = h.Homes.SharedHome(id, owner, body.Name)
	}
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityHome, ID: body.Name}.Error())
		return
	}

	if cooldown := h.Homes.RemainingCooldown(id); cooldown > 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             "teleport on cooldown",
			"remaining_seconds": int(cooldown.Seconds()) + 1,
		})
		return
	}

	accepted := h.Teleports.RequestTeleport(id, owner, home, body.From)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": accepted,
		"pending":  h.Teleports.HasPending(id),
	})
}

func (h *Handler) handleCancelTeleport(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cancelled := h.Teleports.CancelManual(id)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var loc domain.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid location")
		return
	}
	cancelled := h.Teleports.CheckMovement(id, loc)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

func (h *Handler) handleDamage(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cancelled := h.Teleports.CancelOnDamage(id)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

func (h *Handler) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Home   string `json:"home"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Home == "" || body.Target == "" {
		writeError(w, http.StatusBadRequest, "home and target required")
		return
	}
	if _, ok := h.Homes.GetHome(id, body.Home); !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityHome, ID: body.Home}.Error())
		return
	}
	target, ok := h.Homes.FindPlayerByName(body.Target)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityPlayer, ID: body.Target}.Error())
		return
	}
	if target == id {
		writeError(w, http.StatusBadRequest, "cannot share a home with yourself")
		return
	}
	ownerName, _ := h.Homes.Username(id)
	if !h.Shares.CreateRequest(id, ownerName, body.Home, target) {
		writeError(w, http.StatusConflict, "target already has a pending share request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"target": target})
}

func (h *Handler) handlePendingShare(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, ok := h.Shares.Request(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityShareRequest, ID: id.String()}.Error())
		return
	}
	writeJSON(w, http.StatusOK, shareJSON(req))
}

func (h *Handler) handleAcceptShare(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, ok := h.Shares.Accept(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityShareRequest, ID: id.String()}.Error())
		return
	}
	if !h.Homes.ShareHome(req.Owner, req.HomeName, id) {
		// The owner deleted the home or went offline while the request sat.
		writeError(w, http.StatusGone, "shared home no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, shareJSON(req))
}

func (h *Handler) handleDeclineShare(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, ok := h.Shares.Decline(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotFound{Entity: domain.EntityShareRequest, ID: id.String()}.Error())
		return
	}
	writeJSON(w, http.StatusOK, shareJSON(req))
}

func (h *Handler) handleSharedWithMe(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shared := h.Homes.HomesSharedWith(id)
	out := make(map[string][]domain.HomeSnapshot, len(shared))
	for owner, homes := range shared {
		snapshots := make([]domain.HomeSnapshot, 0, len(homes))
		for _, home := range homes {
			snapshots = append(snapshots, home.Snapshot())
		}
		out[owner.String()] = snapshots
	}
	writeJSON(w, http.StatusOK, map[string]any{"owners": out})
}

func (h *Handler) handleEnqueueExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestedBy string `json:"requested_by"`
		Reason      string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestedBy == "" {
		writeError(w, http.StatusBadRequest, "requested_by required")
		return
	}
	record, err := h.Exports.Enqueue(r.Context(), exports.Input{RequestedBy: body.RequestedBy, Reason: body.Reason})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (h *Handler) handleListExports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"exports": h.Exports.List()})
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	record, ok := h.Exports.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func shareJSON(req core.ShareRequest) map[string]any {
	return map[string]any{
		"owner":      req.Owner,
		"owner_name": req.OwnerName,
		"home":       req.HomeName,
		"created_at": req.CreatedAt,
	}
}
