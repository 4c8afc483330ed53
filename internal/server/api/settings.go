package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
)

// SettingsHandler serves persisted configuration overrides at
// /api/settings and /api/settings/{key}. Overrides apply on the next start.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

type setSettingRequest struct {
	Value string `json:"value"`
}

type settingsResponse struct {
	Settings map[string]string `json:"settings"`
	Keys     []string          `json:"keys"`
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := config.NormalizeKey(itemID(r.URL.Path, "/api/settings"))

	switch {
	case key == "" && r.Method == http.MethodGet:
		all, err := h.store.Settings().All()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list settings")
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse{Settings: all, Keys: config.Keys()})

	case key != "" && r.Method == http.MethodPut:
		h.set(w, r, key)

	case key != "" && r.Method == http.MethodDelete:
		if err := h.store.Settings().Delete(key); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Setting not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to delete setting")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) set(w http.ResponseWriter, r *http.Request, key string) {
	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Reject values that would stop the next start.
	scratch := config.Default()
	if err := scratch.Set(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().Set(key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: req.Value})
}
