package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/store"
)

// RecordingHandler serves recording metadata at /api/recordings and
// /api/recordings/{id}. Deleting a recording leaves its file on disk.
type RecordingHandler struct {
	store *store.Store
}

// NewRecordingHandler creates a RecordingHandler.
func NewRecordingHandler(s *store.Store) *RecordingHandler {
	return &RecordingHandler{store: s}
}

type listRecordingsResponse struct {
	Recordings []*store.Recording `json:"recordings"`
}

func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/recordings")

	switch {
	case id == "" && r.Method == http.MethodGet:
		recs, err := h.store.Recordings().List(r.URL.Query().Get("gesture"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list recordings")
			return
		}
		if recs == nil {
			recs = []*store.Recording{}
		}
		writeJSON(w, http.StatusOK, listRecordingsResponse{Recordings: recs})

	case id != "" && r.Method == http.MethodGet:
		rec, err := h.store.Recordings().GetByID(id)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case id != "" && r.Method == http.MethodDelete:
		if err := h.store.Recordings().Delete(id); err != nil {
			h.writeLookupError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RecordingHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to access recording")
}
