package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

// DetectionHandler serves the detection log:
//
//	GET    /api/detections?gesture=&limit=
//	GET    /api/detections/counts
//	DELETE /api/detections?before=<RFC3339>
type DetectionHandler struct {
	store *store.Store
}

// NewDetectionHandler creates a DetectionHandler.
func NewDetectionHandler(s *store.Store) *DetectionHandler {
	return &DetectionHandler{store: s}
}

type listDetectionsResponse struct {
	Detections []*store.Detection `json:"detections"`
}

type pruneResponse struct {
	Removed int64 `json:"removed"`
}

func (h *DetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch sub := itemID(r.URL.Path, "/api/detections"); {
	case sub == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case sub == "" && r.Method == http.MethodDelete:
		h.prune(w, r)
	case sub == "counts" && r.Method == http.MethodGet:
		h.counts(w, r)
	case sub == "" || sub == "counts":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *DetectionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	detections, err := h.store.Detections().List(r.URL.Query().Get("gesture"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list detections")
		return
	}
	if detections == nil {
		detections = []*store.Detection{}
	}

	writeJSON(w, http.StatusOK, listDetectionsResponse{Detections: detections})
}

func (h *DetectionHandler) counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Detections().Counts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count detections")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *DetectionHandler) prune(w http.ResponseWriter, r *http.Request) {
	before, err := time.Parse(time.RFC3339, r.URL.Query().Get("before"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be an RFC3339 time")
		return
	}

	n, err := h.store.Detections().DeleteBefore(before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete detections")
		return
	}
	writeJSON(w, http.StatusOK, pruneResponse{Removed: n})
}
