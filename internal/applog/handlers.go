package applog

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/httputil"
)

// Handlers serves the in-memory log.
type Handlers struct {
	buf *Buffer
}

func NewHandlers(buf *Buffer) *Handlers {
	return &Handlers{buf: buf}
}

// RegisterRoutes wires the log endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/logs", h.List).Methods("GET")
	r.HandleFunc("/api/logs", h.Clear).Methods("DELETE")
}

// List handles GET /api/logs?limit=N.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.buf.Entries(limit),
		"total":   h.buf.Len(),
	})
}

// Clear handles DELETE /api/logs.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	h.buf.Clear()
	w.WriteHeader(http.StatusNoContent)
}
