package history

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/httputil"
)

// Handlers provides HTTP handlers for the operation history.
type Handlers struct {
	store *Store
}

func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes wires the history endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/history", h.List).Methods("GET")
	r.HandleFunc("/api/history", h.Clear).Methods("DELETE")
}

// List handles GET /api/history with query filters and pagination.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	params := ListParams{
		Type:         Type(q.Get("type")),
		ConnectionID: q.Get("connection_id"),
		Limit:        limit,
		Offset:       offset,
	}
	switch params.Type {
	case "", TypeProduce, TypeConsume, TypeTest:
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown history type: "+string(params.Type))
		return
	}

	records, total, err := h.store.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Clear handles DELETE /api/history.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
