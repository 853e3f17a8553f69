package templates

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/httputil"
)

// Handlers provides HTTP handlers for message templates.
type Handlers struct {
	store *Store
}

func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes wires the template endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/templates", h.List).Methods("GET")
	r.HandleFunc("/api/templates", h.Create).Methods("POST")
	r.HandleFunc("/api/templates/{id}", h.Get).Methods("GET")
	r.HandleFunc("/api/templates/{id}", h.Update).Methods("PUT")
	r.HandleFunc("/api/templates/{id}", h.Delete).Methods("DELETE")
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var t Template
	if !httputil.DecodeJSON(w, r, &t) {
		return
	}
	created, err := h.store.Create(r.Context(), t)
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var t Template
	if !httputil.DecodeJSON(w, r, &t) {
		return
	}
	updated, err := h.store.Update(r.Context(), mux.Vars(r)["id"], t)
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
