package session

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/httputil"
	"github.com/darkden-lab/mqscope/internal/mq"
)

// Handlers serves consumption and production.
type Handlers struct {
	controller *Controller
	manager    *Manager
	producer   *Producer
}

func NewHandlers(controller *Controller, manager *Manager, producer *Producer) *Handlers {
	return &Handlers{controller: controller, manager: manager, producer: producer}
}

// RegisterRoutes wires the session endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/consume", h.Sessions).Methods("GET")
	r.HandleFunc("/api/consume", h.Start).Methods("POST")
	r.HandleFunc("/api/consume", h.Stop).Methods("DELETE")
	r.HandleFunc("/api/produce", h.Produce).Methods("POST")
	r.HandleFunc("/api/produce/batch", h.ProduceBatch).Methods("POST")
}

// Sessions handles GET /api/consume.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.manager.Active())
}

// Start handles POST /api/consume.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	id, err := h.controller.Start(r.Context(), req)
	if errors.Is(err, ErrAlreadyConsuming) {
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"subscription_id": id})
}

// Stop handles DELETE /api/consume. It succeeds when nothing is running.
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	h.controller.StopSession()
	w.WriteHeader(http.StatusNoContent)
}

// Produce handles POST /api/produce.
func (h *Handlers) Produce(w http.ResponseWriter, r *http.Request) {
	var req mq.ProduceRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.producer.Produce(r.Context(), &req)
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// ProduceBatch handles POST /api/produce/batch.
func (h *Handlers) ProduceBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []*mq.ProduceRequest
	if !httputil.DecodeJSON(w, r, &reqs) {
		return
	}
	res, err := h.producer.ProduceBatch(r.Context(), reqs)
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
