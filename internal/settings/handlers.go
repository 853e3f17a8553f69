package settings

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/httputil"
	"github.com/darkden-lab/mqscope/internal/ingest"
)

// UpdateRequest is the body of PUT /api/session/state. Nil fields are left
// unchanged. Session fields are owned by the session manager and cannot be
// set here.
type UpdateRequest struct {
	GroupID        *string   `json:"group_id"`
	FromBeginning  *bool     `json:"from_beginning"`
	MaxMessages    *int      `json:"max_messages"`
	ConsumerTopics *[]string `json:"consumer_topics"`
	ProducerTopic  *string   `json:"producer_topic"`
}

// Handlers serves the consumer state and the message store.
type Handlers struct {
	state     *ConsumerState
	messages  *ingest.MessageStore
	persister *Persister
}

func NewHandlers(state *ConsumerState, messages *ingest.MessageStore, persister *Persister) *Handlers {
	return &Handlers{state: state, messages: messages, persister: persister}
}

// RegisterRoutes wires the session state endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/session/state", h.GetState).Methods("GET")
	r.HandleFunc("/api/session/state", h.UpdateState).Methods("PUT")
	r.HandleFunc("/api/session/messages", h.ListMessages).Methods("GET")
	r.HandleFunc("/api/session/messages", h.ClearMessages).Methods("DELETE")
}

// GetState handles GET /api/session/state.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.state.Get())
}

// UpdateState handles PUT /api/session/state. A lowered max_messages applies
// to the next message; messages already stored are kept.
func (h *Handlers) UpdateState(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.MaxMessages != nil && *req.MaxMessages <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "max_messages must be positive")
		return
	}
	if req.GroupID != nil && *req.GroupID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "group_id must not be empty")
		return
	}

	s := h.state.Update(func(s *State) {
		if req.GroupID != nil {
			s.GroupID = *req.GroupID
		}
		if req.FromBeginning != nil {
			s.FromBeginning = *req.FromBeginning
		}
		if req.MaxMessages != nil {
			s.MaxMessages = *req.MaxMessages
		}
		if req.ConsumerTopics != nil {
			s.ConsumerTopics = append([]string(nil), (*req.ConsumerTopics)...)
		}
		if req.ProducerTopic != nil {
			s.ProducerTopic = *req.ProducerTopic
		}
	})
	h.persister.Checkpoint(r.Context(), "state update")
	httputil.WriteJSON(w, http.StatusOK, s)
}

// ListMessages handles GET /api/session/messages, newest first.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.messages.Snapshot()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages":     msgs,
		"total":        len(msgs),
		"max_messages": h.state.MaxMessages(),
	})
}

// ClearMessages handles DELETE /api/session/messages.
func (h *Handlers) ClearMessages(w http.ResponseWriter, r *http.Request) {
	h.messages.Clear()
	h.persister.Checkpoint(r.Context(), "clear")
	w.WriteHeader(http.StatusNoContent)
}
