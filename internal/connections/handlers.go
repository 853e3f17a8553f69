package connections

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/mqscope/internal/history"
	"github.com/darkden-lab/mqscope/internal/httputil"
	"github.com/darkden-lab/mqscope/internal/mq"
)

const adminTimeout = 10 * time.Second

// Handlers provides HTTP handlers for broker connections and the admin
// operations run against them.
type Handlers struct {
	store   *Store
	factory mq.Factory
	history *history.Store
}

func NewHandlers(store *Store, factory mq.Factory, hist *history.Store) *Handlers {
	return &Handlers{store: store, factory: factory, history: hist}
}

// RegisterRoutes wires the connection endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/connections", h.List).Methods("GET")
	r.HandleFunc("/api/connections", h.Create).Methods("POST")
	r.HandleFunc("/api/connections/test", h.TestDraft).Methods("POST")
	r.HandleFunc("/api/connections/{id}", h.Get).Methods("GET")
	r.HandleFunc("/api/connections/{id}", h.Update).Methods("PUT")
	r.HandleFunc("/api/connections/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/api/connections/{id}/test", h.Test).Methods("POST")
	r.HandleFunc("/api/connections/{id}/topics", h.ListTopics).Methods("GET")
	r.HandleFunc("/api/connections/{id}/topics", h.CreateTopic).Methods("POST")
	r.HandleFunc("/api/connections/{id}/topics/{topic}", h.DeleteTopic).Methods("DELETE")
	r.HandleFunc("/api/connections/{id}/groups", h.ListGroups).Methods("GET")
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conns)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	cfg.Password = ""
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var cfg mq.ConnectionConfig
	if !httputil.DecodeJSON(w, r, &cfg) {
		return
	}
	created, err := h.store.Create(r.Context(), cfg)
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	log.Printf("connections: created %s (%s %s:%d)", created.ID, created.Type, created.Host, created.Port)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var cfg mq.ConnectionConfig
	if !httputil.DecodeJSON(w, r, &cfg) {
		return
	}
	updated, err := h.store.Update(r.Context(), mux.Vars(r)["id"], cfg)
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

// Test handles POST /api/connections/{id}/test. The outcome is recorded in
// history and returned with status 200 even when the probe fails.
func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.probe(r.Context(), cfg))
}

// TestDraft handles POST /api/connections/test for a connection that has
// not been saved yet.
func (h *Handlers) TestDraft(w http.ResponseWriter, r *http.Request) {
	var cfg mq.ConnectionConfig
	if !httputil.DecodeJSON(w, r, &cfg) {
		return
	}
	if err := Validate(&cfg); err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.probe(r.Context(), &cfg))
}

func (h *Handlers) probe(ctx context.Context, cfg *mq.ConnectionConfig) *mq.TestResult {
	start := time.Now()
	var result *mq.TestResult
	err := h.withAdmin(ctx, cfg, func(ctx context.Context, admin mq.Admin) error {
		result = admin.TestConnection(ctx)
		return nil
	})
	if err != nil {
		result = &mq.TestResult{Success: false, Message: err.Error(), Latency: time.Since(start).Milliseconds()}
	}

	rec := history.Record{
		Type:         history.TypeTest,
		ConnectionID: cfg.ID,
		Success:      result.Success,
		LatencyMs:    result.Latency,
	}
	if !result.Success {
		rec.Error = result.Message
	}
	if err := h.history.Insert(ctx, rec); err != nil {
		log.Printf("connections: failed to record test: %v", err)
	}
	return result
}

func (h *Handlers) ListTopics(w http.ResponseWriter, r *http.Request) {
	h.admin(w, r, func(ctx context.Context, admin mq.Admin) (interface{}, error) {
		return admin.ListTopics(ctx)
	})
}

type createTopicRequest struct {
	Name       string `json:"name"`
	Partitions int32  `json:"partitions"`
	Replicas   int16  `json:"replicas"`
}

func (h *Handlers) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Partitions <= 0 {
		req.Partitions = 1
	}
	if req.Replicas <= 0 {
		req.Replicas = 1
	}
	h.admin(w, r, func(ctx context.Context, admin mq.Admin) (interface{}, error) {
		if err := admin.CreateTopic(ctx, req.Name, req.Partitions, req.Replicas); err != nil {
			return nil, err
		}
		return mq.TopicInfo{Name: req.Name, Partitions: req.Partitions, Replicas: req.Replicas}, nil
	})
}

func (h *Handlers) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	h.admin(w, r, func(ctx context.Context, admin mq.Admin) (interface{}, error) {
		if err := admin.DeleteTopic(ctx, topic); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": topic}, nil
	})
}

func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	h.admin(w, r, func(ctx context.Context, admin mq.Admin) (interface{}, error) {
		return admin.ListConsumerGroups(ctx)
	})
}

// admin resolves the connection in the route, runs fn against a fresh admin
// client and writes the result.
func (h *Handlers) admin(w http.ResponseWriter, r *http.Request, fn func(context.Context, mq.Admin) (interface{}, error)) {
	cfg, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	var out interface{}
	err = h.withAdmin(r.Context(), cfg, func(ctx context.Context, admin mq.Admin) error {
		var fnErr error
		out, fnErr = fn(ctx, admin)
		return fnErr
	})
	if err != nil {
		httputil.WriteMQError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handlers) withAdmin(ctx context.Context, cfg *mq.ConnectionConfig, fn func(context.Context, mq.Admin) error) error {
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	admin, err := h.factory.NewAdmin(cfg.Type)
	if err != nil {
		return err
	}
	if err := admin.Connect(ctx, cfg); err != nil {
		return err
	}
	defer admin.Close() //nolint:errcheck
	return fn(ctx, admin)
}
