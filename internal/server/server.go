// Package server assembles the HTTP API, the websocket push channel and the
// ingestion pipeline into one process.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkden-lab/mqscope/internal/applog"
	"github.com/darkden-lab/mqscope/internal/config"
	"github.com/darkden-lab/mqscope/internal/connections"
	"github.com/darkden-lab/mqscope/internal/db"
	"github.com/darkden-lab/mqscope/internal/events"
	"github.com/darkden-lab/mqscope/internal/history"
	"github.com/darkden-lab/mqscope/internal/httputil"
	"github.com/darkden-lab/mqscope/internal/ingest"
	mw "github.com/darkden-lab/mqscope/internal/middleware"
	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/mq/factory"
	"github.com/darkden-lab/mqscope/internal/session"
	"github.com/darkden-lab/mqscope/internal/settings"
	"github.com/darkden-lab/mqscope/internal/templates"
	"github.com/darkden-lab/mqscope/internal/ws"
)

// Options adjust how New builds the server.
type Options struct {
	// Factory overrides the broker client factory.
	Factory mq.Factory
	// NoDatabase skips the database and keeps everything in memory.
	NoDatabase bool
	// Logs is the buffer behind GET /api/logs and the logs channel. The
	// caller attaches it to the standard logger. Nil gets a detached buffer.
	Logs *applog.Buffer
}

// Server owns every long-lived component.
type Server struct {
	cfg *config.Config

	database  *db.DB
	logs      *applog.Buffer
	unhookLog func()
	bus       *events.InMemoryBus
	hub       *ws.Hub
	limiter   *mw.RateLimiter
	messages  *ingest.MessageStore
	state     *settings.ConsumerState
	persister *settings.Persister
	manager   *session.Manager
	router    *mux.Router
	handler   http.Handler
}

// New connects to the database (continuing without one on failure), restores
// the last checkpoint and wires the ingestion router to the websocket
// notifier and the session controller.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	s := &Server{cfg: cfg}

	if !opts.NoDatabase {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("WARNING: database connection failed: %v (continuing without DB)", err)
		} else {
			s.database = database
			if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
				log.Printf("WARNING: migrations failed: %v", err)
			}
		}
	}
	pool := s.database.PoolOrNil()

	brokers := opts.Factory
	if brokers == nil {
		brokers = factory.New()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ingest.NewMetrics(registry)

	// Stores
	connStore := connections.NewStore(pool, cfg.EncryptionKey)
	histStore := history.NewStore(pool)
	tmplStore := templates.NewStore(pool)
	settingsStore := settings.NewStore(pool)

	s.messages = ingest.NewMessageStore()
	s.state = settings.NewConsumerState(cfg.DefaultGroupID, cfg.DefaultMaxMessages)
	s.persister = settings.NewPersister(settingsStore, s.state, s.messages)
	if err := s.persister.Load(ctx); err != nil {
		log.Printf("WARNING: failed to restore consumer state: %v", err)
	}

	// WebSocket Hub
	s.hub = ws.NewHub()
	go s.hub.Run()
	s.logs = opts.Logs
	if s.logs == nil {
		s.logs = applog.NewBuffer(cfg.LogBufferSize)
	}
	s.unhookLog = s.logs.Subscribe(ws.LogHook(s.hub))
	s.messages.OnAdmit(ws.MessageHook(s.hub))
	s.state.OnChange(ws.StateHook(s.hub))

	// Sessions and ingestion
	s.bus = events.NewInMemoryBus(0)
	s.manager = session.NewManager(brokers, connStore, s.bus, histStore)
	controller := session.NewController(s.manager, s.state, s.persister)
	producer := session.NewProducer(brokers, connStore, histStore)

	ingestRouter := ingest.NewRouter(s.bus, s.messages, s.state, metrics)
	if err := ingestRouter.Setup(ws.NewNotifier(s.hub), controller); err != nil {
		s.Close(ctx)
		return nil, err
	}

	// Router
	r := mux.NewRouter()
	s.limiter = mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Use(s.limiter.Middleware())

	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	connections.NewHandlers(connStore, brokers, histStore).RegisterRoutes(r)
	history.NewHandlers(histStore).RegisterRoutes(r)
	applog.NewHandlers(s.logs).RegisterRoutes(r)
	templates.NewHandlers(tmplStore).RegisterRoutes(r)
	settings.NewHandlers(s.state, s.messages, s.persister).RegisterRoutes(r)
	session.NewHandlers(controller, s.manager, producer).RegisterRoutes(r)
	ws.NewHandler(s.hub, cfg.AllowedOrigins).RegisterRoutes(r)

	s.router = r
	s.handler = mw.CORS(cfg.AllowedOrigins, r)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"database": s.database != nil,
		"sessions": len(s.manager.Active()),
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and releases every component.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:           addr,
		Handler:        s.handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close(shutdownCtx)
	log.Println("Server stopped")
	return err
}

// Close stops every session, saves a final checkpoint and releases
// resources. The saved state never claims a running session.
func (s *Server) Close(ctx context.Context) {
	if s.manager != nil {
		s.manager.StopAll()
	}
	if s.bus != nil {
		s.bus.Close() //nolint:errcheck
	}
	if s.state != nil {
		s.state.StopConsuming()
	}
	if s.persister != nil {
		s.persister.Checkpoint(ctx, "shutdown")
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.unhookLog != nil {
		s.unhookLog()
	}
	if s.hub != nil {
		s.hub.Stop()
	}
	s.database.Close()
}
