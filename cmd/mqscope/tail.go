package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/mqscope/internal/events"
	"github.com/darkden-lab/mqscope/internal/history"
	"github.com/darkden-lab/mqscope/internal/ingest"
	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/mq/factory"
	"github.com/darkden-lab/mqscope/internal/session"
	"github.com/darkden-lab/mqscope/internal/settings"
)

const tailConnectionID = "cli"

type tailOptions struct {
	broker        string
	host          string
	port          int
	username      string
	password      string
	vhost         string
	topics        []string
	groupID       string
	fromBeginning bool
	maxMessages   int
	jsonOutput    bool
}

func newTailCmd() *cobra.Command {
	opts := tailOptions{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow topics from the terminal",
		Long: `Consumes the given topics (queues for RabbitMQ) and prints each message.
At most --max-messages messages are kept and printed. The session ends when
the next message arrives after that, when the broker closes the session, or
on Ctrl-C; a topic holding exactly --max-messages messages keeps waiting.`,
		Example: `  mqscope tail --broker kafka --host localhost --port 9092 --topic orders
  mqscope tail --broker rabbitmq --port 5672 --topic audit --max-messages 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTail(ctx, opts, factory.New(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.broker, "broker", string(mq.BrokerKafka), "Broker type: kafka or rabbitmq")
	f.StringVar(&opts.host, "host", "localhost", "Broker host")
	f.IntVar(&opts.port, "port", 9092, "Broker port")
	f.StringVar(&opts.username, "username", "", "Username")
	f.StringVar(&opts.password, "password", "", "Password")
	f.StringVar(&opts.vhost, "vhost", "", "RabbitMQ virtual host")
	f.StringSliceVarP(&opts.topics, "topic", "t", nil, "Topic or queue to consume (repeatable)")
	f.StringVar(&opts.groupID, "group", settings.DefaultGroupID, "Consumer group id")
	f.BoolVar(&opts.fromBeginning, "from-beginning", false, "Start from the earliest offset")
	f.IntVar(&opts.maxMessages, "max-messages", settings.DefaultMaxMessages, "Keep at most this many messages; the next one ends the session")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print messages as JSON lines")
	cmd.MarkFlagRequired("topic") //nolint:errcheck
	return cmd
}

// staticResolver serves the single connection described by the flags.
type staticResolver struct {
	cfg *mq.ConnectionConfig
}

func (r staticResolver) Get(ctx context.Context, id string) (*mq.ConnectionConfig, error) {
	if id != r.cfg.ID {
		return nil, mq.NewNotFoundError("connection", id)
	}
	return r.cfg, nil
}

// terminalNotifier writes notifications to w.
type terminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *terminalNotifier) Notify(text string, severity ingest.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] %s\n", severity, text)
}

// runTail runs the ingestion pipeline headless until the session stops or
// ctx ends.
func runTail(ctx context.Context, opts tailOptions, brokers mq.Factory, out, errOut io.Writer) error {
	if opts.maxMessages <= 0 {
		return fmt.Errorf("--max-messages must be positive")
	}
	conn := &mq.ConnectionConfig{
		ID:       tailConnectionID,
		Name:     fmt.Sprintf("%s:%d", opts.host, opts.port),
		Type:     mq.BrokerType(opts.broker),
		Host:     opts.host,
		Port:     opts.port,
		Username: opts.username,
		Password: opts.password,
		VHost:    opts.vhost,
		GroupID:  opts.groupID,
	}

	bus := events.NewInMemoryBus(0)
	defer bus.Close()

	messages := ingest.NewMessageStore()
	state := settings.NewConsumerState(opts.groupID, opts.maxMessages)
	persister := settings.NewPersister(settings.NewStore(nil), state, messages)

	manager := session.NewManager(brokers, staticResolver{cfg: conn}, bus, history.NewStore(nil))
	defer manager.StopAll()
	controller := session.NewController(manager, state, persister)

	router := ingest.NewRouter(bus, messages, state, nil)
	if err := router.Setup(&terminalNotifier{w: errOut}, controller); err != nil {
		return err
	}

	var printMu sync.Mutex
	messages.OnAdmit(func(m mq.Message) {
		printMu.Lock()
		defer printMu.Unlock()
		printMessage(out, m, opts.jsonOutput)
	})

	stopped := make(chan struct{})
	var (
		once    sync.Once
		running atomic.Bool
	)
	state.OnChange(func(s settings.State) {
		if s.Consuming {
			running.Store(true)
			return
		}
		if running.Load() {
			once.Do(func() { close(stopped) })
		}
	})

	id, err := controller.Start(ctx, session.StartRequest{
		ConnectionID:  tailConnectionID,
		Topics:        opts.topics,
		GroupID:       opts.groupID,
		FromBeginning: &opts.fromBeginning,
	})
	if err != nil {
		return err
	}

	ended := make(chan struct{})
	go func() {
		manager.Wait(ctx, id)
		close(ended)
	}()

	select {
	case <-ctx.Done():
	case <-stopped:
	case <-ended:
	}
	controller.StopSession()
	// Let queued events reach the store before reporting.
	bus.Close()

	fmt.Fprintf(errOut, "received %d message(s)\n", messages.Len())
	return nil
}

func printMessage(w io.Writer, m mq.Message, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(m)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}
	key := m.Key
	if key == "" {
		key = "-"
	}
	fmt.Fprintf(w, "%s [%d@%d] %s %s\n", m.Topic, m.Partition, m.Offset, key, m.Value)
}
