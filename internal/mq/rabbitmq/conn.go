package rabbitmq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// uri renders the AMQP URI for cfg. The vhost defaults to "/".
func uri(cfg *mq.ConnectionConfig) string {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	u := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    vhost,
	}
	if cfg.Extra["tls"] == "true" {
		u.Scheme = "amqps"
	}
	return u.String()
}

func dial(cfg *mq.ConnectionConfig) (*amqp.Connection, *amqp.Channel, error) {
	if cfg == nil {
		return nil, nil, mq.NewValidationError("missing connection config", "")
	}
	if cfg.Type != mq.BrokerRabbitMQ {
		return nil, nil, mq.NewValidationError("invalid broker type for rabbitmq client", string(cfg.Type))
	}
	conn, err := amqp.Dial(uri(cfg))
	if err != nil {
		return nil, nil, mq.NewConnectionError("failed to connect to rabbitmq", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, mq.NewConnectionError("failed to open channel", err)
	}
	return conn, ch, nil
}

// configuredQueues lists the queues named in Extra["queues"]. RabbitMQ has
// no queue listing over AMQP, so these are what ListTopics reports.
func configuredQueues(cfg *mq.ConnectionConfig) []string {
	var queues []string
	for _, q := range strings.Split(cfg.Extra["queues"], ",") {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	return queues
}

func headerTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := make(amqp.Table, len(headers))
	for k, v := range headers {
		t[k] = v
	}
	return t
}

func headerMap(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}
	m := make(map[string]string, len(t))
	for k, v := range t {
		m[k] = fmt.Sprintf("%v", v)
	}
	return m
}
