package kafka

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// DefaultGroupID is used when neither the consume request nor the
// connection names a consumer group.
const DefaultGroupID = "mqscope-consumer"

// brokerAddrs returns the bootstrap address from Host/Port followed by any
// comma-separated addresses in Extra["brokers"].
func brokerAddrs(cfg *mq.ConnectionConfig) []string {
	addrs := []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	for _, b := range strings.Split(cfg.Extra["brokers"], ",") {
		if b = strings.TrimSpace(b); b != "" && b != addrs[0] {
			addrs = append(addrs, b)
		}
	}
	return addrs
}

// extraInt reads a positive integer from Extra, returning fallback when the
// key is missing or invalid.
func extraInt(cfg *mq.ConnectionConfig, key string, fallback int) int {
	v, ok := cfg.Extra[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func checkType(cfg *mq.ConnectionConfig) error {
	if cfg == nil {
		return mq.NewValidationError("missing connection config", "")
	}
	if cfg.Type != mq.BrokerKafka {
		return mq.NewValidationError("invalid broker type for kafka client", string(cfg.Type))
	}
	return nil
}
