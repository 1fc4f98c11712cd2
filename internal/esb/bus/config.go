package bus

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/riverbus/envelope/internal/esb/esberr"
)

// QueueConfig is the TOML-facing description of one queue. It is expanded
// into a queue.Definition by the caller that owns the handler function,
// since handlers cannot be expressed in configuration.
type QueueConfig struct {
	Name                     string        `toml:"name"`
	Type                     string        `toml:"type"` // "fifo" | "delayable"
	IsPull                   bool          `toml:"is_pull"`
	MaxSize                  int           `toml:"max_size"`
	DefaultProcessingTimeout time.Duration `toml:"default_processing_timeout"`
	FetchInterval            time.Duration `toml:"fetch_interval"`
	IsFaultQueue             bool          `toml:"is_fault_queue"`
	FaultQueueName           string        `toml:"fault_queue_name"`
	MaxRetries               int           `toml:"max_retries"`
	RetryInterval            time.Duration `toml:"retry_interval"`
	IsOrchestration          bool          `toml:"is_orchestration"`
}

// ExchangeConfig is the TOML-facing description of one exchange.
type ExchangeConfig struct {
	Name         string            `toml:"name"`
	Type         string            `toml:"type"` // "direct" | "fanout" | "headers"
	HeadersMatch string            `toml:"headers_match"`
	Headers      map[string]string `toml:"headers"`
	Bindings     []BindingConfig   `toml:"bindings"`
}

// BindingConfig pairs a target queue with a route name.
type BindingConfig struct {
	QueueName string `toml:"queue_name"`
	RouteName string `toml:"route_name"`
}

// SecretRef is a string that may be a literal value or a
// `scheme://reference` resolved through a SecretsResolver at startup
// (§6.5 of the expanded spec). Scheme is one of "vault", "gcpsm", "awssm".
type SecretRef string

// Configuration is the top-level bus configuration (§6 "Configuration").
// Validation rejects an empty name, a missing default client message, and
// a queue set with neither queues nor exchanges declared.
type Configuration struct {
	BusName              string           `toml:"bus_name"`
	HostInfo             string           `toml:"host_info"`
	DefaultClientMessage string           `toml:"default_client_message"`
	Queues               []QueueConfig    `toml:"queues"`
	Exchanges            []ExchangeConfig `toml:"exchanges"`

	BodyStoreDSN    SecretRef `toml:"body_store_dsn"`
	EventSinkTarget string    `toml:"event_sink_target"` // "memory" | "nats"
	NATSUrl         SecretRef `toml:"nats_url"`
}

// LoadConfiguration reads and decodes a TOML configuration file.
func LoadConfiguration(path string) (Configuration, error) {
	var cfg Configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading bus configuration: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("decoding bus configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations missing mandatory fields (§6).
func (c Configuration) Validate() error {
	if c.BusName == "" {
		return esberr.Argument("bus_name must not be empty", nil)
	}
	if c.DefaultClientMessage == "" {
		return esberr.Argument("default_client_message must not be empty", nil)
	}
	if len(c.Queues) == 0 && len(c.Exchanges) == 0 {
		return esberr.Argument("configuration must declare at least one queue or exchange", nil)
	}
	seen := make(map[string]struct{}, len(c.Queues))
	for _, q := range c.Queues {
		if q.Name == "" {
			return esberr.Argument("queue name must not be empty", nil)
		}
		if _, dup := seen[q.Name]; dup {
			return esberr.Argument(fmt.Sprintf("duplicate queue name %q", q.Name), nil)
		}
		seen[q.Name] = struct{}{}
	}
	return nil
}
