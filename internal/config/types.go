package config

// Config is richard's process-level configuration.
//
// It is read from an optional JSON/YAML file and then overlaid with RICHARD_*
// environment variables. Per-module settings are NOT stored here: modules read
// their own keys from the environment (see ParseEnv and Indexed).
type Config struct {
	Logging   LoggingConfig   `json:"logging" envPrefix:"RICHARD_LOG_"`
	Metrics   MetricsConfig   `json:"metrics" envPrefix:"RICHARD_METRICS_"`
	Telemetry TelemetryConfig `json:"telemetry" envPrefix:"RICHARD_OTEL_"`
	HTTP      HTTPConfig      `json:"http" envPrefix:"RICHARD_HTTP_"`
	Scheduler SchedulerConfig `json:"scheduler" envPrefix:"RICHARD_SCHEDULER_"`
}

type LoggingConfig struct {
	Level   string      `json:"level" env:"LEVEL"`
	Console bool        `json:"console" env:"CONSOLE"`
	File    LoggingFile `json:"file" envPrefix:"FILE_"`
	Chat    LoggingChat `json:"chat" envPrefix:"CHAT_"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Path    string `json:"path" env:"PATH"`
}

// LoggingChat mirrors log records at or above MinLevel into the chat room.
type LoggingChat struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	MinLevel   string `json:"min_level" env:"MIN_LEVEL"`
	RatePerSec int    `json:"rate_per_sec" env:"RATE_PER_SEC"`
}

// MetricsConfig controls the optional Prometheus listener.
//
// Prefer binding to localhost; pprof handlers are mounted on the same mux when Pprof is set.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Addr    string `json:"addr,omitempty" env:"ADDR"` // default: "127.0.0.1:9090"
	Pprof   bool   `json:"pprof,omitempty" env:"PPROF"`
}

// TelemetryConfig controls OTLP/HTTP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" env:"ENABLED"`
	Endpoint    string `json:"endpoint,omitempty" env:"ENDPOINT"`
	ServiceName string `json:"service_name,omitempty" env:"SERVICE_NAME"`
}

type HTTPConfig struct {
	// Timeout is a Go duration string applied to every outbound call. Default "10s".
	Timeout   string `json:"timeout,omitempty" env:"TIMEOUT"`
	UserAgent string `json:"user_agent,omitempty" env:"USER_AGENT"`
}

type SchedulerConfig struct {
	// MailboxSize bounds the broadcast queue. Default 100.
	MailboxSize int `json:"mailbox_size,omitempty" env:"MAILBOX_SIZE"`
	// RouterEvery is the trigger router cadence (Go duration or cron). Default "10s".
	RouterEvery string `json:"router_every,omitempty" env:"ROUTER_EVERY"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			Chat:    LoggingChat{MinLevel: "ERROR", RatePerSec: 1},
		},
		Metrics:   MetricsConfig{Addr: "127.0.0.1:9090"},
		Telemetry: TelemetryConfig{ServiceName: "richard"},
		HTTP:      HTTPConfig{Timeout: "10s", UserAgent: "richard/0.0.0"},
		Scheduler: SchedulerConfig{MailboxSize: 100, RouterEvery: "10s"},
	}
}
