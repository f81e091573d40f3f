package config

import "fmt"

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Runtime paces the competition scheduler.
	Runtime RuntimeConfig `json:"runtime"`

	// Field selects where the status word comes from.
	Field FieldConfig `json:"field"`

	FieldLink *FieldLinkConfig `json:"field_link,omitempty"`
	Practice  *PracticeConfig  `json:"practice,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
	Debug     *DebugConfig     `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level     string           `json:"level"`
	Console   bool             `json:"console"`
	File      LoggingFile      `json:"file"`
	Telemetry LoggingTelemetry `json:"telemetry"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelemetry mirrors selected log lines onto the field link uplink.
// It only takes effect when field_link is enabled.
type LoggingTelemetry struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RuntimeConfig controls the scheduler loop.
//
// All durations are Go duration strings (e.g. "10ms", "1s").
type RuntimeConfig struct {
	// StepInterval is how often the scheduler polls status and the running
	// task. Defaults to 10ms.
	StepInterval string `json:"step_interval,omitempty"`
}

// FieldConfig selects the competition status source.
//
// Source values:
//   - "switch": in-memory switch, driven by the practice service
//   - "mqtt": the field_link subscription
type FieldConfig struct {
	Source string `json:"source"`
	// PollInterval rate-limits reads of the underlying source.
	// Empty disables the limiter.
	PollInterval string `json:"poll_interval,omitempty"`
}

type FieldLinkConfig struct {
	Enabled        bool   `json:"enabled"`
	BrokerURL      string `json:"broker_url"`
	ClientID       string `json:"client_id,omitempty"`
	TopicPrefix    string `json:"topic_prefix,omitempty"`
	StatusTopic    string `json:"status_topic,omitempty"`
	TelemetryTopic string `json:"telemetry_topic,omitempty"`
	LogTopic       string `json:"log_topic,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
	ConnectTimeout string `json:"connect_timeout,omitempty"` // Go duration string
}

// PracticeConfig schedules scripted practice matches against the in-memory
// switch. Ignored unless field.source is "switch".
type PracticeConfig struct {
	Enabled  bool     `json:"enabled"`
	Schedule string   `json:"schedule,omitempty"` // cron spec or @every
	Timezone string   `json:"timezone,omitempty"` // IANA TZ
	Script   []string `json:"script,omitempty"`   // "phase:duration" segments
}

// StorageConfig controls the match event log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./braind.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	RetainDays  int    `json:"retain_days,omitempty"`
}

// DebugConfig controls the diagnostic HTTP server (pprof, health, recent
// events).
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:6060").
//   - A non-loopback bind requires a token or an explicit allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 so
	// long pprof profiles work.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// Validate checks everything that can be checked without starting services:
// duration fields parse, enums hold known values, enabled sections carry the
// fields they need.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if _, err := ParseDurationField("runtime.step_interval", cfg.Runtime.StepInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("field.poll_interval", cfg.Field.PollInterval); err != nil {
		return err
	}

	switch cfg.Field.Source {
	case "", "switch":
	case "mqtt":
		if cfg.FieldLink == nil || !cfg.FieldLink.Enabled {
			return fmt.Errorf("field.source is %q but field_link is not enabled", cfg.Field.Source)
		}
	default:
		return fmt.Errorf("field.source: unknown source %q", cfg.Field.Source)
	}

	if fl := cfg.FieldLink; fl != nil && fl.Enabled {
		if fl.BrokerURL == "" {
			return fmt.Errorf("field_link.broker_url is required when field_link is enabled")
		}
		if _, err := ParseDurationField("field_link.connect_timeout", fl.ConnectTimeout); err != nil {
			return err
		}
	}

	if d := cfg.Debug; d != nil {
		for _, f := range []struct{ name, raw string }{
			{"debug.read_timeout", d.ReadTimeout},
			{"debug.write_timeout", d.WriteTimeout},
			{"debug.idle_timeout", d.IdleTimeout},
		} {
			if _, err := ParseDurationField(f.name, f.raw); err != nil {
				return err
			}
		}
	}

	if st := cfg.Storage; st != nil {
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
		if st.RetainDays < 0 {
			return fmt.Errorf("storage.retain_days must be >= 0")
		}
	}

	return nil
}
