// Package fieldlink bridges the competition runtime to an MQTT broker: it
// consumes raw status words published by field-side tooling and uplinks
// phase transitions and log lines as telemetry.
package fieldlink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"braind/internal/competition"
	"braind/pkg/logx"
)

type Config struct {
	Enabled        bool          `json:"enabled"`
	BrokerURL      string        `json:"broker_url"`
	ClientID       string        `json:"client_id"`
	TopicPrefix    string        `json:"topic_prefix"`
	StatusTopic    string        `json:"status_topic"`
	TelemetryTopic string        `json:"telemetry_topic"`
	LogTopic       string        `json:"log_topic"`
	RatePerSec     int           `json:"rate_per_sec"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ClientID == "" {
		out.ClientID = "braind"
	}
	if out.StatusTopic == "" {
		out.StatusTopic = "field/status"
	}
	if out.TelemetryTopic == "" {
		out.TelemetryTopic = "robot/transition"
	}
	if out.LogTopic == "" {
		out.LogTopic = "robot/log"
	}
	if out.RatePerSec < 1 {
		out.RatePerSec = 10
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	return out
}

// Link is an MQTT-backed competition status source and telemetry uplink.
//
// The last status word received on the status topic is cached, so
// CompetitionStatus never blocks; before the first message (or while the
// broker is unreachable) it reads as disconnected, which parks the runtime
// rather than faulting it.
type Link struct {
	cfg    Config
	log    logx.Logger
	client paho.Client
	status atomic.Uint32
	lim    *rate.Limiter
}

// New builds a Link from cfg. It does not dial; call Start.
func New(cfg Config, log logx.Logger) (*Link, error) {
	cfg = cfg.withDefaults()
	opts, prefix, err := clientOptionsFromURL(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("fieldlink: broker url: %w", err)
	}
	if cfg.TopicPrefix != "" {
		prefix = cfg.TopicPrefix
	}
	cfg.TopicPrefix = normalizePrefix(prefix)

	l := &Link{
		cfg: cfg,
		log: log,
		lim: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}

	opts.SetClientID(cfg.ClientID)
	opts.SetOnConnectHandler(func(c paho.Client) {
		l.log.Info("field link connected", logx.String("broker", cfg.BrokerURL))
		// Subscriptions do not survive a clean-session reconnect.
		t := c.Subscribe(l.topic(cfg.StatusTopic), 1, l.onStatus)
		go func() {
			if t.Wait() && t.Error() != nil {
				l.log.Error("status subscribe failed", logx.Err(t.Error()))
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		l.log.Warn("field link connection lost", logx.Err(err))
	})
	l.client = paho.NewClient(opts)
	return l, nil
}

// Start dials the broker and waits for the initial connect.
func (l *Link) Start(ctx context.Context) error {
	tok := l.client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("fieldlink: connect: %w", err)
		}
		return nil
	case <-time.After(l.cfg.ConnectTimeout):
		return fmt.Errorf("fieldlink: connect: timeout after %s", l.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, allowing in-flight publishes a short grace period.
func (l *Link) Close() error {
	l.client.Disconnect(250)
	return nil
}

// CompetitionStatus implements competition.StatusSource.
func (l *Link) CompetitionStatus() competition.Status {
	return competition.Status(l.status.Load())
}

func (l *Link) onStatus(_ paho.Client, msg paho.Message) {
	st, err := parseStatusPayload(msg.Payload())
	if err != nil {
		l.log.Warn("bad status payload",
			logx.String("topic", msg.Topic()),
			logx.Err(err))
		return
	}
	l.status.Store(uint32(st))
	l.log.Trace("field status", logx.String("status", st.String()))
}

// transitionEvent is the JSON shape published on the telemetry topic.
type transitionEvent struct {
	At     time.Time `json:"at"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Status uint32    `json:"status"`
}

// PublishTransition uplinks a phase change. Retained, so late subscribers
// see the current phase immediately.
func (l *Link) PublishTransition(from, to competition.Phase, st competition.Status) {
	payload, err := json.Marshal(transitionEvent{
		At:     time.Now().UTC(),
		From:   from.String(),
		To:     to.String(),
		Status: uint32(st),
	})
	if err != nil {
		return
	}
	l.client.Publish(l.topic(l.cfg.TelemetryTopic), 1, true, payload)
}

// PublishLog implements logx.Sender. Lines beyond the configured rate are
// dropped rather than queued.
func (l *Link) PublishLog(_ context.Context, msg string) error {
	if !l.lim.Allow() {
		return nil
	}
	l.client.Publish(l.topic(l.cfg.LogTopic), 0, false, []byte(msg))
	return nil
}

func (l *Link) topic(name string) string {
	return l.cfg.TopicPrefix + name
}

// parseStatusPayload accepts a decimal status word, optionally surrounded
// by whitespace. Anything else is rejected so a garbled frame cannot flip
// control bits.
func parseStatusPayload(p []byte) (competition.Status, error) {
	s := strings.TrimSpace(string(p))
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse status %q: %w", s, err)
	}
	return competition.Status(v), nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// clientOptionsFromURL maps an mqtt:// or tcp:// URL (with optional
// userinfo and path-as-prefix) onto paho client options.
func clientOptionsFromURL(raw string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("no broker host in %q", raw)
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOrderMatters(false)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}
