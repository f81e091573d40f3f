// Package core assembles the daemon: config, logging, storage, the field
// link, the practice scripter and the competition runtime, supervised as
// one unit with live config reload.
package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"braind/internal/competition"
	"braind/internal/config"
	"braind/internal/field"
	"braind/internal/fieldlink"
	"braind/internal/runtime/supervisor"
	"braind/internal/services/debug"
	"braind/internal/services/practice"
	"braind/internal/storage"
	"braind/pkg/logx"
)

// Runner is the competition loop as core sees it. The concrete type is
// competition.Runtime with whatever shared state the robot uses.
type Runner interface {
	Run(ctx context.Context) error
}

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	sup    *supervisor.Supervisor

	store    storage.Store
	link     *fieldlink.Link
	sw       *field.Switch
	practice *practice.Service
	debug    *debug.Service
	src      competition.StatusSource

	session      string
	stepInterval time.Duration
}

// New loads the config at path and builds every enabled component. Nothing
// runs until Start.
func New(path string) (*App, error) {
	a := &App{
		cfgMgr:  config.NewManager(path),
		session: newSessionID(),
	}

	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// The field link doubles as the telemetry log sink, so it has to exist
	// before the log service. It logs through a bootstrap console logger.
	boot := logx.NewConsole(cfg.Logging.Level)
	var sender logx.Sender
	if fl := cfg.FieldLink; fl != nil && fl.Enabled {
		linkCfg, err := fieldlinkConfig(fl)
		if err != nil {
			return nil, err
		}
		link, err := fieldlink.New(linkCfg, boot)
		if err != nil {
			return nil, err
		}
		a.link = link
		sender = link
	}

	a.logSvc, a.log = logx.New(logxConfig(&cfg.Logging), sender)
	a.cfgMgr.SetLogger(a.log.With(logx.String("component", "config")))
	a.cfgMgr.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if cfg.Practice != nil {
			if _, err := practice.ParseScript(cfg.Practice.Script); err != nil {
				return err
			}
		}
		return nil
	})

	if st := cfg.Storage; st != nil {
		stCfg, err := storageConfig(st)
		if err != nil {
			return nil, err
		}
		store, err := storage.Open(stCfg, a.log.With(logx.String("component", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = store
	}

	if dc := cfg.Debug; dc != nil && dc.Enabled {
		dbgCfg, err := debugConfig(dc)
		if err != nil {
			return nil, err
		}
		var events func(ctx context.Context, limit int) ([]storage.Event, error)
		if a.store != nil {
			events = a.store.RecentEvents
		}
		a.debug = debug.New(dbgCfg, a.log.With(logx.String("component", "debug")), events)
	}

	a.sw = field.NewSwitch(0)
	if pc := cfg.Practice; pc != nil && pc.Enabled {
		svc, err := practice.New(practiceConfig(pc), a.sw, a.log.With(logx.String("component", "practice")))
		if err != nil {
			return nil, err
		}
		if a.store != nil {
			svc.SetRecorder(a.recordMatch)
		}
		a.practice = svc
	}

	if src, err := a.selectSource(cfg); err != nil {
		return nil, err
	} else {
		a.src = src
	}

	a.stepInterval, err = config.ParseDurationOrDefault(
		"runtime.step_interval", cfg.Runtime.StepInterval, competition.DefaultStepInterval)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) selectSource(cfg *config.Config) (competition.StatusSource, error) {
	var src competition.StatusSource
	switch cfg.Field.Source {
	case "", "switch":
		src = a.sw
	case "mqtt":
		if a.link == nil {
			return nil, errors.New("field.source is mqtt but field_link is not enabled")
		}
		src = a.link
	default:
		return nil, fmt.Errorf("unknown field source %q", cfg.Field.Source)
	}

	poll, err := config.ParseDurationField("field.poll_interval", cfg.Field.PollInterval)
	if err != nil {
		return nil, err
	}
	if poll > 0 {
		src = field.NewPoller(src, poll)
	}
	return src, nil
}

// Logger returns the root application logger.
func (a *App) Logger() logx.Logger { return a.log }

// StatusSource is what the competition builder should poll.
func (a *App) StatusSource() competition.StatusSource { return a.src }

// StepInterval is the configured scheduler pace.
func (a *App) StepInterval() time.Duration { return a.stepInterval }

// Switch exposes the in-memory field switch (practice and tooling).
func (a *App) Switch() *field.Switch { return a.sw }

// Session is this boot's event-log session id.
func (a *App) Session() string { return a.session }

// Start brings up the supervised services: the broker link, the practice
// schedule, the config watcher and the reload loop.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return nil
	}
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("component", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.appendEvent(storage.Event{Kind: storage.KindSession, Detail: "start"})

	if a.link != nil {
		// The broker may come up after us; keep dialing until it does.
		a.sup.GoRestart("fieldlink", func(ctx context.Context) error {
			return a.link.Start(ctx)
		}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}

	if a.practice != nil {
		if err := a.practice.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	if a.debug != nil {
		a.sup.GoRestart("debug", a.debug.Run,
			supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	a.sup.Go("config.watch", a.cfgMgr.Watch)
	updates := a.cfgMgr.Subscribe(1)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgMgr.Unsubscribe(updates)
		old := a.cfgMgr.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(old, cfg)
				old = cfg
			}
		}
	})

	a.log.Info("braind started",
		logx.String("session", a.session),
		logx.Duration("step_interval", a.stepInterval),
		logx.Bool("field_link", a.link != nil),
		logx.Bool("practice", a.practice != nil),
		logx.Bool("storage", a.store != nil))
	return nil
}

// RunRuntime runs the competition loop under the supervisor. A task error
// is recorded as a fault event and tears the daemon down.
func (a *App) RunRuntime(r Runner) {
	a.sup.Go("competition", func(ctx context.Context) error {
		err := r.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.recordFault(err)
			return err
		}
		return nil
	})
}

// RecordTransition is wired as the runtime's phase observer.
func (a *App) RecordTransition(from, to competition.Phase, st competition.Status) {
	a.log.Info("phase transition",
		logx.String("from", from.String()),
		logx.String("to", to.String()),
		logx.String("status", st.String()))

	a.appendEvent(storage.Event{
		Kind:      storage.KindTransition,
		FromPhase: from.String(),
		ToPhase:   to.String(),
		Status:    uint32(st),
	})
	if a.link != nil {
		a.link.PublishTransition(from, to, st)
	}
}

func (a *App) recordFault(err error) {
	a.log.Error("competition task failed; shutting down", logx.Err(err))
	a.appendEvent(storage.Event{Kind: storage.KindFault, Detail: err.Error()})
}

// recordMatch is wired into the practice service as its marker sink.
func (a *App) recordMatch(detail string) {
	a.appendEvent(storage.Event{Kind: storage.KindMatch, Detail: detail})
}

// appendEvent writes one event row tagged with this boot's session id.
// A no-op when storage is disabled; append failures are logged, not fatal.
func (a *App) appendEvent(e storage.Event) {
	if a.store == nil {
		return
	}
	e.Session = a.session
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.store.AppendEvent(ctx, e); err != nil {
		a.log.Warn("event log append failed", logx.Err(err))
	}
}

// Wait blocks until the supervised services stop, returning the first
// error (a competition fault, typically).
func (a *App) Wait(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Wait(ctx)
}

// Stop tears the daemon down in dependency order.
func (a *App) Stop(ctx context.Context) error {
	var first error
	if a.practice != nil {
		a.practice.Stop(ctx)
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			first = err
		}
	}
	if a.link != nil {
		_ = a.link.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
	return first
}

// applyConfig handles a validated hot reload. Logging and practice apply
// live; field link, storage and the field source need a restart.
func (a *App) applyConfig(old, cfg *config.Config) {
	changed, attrs := config.SummarizeChange(old, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

	for _, section := range changed {
		switch section {
		case "logging":
			a.logSvc.Apply(logxConfig(&cfg.Logging))
		case "practice":
			if a.practice == nil {
				a.log.Warn("practice section changed; restart required to enable it")
				continue
			}
			if err := a.practice.Apply(practiceConfig(cfg.Practice)); err != nil {
				a.log.Warn("practice config not applied", logx.Err(err))
			}
		case "field", "field_link", "storage", "runtime", "debug":
			a.log.Warn("section requires restart to take effect", logx.String("section", section))
		}
	}
}

func logxConfig(c *config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Telemetry: logx.TelemetryConfig{
			Enabled:    c.Telemetry.Enabled,
			MinLevel:   c.Telemetry.MinLevel,
			RatePerSec: c.Telemetry.RatePerSec,
		},
	}
}

func fieldlinkConfig(c *config.FieldLinkConfig) (fieldlink.Config, error) {
	timeout, err := config.ParseDurationField("field_link.connect_timeout", c.ConnectTimeout)
	if err != nil {
		return fieldlink.Config{}, err
	}
	return fieldlink.Config{
		Enabled:        c.Enabled,
		BrokerURL:      c.BrokerURL,
		ClientID:       c.ClientID,
		TopicPrefix:    c.TopicPrefix,
		StatusTopic:    c.StatusTopic,
		TelemetryTopic: c.TelemetryTopic,
		LogTopic:       c.LogTopic,
		RatePerSec:     c.RatePerSec,
		ConnectTimeout: timeout,
	}, nil
}

func practiceConfig(c *config.PracticeConfig) practice.Config {
	if c == nil {
		return practice.Config{}
	}
	return practice.Config{
		Enabled:  c.Enabled,
		Schedule: c.Schedule,
		Timezone: c.Timezone,
		Script:   c.Script,
	}
}

func storageConfig(c *config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Driver,
		Path:        c.Path,
		BusyTimeout: busy,
		RetainDays:  c.RetainDays,
	}, nil
}

func debugConfig(c *config.DebugConfig) (debug.Config, error) {
	out := debug.Config{
		Enabled:       c.Enabled,
		Addr:          c.Addr,
		Token:         c.Token,
		AllowInsecure: c.AllowInsecure,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationField("debug.read_timeout", c.ReadTimeout); err != nil {
		return debug.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationField("debug.write_timeout", c.WriteTimeout); err != nil {
		return debug.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationField("debug.idle_timeout", c.IdleTimeout); err != nil {
		return debug.Config{}, err
	}
	return out, nil
}

func newSessionID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b[:])
}
