// Package practice runs scripted practice matches against the in-memory
// field switch, on a cron schedule or on demand, so match-mode code can be
// exercised without a real field.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"braind/internal/competition"
	"braind/internal/field"
	"braind/pkg/logx"
)

type Config struct {
	Enabled  bool     `json:"enabled"`
	Schedule string   `json:"schedule"` // cron spec or @every
	Timezone string   `json:"timezone"` // IANA TZ, e.g. "America/New_York"
	Script   []string `json:"script"`   // "phase:duration" segments
}

// Segment is one timed slice of a practice match.
type Segment struct {
	Phase    competition.Phase
	Duration time.Duration
}

// Recorder receives practice match markers ("start", "finish") for the
// event log. It must not block.
type Recorder func(detail string)

// Service drives a field.Switch through a parsed script.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	sw     *field.Switch
	record Recorder

	parser cron.Parser
	c      *cron.Cron
	script []Segment

	running atomic.Bool
	started bool
}

func New(cfg Config, sw *field.Switch, log logx.Logger) (*Service, error) {
	script, err := ParseScript(cfg.Script)
	if err != nil {
		return nil, err
	}
	if len(script) == 0 {
		script = DefaultScript()
	}
	return &Service{
		log:    log,
		cfg:    cfg,
		sw:     sw,
		script: script,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}, nil
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// SetRecorder installs the match marker sink. Call before Start.
func (s *Service) SetRecorder(fn Recorder) {
	s.mu.Lock()
	s.record = fn
	s.mu.Unlock()
}

// Start registers the schedule and starts the cron loop. A service without
// a schedule still accepts RunOnce.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		return nil
	}

	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := s.c.AddFunc(spec, func() {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("practice match aborted", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("practice: schedule %q: %w", spec, err)
	}
	s.c.Start()
	s.log.Info("practice schedule armed",
		logx.String("spec", spec),
		logx.String("tz", loc.String()),
		logx.Int("segments", len(s.script)))
	return nil
}

func (s *Service) Stop(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.log.Info("practice schedule stopped")
}

// Apply swaps config at runtime. Schedule or timezone changes restart the
// cron loop; a script change takes effect on the next match.
func (s *Service) Apply(cfg Config) error {
	script, err := ParseScript(cfg.Script)
	if err != nil {
		return err
	}
	if len(script) == 0 {
		script = DefaultScript()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	restart := s.started &&
		(strings.TrimSpace(cfg.Schedule) != strings.TrimSpace(s.cfg.Schedule) ||
			strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone))
	s.cfg = cfg
	s.script = script

	if !restart {
		return nil
	}
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	spec := strings.TrimSpace(cfg.Schedule)
	if spec == "" {
		return nil
	}
	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := s.c.AddFunc(spec, func() {
		if err := s.RunOnce(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("practice match aborted", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("practice: schedule %q: %w", spec, err)
	}
	s.c.Start()
	s.log.Info("practice schedule rearmed", logx.String("spec", spec))
	return nil
}

// RunOnce plays the script front to back, then unplugs the switch. At most
// one match runs at a time; overlapping triggers are skipped.
func (s *Service) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("practice match already running, skipping trigger")
		return nil
	}
	defer s.running.Store(false)
	defer s.sw.Disconnect()

	s.mu.Lock()
	script := s.script
	record := s.record
	s.mu.Unlock()

	s.log.Info("practice match starting", logx.Int("segments", len(script)))
	if record != nil {
		record("start")
	}
	start := time.Now()
	for _, seg := range script {
		s.applySegment(seg)
		if err := sleepCtx(ctx, seg.Duration); err != nil {
			return err
		}
	}
	s.log.Info("practice match finished", logx.Duration("elapsed", time.Since(start)))
	if record != nil {
		record("finish")
	}
	return nil
}

func (s *Service) applySegment(seg Segment) {
	s.log.Debug("practice segment",
		logx.String("phase", seg.Phase.String()),
		logx.Duration("for", seg.Duration))
	switch seg.Phase {
	case competition.PhaseDisconnected:
		s.sw.Disconnect()
	case competition.PhaseDisabled:
		s.sw.Connect()
		s.sw.SetMode(competition.ModeDisabled)
	case competition.PhaseAutonomous:
		s.sw.Connect()
		s.sw.SetMode(competition.ModeAutonomous)
	case competition.PhaseDriver:
		s.sw.Connect()
		s.sw.SetMode(competition.ModeDriver)
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local",
			logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DefaultScript is a standard match: short disabled lead-in, autonomous,
// a disabled gap, driver control, then unplug.
func DefaultScript() []Segment {
	return []Segment{
		{Phase: competition.PhaseDisabled, Duration: 3 * time.Second},
		{Phase: competition.PhaseAutonomous, Duration: 15 * time.Second},
		{Phase: competition.PhaseDisabled, Duration: 2 * time.Second},
		{Phase: competition.PhaseDriver, Duration: 105 * time.Second},
		{Phase: competition.PhaseDisabled, Duration: 3 * time.Second},
	}
}

// ParseScript parses "phase:duration" entries, e.g. "autonomous:15s".
// Allowed phases are disconnected, disabled, autonomous and driver.
func ParseScript(entries []string) ([]Segment, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]Segment, 0, len(entries))
	for i, e := range entries {
		seg, err := parseSegment(e)
		if err != nil {
			return nil, fmt.Errorf("practice: script[%d]: %w", i, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

func parseSegment(s string) (Segment, error) {
	raw := strings.TrimSpace(s)
	phaseStr, durStr, ok := strings.Cut(raw, ":")
	if !ok {
		return Segment{}, fmt.Errorf("invalid segment %q, expected phase:duration", raw)
	}

	var phase competition.Phase
	switch strings.ToLower(strings.TrimSpace(phaseStr)) {
	case "disconnected":
		phase = competition.PhaseDisconnected
	case "disabled":
		phase = competition.PhaseDisabled
	case "autonomous", "auton":
		phase = competition.PhaseAutonomous
	case "driver", "opcontrol":
		phase = competition.PhaseDriver
	default:
		return Segment{}, fmt.Errorf("unknown phase %q", phaseStr)
	}

	d, err := time.ParseDuration(strings.TrimSpace(durStr))
	if err != nil {
		return Segment{}, fmt.Errorf("invalid duration in %q: %w", raw, err)
	}
	if d < 0 {
		return Segment{}, fmt.Errorf("negative duration in %q", raw)
	}
	return Segment{Phase: phase, Duration: d}, nil
}
