// Package field provides competition status sources for the runtime: an
// in-memory switch (practice, tests, default daemon source) and a
// rate-limited poller for sources that are expensive to read.
package field

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"braind/internal/competition"
)

// Switch is a settable, in-memory competition control source. It stands in
// for the competition switch / firmware status register and is safe for
// concurrent use: the practice scripter writes it while the runtime polls.
type Switch struct {
	bits atomic.Uint32
}

// NewSwitch creates a switch with the given initial status.
func NewSwitch(initial competition.Status) *Switch {
	s := &Switch{}
	s.bits.Store(uint32(initial))
	return s
}

// CompetitionStatus implements competition.StatusSource.
func (s *Switch) CompetitionStatus() competition.Status {
	return competition.Status(s.bits.Load())
}

// Set replaces the whole status word.
func (s *Switch) Set(st competition.Status) {
	s.bits.Store(uint32(st))
}

// Connect raises the connected bit, preserving the mode bits.
func (s *Switch) Connect() {
	s.update(func(st competition.Status) competition.Status {
		return st | competition.StatusConnected
	})
}

// Disconnect clears the connected bit, preserving the mode bits.
func (s *Switch) Disconnect() {
	s.update(func(st competition.Status) competition.Status {
		return st &^ competition.StatusConnected
	})
}

// SetMode rewrites the mode bits, preserving connected/system bits.
func (s *Switch) SetMode(m competition.Mode) {
	s.update(func(st competition.Status) competition.Status {
		st &^= competition.StatusDisabled | competition.StatusAutonomous
		switch m {
		case competition.ModeDisabled:
			st |= competition.StatusDisabled
		case competition.ModeAutonomous:
			st |= competition.StatusAutonomous
		}
		return st
	})
}

func (s *Switch) update(fn func(competition.Status) competition.Status) {
	for {
		old := s.bits.Load()
		next := uint32(fn(competition.Status(old)))
		if s.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Poller caches a wrapped source behind a rate limiter so runtime steps
// stay cheap even when the underlying read is not. Between allowed reads
// it serves the last observed status.
type Poller struct {
	src  competition.StatusSource
	lim  *rate.Limiter
	last atomic.Uint32
}

// NewPoller wraps src, reading it at most once per interval.
func NewPoller(src competition.StatusSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	p := &Poller{
		src: src,
		lim: rate.NewLimiter(rate.Every(interval), 1),
	}
	p.last.Store(uint32(src.CompetitionStatus()))
	return p
}

// CompetitionStatus implements competition.StatusSource.
func (p *Poller) CompetitionStatus() competition.Status {
	if p.lim.Allow() {
		p.last.Store(uint32(p.src.CompetitionStatus()))
	}
	return competition.Status(p.last.Load())
}
