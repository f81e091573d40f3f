package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	RetainDays  int           // prune events older than this; 0 keeps everything
}

// Event kinds.
const (
	KindSession    = "session"    // daemon boot marker
	KindTransition = "transition" // phase change
	KindFault      = "fault"      // task error that ended the run
	KindMatch      = "match"      // practice match start/finish
)

// Event is one row of the match event log.
// Keep it compact and schema-stable.
type Event struct {
	ID        int64
	At        time.Time
	Session   string // boot session id
	Kind      string
	FromPhase string
	ToPhase   string
	Status    uint32 // raw status word at the time
	Detail    string
}
