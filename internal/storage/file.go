package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "braind/pkg/logx"
)

// fileStore is a dependency-free persistence backend: a single append-only
// JSON Lines file. RecentEvents rescans the file, which is fine at the
// volumes a robot produces (a handful of transitions per match).
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	file   *os.File
	nextID int64
}

type fileRecord struct {
	ID      int64  `json:"id"`
	At      int64  `json:"at"` // unix milli
	Session string `json:"session"`
	Kind    string `json:"kind"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Status  uint32 `json:"status,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, file: f, nextID: 1}
	// Resume the id sequence from the existing log.
	if last, err := s.scan(0); err == nil && len(last) > 0 {
		s.nextID = last[0].ID + 1
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendEvent(ctx context.Context, e Event) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("event log closed")
	}
	rec := fileRecord{
		ID:      s.nextID,
		At:      e.At.UnixMilli(),
		Session: e.Session,
		Kind:    e.Kind,
		From:    e.FromPhase,
		To:      e.ToPhase,
		Status:  e.Status,
		Detail:  e.Detail,
	}
	if err := json.NewEncoder(s.file).Encode(rec); err != nil {
		return err
	}
	s.nextID++
	return nil
}

func (s *fileStore) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	_ = ctx
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil, errors.New("event log closed")
	}
	return s.scan(limit)
}

// scan returns events newest first; limit 0 means only the newest one.
// Caller holds the lock.
func (s *fileStore) scan(limit int) ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keep := limit
	if keep <= 0 {
		keep = 1
	}
	ring := make([]Event, 0, keep)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r fileRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue // skip torn tail lines from a crash
		}
		e := Event{
			ID:        r.ID,
			At:        time.UnixMilli(r.At),
			Session:   r.Session,
			Kind:      r.Kind,
			FromPhase: r.From,
			ToPhase:   r.To,
			Status:    r.Status,
			Detail:    r.Detail,
		}
		if len(ring) == keep {
			copy(ring, ring[1:])
			ring = ring[:keep-1]
		}
		ring = append(ring, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// File order is oldest first; flip to newest first.
	out := make([]Event, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		out = append(out, ring[i])
	}
	return out, nil
}
