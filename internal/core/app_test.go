package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"braind/internal/competition"
	"braind/internal/storage"
	"braind/pkg/logx"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "braind.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewBuildsSwitchBackedApp(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: error
runtime:
  step_interval: 5ms
field:
  source: switch
practice:
  enabled: true
  script:
    - disabled:1ms
    - driver:1ms
storage:
  driver: file
  path: `+filepath.Join(dir, "events.jsonl")+`
`)

	app, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Stop(context.Background())

	if app.StatusSource() == nil {
		t.Fatal("no status source selected")
	}
	if app.StepInterval() != 5*time.Millisecond {
		t.Fatalf("step interval = %v", app.StepInterval())
	}
	if app.Session() == "" {
		t.Fatal("empty session id")
	}
	if app.practice == nil {
		t.Fatal("practice service not built")
	}
}

func TestRecordTransitionPersistsEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.jsonl")
	path := writeConfig(t, dir, `
logging:
  level: error
field:
  source: switch
storage:
  driver: file
  path: `+eventsPath+`
`)

	app, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Stop(context.Background())

	app.RecordTransition(competition.PhaseNeverConnected, competition.PhaseConnected,
		competition.StatusConnected)

	st, err := storage.Open(storage.Config{Driver: "file", Path: eventsPath}, logx.Nop())
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer st.Close()
	events, err := st.RecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Kind != storage.KindTransition || e.ToPhase != "connected" || e.Session != app.Session() {
		t.Fatalf("event = %+v", e)
	}
}

func TestStartWritesSessionEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.jsonl")
	path := writeConfig(t, dir, `
logging:
  level: error
field:
  source: switch
storage:
  driver: file
  path: `+eventsPath+`
`)

	app, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: eventsPath}, logx.Nop())
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer st.Close()
	events, err := st.RecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Kind != storage.KindSession || e.Detail != "start" || e.Session != app.Session() {
		t.Fatalf("event = %+v, want session start marker", e)
	}
}

func TestNewRejectsMQTTWithoutLink(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), `
logging:
  level: error
field:
  source: mqtt
`)
	if _, err := New(path); err == nil {
		t.Fatal("expected error for mqtt source without field_link")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), `
logging:
  level: error
field:
  source: switch
`)
	app, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
