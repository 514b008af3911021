package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBackgroundWorker_Disabled(t *testing.T) {
	ws := newTestWorkspace(t, newTestVault(t, "a.md"))
	worker := NewBackgroundWorker(WorkerConfig{Workspace: ws})
	defer worker.Stop()

	if worker.Enabled() {
		t.Error("expected worker without a path mapper to be disabled")
	}
	if worker.WaitForChanges() != nil {
		t.Error("expected no wait command when disabled")
	}
	if worker.SyncCmd() != nil {
		t.Error("expected no sync command when disabled")
	}
	if err := worker.Start(); err != nil {
		t.Errorf("Start on a disabled worker: %v", err)
	}

	var nilWorker *BackgroundWorker
	if nilWorker.Enabled() {
		t.Error("expected nil worker to be disabled")
	}
}

func TestBackgroundWorker_StartStop(t *testing.T) {
	v := newTestVault(t, "docs/a.md", "b.md")
	ws := newTestWorkspace(t, v)
	if err := ws.Store().Expand(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}

	worker := NewBackgroundWorker(WorkerConfig{
		Workspace:     ws,
		Paths:         v,
		DebounceDelay: 20 * time.Millisecond,
	})

	if worker.State() != WorkerIdle {
		t.Errorf("expected idle state, got %v", worker.State())
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	watched := strings.Join(worker.Watched(), ",")
	if !strings.Contains(watched, "docs") {
		t.Errorf("expected docs watched, got %q", watched)
	}

	worker.Stop()
	worker.Stop()
	if worker.State() != WorkerStopped {
		t.Errorf("expected stopped state, got %v", worker.State())
	}
	if cmd := worker.Refresh([]string{"docs"}); cmd() != nil {
		t.Error("expected no message from a stopped worker")
	}
}

func TestBackgroundWorker_DetectsExternalChange(t *testing.T) {
	v := newTestVault(t, "docs/a.md")
	ws := newTestWorkspace(t, v)
	if err := ws.Store().Expand(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}

	worker := NewBackgroundWorker(WorkerConfig{
		Workspace:     ws,
		Paths:         v,
		DebounceDelay: 20 * time.Millisecond,
	})
	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer worker.Stop()

	if err := os.WriteFile(filepath.Join(v.Root(), "docs", "new.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan interface{}, 1)
	go func() { got <- worker.WaitForChanges()() }()

	var changed DirsChangedMsg
	select {
	case msg := <-got:
		var ok bool
		if changed, ok = msg.(DirsChangedMsg); !ok {
			t.Fatalf("expected DirsChangedMsg, got %T", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
	if strings.Join(changed.Dirs, ",") != "docs" {
		t.Errorf("expected docs changed, got %v", changed.Dirs)
	}

	msg := worker.Refresh(changed.Dirs)()
	if _, ok := msg.(DirsRefreshedMsg); !ok {
		t.Fatalf("expected DirsRefreshedMsg, got %T", msg)
	}
	if _, ok := ws.Store().Lookup("docs/new.md"); !ok {
		t.Error("expected refreshed listing to contain docs/new.md")
	}
	if worker.State() != WorkerIdle {
		t.Errorf("expected idle after refresh, got %v", worker.State())
	}
	if worker.LastError() != nil {
		t.Errorf("expected no error, got %v", worker.LastError())
	}
}

func TestBackgroundWorker_RefreshWhileProcessingRequeues(t *testing.T) {
	v := newTestVault(t, "a.md")
	ws := newTestWorkspace(t, v)
	worker := NewBackgroundWorker(WorkerConfig{Workspace: ws, Paths: v})
	defer worker.Stop()

	worker.mu.Lock()
	worker.state = WorkerProcessing
	worker.mu.Unlock()

	if msg := worker.Refresh([]string{"x"})(); msg != nil {
		t.Errorf("expected no message while busy, got %T", msg)
	}
	if got := worker.takePending(); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected x queued again, got %v", got)
	}
}

func TestWorkerError_String(t *testing.T) {
	err := WorkerError{
		Phase:   "refresh",
		Cause:   os.ErrNotExist,
		Time:    time.Now(),
		Retries: 3,
	}

	s := err.Error()
	if !strings.Contains(s, "refresh") {
		t.Errorf("Error() should contain phase 'refresh': %s", s)
	}
	if !strings.Contains(s, "3") {
		t.Errorf("Error() should contain retry count: %s", s)
	}
	if err.Unwrap() != os.ErrNotExist {
		t.Error("Unwrap() should return underlying error")
	}
}

func TestBackgroundWorker_SafeCompute(t *testing.T) {
	ws := newTestWorkspace(t, newTestVault(t, "a.md"))
	worker := NewBackgroundWorker(WorkerConfig{Workspace: ws})
	defer worker.Stop()

	werr := worker.safeCompute("test", func() error {
		panic("intentional panic for testing")
	})
	if werr == nil {
		t.Fatal("safeCompute should catch panics")
	}
	if werr.Phase != "test" {
		t.Errorf("Expected phase 'test', got %q", werr.Phase)
	}
	if !strings.Contains(werr.Cause.Error(), "intentional panic") {
		t.Errorf("expected panic value in cause, got %v", werr.Cause)
	}

	if werr := worker.safeCompute("test", func() error { return nil }); werr != nil {
		t.Errorf("expected nil for a clean run, got %v", werr)
	}
}

func TestBackgroundWorker_RecordError(t *testing.T) {
	ws := newTestWorkspace(t, newTestVault(t, "a.md"))
	worker := NewBackgroundWorker(WorkerConfig{Workspace: ws})
	defer worker.Stop()

	worker.recordError(&WorkerError{Phase: "sync", Cause: os.ErrPermission})
	worker.recordError(&WorkerError{Phase: "sync", Cause: os.ErrPermission})
	if got := worker.LastError(); got == nil || got.Retries != 2 {
		t.Fatalf("expected 2 consecutive failures, got %+v", got)
	}

	worker.recordError(nil)
	if worker.LastError() != nil {
		t.Error("expected error cleared on success")
	}
	worker.recordError(&WorkerError{Phase: "sync", Cause: os.ErrPermission})
	if got := worker.LastError(); got.Retries != 1 {
		t.Errorf("expected retry count reset, got %d", got.Retries)
	}
}
