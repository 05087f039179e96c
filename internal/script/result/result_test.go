package result

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// NewCollector
// ---------------------------------------------------------------------------

func TestNewCollector(t *testing.T) {
	c := NewCollector("build.jzt")
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.scriptPath != "build.jzt" {
		t.Errorf("scriptPath = %q, want %q", c.scriptPath, "build.jzt")
	}
	if c.startTime.IsZero() {
		t.Error("startTime should not be zero")
	}
	if c.RunID() == "" {
		t.Error("run id should be set")
	}
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

func TestFinalizeOK(t *testing.T) {
	c := NewCollector("ok.jzt")
	c.RecordCommand([]string{"make", "all"}, "/src", 0, false, time.Now(), 20*time.Millisecond)
	c.RecordCommand([]string{"false"}, "/src", 1, false, time.Now(), time.Millisecond)
	c.RecordRecovered("cmd", "false exited with 1")
	c.RecordThread("worker", 5*time.Millisecond, nil)
	c.RecordThread("broken", time.Millisecond, errors.New("boom"))
	report := c.Finalize()

	if report.Status != "ok" {
		t.Errorf("status = %q, want ok", report.Status)
	}
	want := Summary{Commands: 2, FailedCommands: 1, Recovered: 1, Threads: 2, FailedThreads: 1}
	if report.Summary != want {
		t.Errorf("summary = %+v, want %+v", report.Summary, want)
	}
	if report.Commands[0].DurationMs != 20 {
		t.Errorf("duration = %d, want 20", report.Commands[0].DurationMs)
	}
	if report.Threads[1].Error != "boom" {
		t.Errorf("thread error = %q", report.Threads[1].Error)
	}
}

func TestFinalizeFailed(t *testing.T) {
	c := NewCollector("fail.jzt")
	c.RecordError("variable \"x\" not found")
	report := c.Finalize()
	if report.Status != "failed" {
		t.Errorf("status = %q, want failed", report.Status)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(report.Errors))
	}
}

func TestArgvCopied(t *testing.T) {
	c := NewCollector("copy.jzt")
	argv := []string{"cc", "a.c"}
	c.RecordCommand(argv, "/", 0, false, time.Now(), 0)
	argv[1] = "changed"
	if got := c.Finalize().Commands[0].Argv[1]; got != "a.c" {
		t.Errorf("argv[1] = %q, want a.c", got)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector("par.jzt")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordCommand([]string{"true"}, "/", 0, true, time.Now(), 0)
		}()
	}
	wg.Wait()
	if n := c.Finalize().Summary.Commands; n != 20 {
		t.Errorf("commands = %d, want 20", n)
	}
}

func TestReportJSON(t *testing.T) {
	c := NewCollector("json.jzt")
	c.RecordCommand([]string{"ls"}, "/tmp", 0, false, time.Now(), 0)
	data, err := json.Marshal(c.Finalize())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"run_id", "script_path", "status", "commands", "summary"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}
