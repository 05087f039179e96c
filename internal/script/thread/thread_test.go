package thread

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestStartJoin(t *testing.T) {
	reg := NewRegistry(nil)
	h := NewHandle(0)
	release := make(chan struct{})

	err := reg.Start(h, "worker", func(h *Handle) error {
		<-release
		h.Output().WriteString("finished")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Active() != 1 {
		t.Fatalf("active = %d, want 1", reg.Active())
	}
	if h.Join(20) {
		t.Fatal("join must time out while the body is blocked")
	}
	if err := reg.Start(h, "again", func(*Handle) error { return nil }); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}

	close(release)
	if !h.Join(0) {
		t.Fatal("join without timeout must report completion")
	}
	if !h.Done() || h.Err() != nil {
		t.Errorf("done=%v err=%v", h.Done(), h.Err())
	}
	if h.Text() != "finished" {
		t.Errorf("text = %q", h.Text())
	}
	if err := reg.WaitIdle(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueues(t *testing.T) {
	reg := NewRegistry(nil)
	h := NewHandle(2)

	err := reg.Start(h, "echo", func(h *Handle) error {
		for {
			cmd := h.AwaitCommand(0)
			if cmd == "stop" {
				return nil
			}
			if err := h.SendMessage("echo:" + cmd.(string)); err != nil {
				return err
			}
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range []string{"a", "b"} {
		if err := h.SendCommand(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := h.AwaitMessage(1000); got != "echo:"+c {
			t.Errorf("message = %v, want echo:%s", got, c)
		}
	}
	if got := h.AwaitMessage(10); got != nil {
		t.Errorf("expected nil on timeout, got %v", got)
	}
	if err := h.SendCommand("stop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Join(1000) {
		t.Fatal("thread did not stop")
	}
}

func TestQueueFull(t *testing.T) {
	h := NewHandle(1)
	if err := h.SendCommand(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.SendCommand(2); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPanicRecoveredAndLogged(t *testing.T) {
	var logBuf syncBuffer
	reg := NewRegistry(&logBuf)
	h := NewHandle(0)
	if err := reg.Start(h, "bad", func(*Handle) error { panic("boom") }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Join(0)
	if h.Err() == nil || !strings.Contains(h.Err().Error(), "boom") {
		t.Fatalf("expected panic error, got %v", h.Err())
	}
	if err := reg.WaitIdle(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(logBuf.String(), "[ERROR] thread bad") {
		t.Errorf("log = %q", logBuf.String())
	}
}

func TestClearAndReuse(t *testing.T) {
	reg := NewRegistry(nil)
	h := NewHandle(0)
	if err := reg.Start(h, "first", func(h *Handle) error {
		h.Output().WriteString("one")
		return errors.New("failed")
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Join(0)
	firstID := h.ID()
	if err := h.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Err() != nil || h.Text() != "" || h.Done() {
		t.Fatalf("clear left state: err=%v text=%q done=%v", h.Err(), h.Text(), h.Done())
	}
	if h.ID() == firstID {
		t.Error("cleared handle must get a new id")
	}
	if err := reg.Start(h, "second", func(h *Handle) error {
		h.Output().WriteString("two")
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Join(0)
	if h.Text() != "two" || h.Err() != nil {
		t.Errorf("second run: text=%q err=%v", h.Text(), h.Err())
	}
}

func TestWaitIdleTimeout(t *testing.T) {
	reg := NewRegistry(nil)
	h := NewHandle(0)
	release := make(chan struct{})
	defer close(release)
	if err := reg.Start(h, "slow", func(*Handle) error { <-release; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := reg.WaitIdle(ctx, time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestOnDoneCallback(t *testing.T) {
	reg := NewRegistry(nil)
	got := make(chan string, 1)
	reg.OnDone(func(h *Handle) { got <- h.Name() })
	h := NewHandle(0)
	if err := reg.Start(h, "cb", func(*Handle) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case name := <-got:
		if name != "cb" {
			t.Errorf("name = %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDone not called")
	}
}
