// Package thread runs script thread bodies on goroutines. A Handle carries two
// bounded queues, one for commands sent into the thread and one for messages
// sent out of it, plus completion state that can be joined with a timeout.
// A Registry tracks the threads of one script run so the driver can wait for
// all of them before it finishes.
package thread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// DefaultQueueSize is the capacity of each handle queue unless configured.
const DefaultQueueSize = 16

// ErrRunning is returned when a handle that is still running is started or
// cleared.
var ErrRunning = errors.New("thread is still running")

// ErrQueueFull is returned by a send on a full queue.
var ErrQueueFull = errors.New("queue full")

// Handle is the script-visible result object of a thread.
type Handle struct {
	mu       sync.Mutex
	id       string
	name     string
	size     int
	commands chan interface{}
	messages chan interface{}
	done     chan struct{}
	running  bool
	err      error
	started  time.Time
	finished time.Time
	out      *variable.Buffer
}

// NewHandle creates an idle handle whose queues hold size entries each.
func NewHandle(size int) *Handle {
	if size <= 0 {
		size = DefaultQueueSize
	}
	h := &Handle{size: size}
	h.reset()
	return h
}

func (h *Handle) reset() {
	h.id = uuid.New().String()
	h.commands = make(chan interface{}, h.size)
	h.messages = make(chan interface{}, h.size)
	h.done = make(chan struct{})
	h.err = nil
	h.started = time.Time{}
	h.finished = time.Time{}
	h.out = variable.NewBuffer("")
}

// ID returns the unique id of the current run of the handle.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Name returns the name the thread was started with.
func (h *Handle) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name
}

// Clear resets a finished handle for reuse. Queued entries and the previous
// output are dropped.
func (h *Handle) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrRunning
	}
	h.reset()
	return nil
}

// Output returns the buffer the thread body writes its text into.
func (h *Handle) Output() *variable.Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out
}

// Text returns the text the thread has produced so far.
func (h *Handle) Text() string { return h.Output().String() }

// Done reports whether the thread has finished.
func (h *Handle) Done() bool {
	select {
	case <-h.doneChan():
		return true
	default:
		return false
	}
}

// Running reports whether the thread has been started and not finished yet.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Err returns the failure of a finished thread, or nil.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Duration returns how long the last run took, or zero while running.
func (h *Handle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished.IsZero() {
		return 0
	}
	return h.finished.Sub(h.started)
}

// Join waits until the thread has finished. A timeout of zero or less waits
// forever. It reports whether the thread finished in time.
func (h *Handle) Join(timeoutMillis int64) bool {
	done := h.doneChan()
	if timeoutMillis <= 0 {
		<-done
		return true
	}
	t := time.NewTimer(time.Duration(timeoutMillis) * time.Millisecond)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// SendCommand queues v for the thread. It fails when the queue is full.
func (h *Handle) SendCommand(v interface{}) error {
	return send(h.queues(true), v)
}

// AwaitCommand receives the next command. A timeout of zero or less waits
// forever; on timeout nil is returned.
func (h *Handle) AwaitCommand(timeoutMillis int64) interface{} {
	return await(h.queues(true), timeoutMillis)
}

// SendMessage queues v for the spawner. It fails when the queue is full.
func (h *Handle) SendMessage(v interface{}) error {
	return send(h.queues(false), v)
}

// AwaitMessage receives the next message. A timeout of zero or less waits
// forever; on timeout nil is returned.
func (h *Handle) AwaitMessage(timeoutMillis int64) interface{} {
	return await(h.queues(false), timeoutMillis)
}

func (h *Handle) queues(commands bool) chan interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if commands {
		return h.commands
	}
	return h.messages
}

func (h *Handle) doneChan() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

func (h *Handle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	state := "idle"
	switch {
	case h.running:
		state = "running"
	case h.err != nil:
		state = "failed"
	case !h.finished.IsZero():
		state = "done"
	}
	return fmt.Sprintf("thread %s (%s)", h.name, state)
}

func send(q chan interface{}, v interface{}) error {
	select {
	case q <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

func await(q chan interface{}, timeoutMillis int64) interface{} {
	if timeoutMillis <= 0 {
		return <-q
	}
	t := time.NewTimer(time.Duration(timeoutMillis) * time.Millisecond)
	defer t.Stop()
	select {
	case v := <-q:
		return v
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Body is the work a thread performs.
type Body func(h *Handle) error

// Registry is the set of active threads of one script run.
type Registry struct {
	mu     sync.Mutex
	active map[*Handle]struct{}
	logger io.Writer
	onDone func(h *Handle)
}

// NewRegistry creates an empty registry. Thread failures are logged to
// logger, which may be nil.
func NewRegistry(logger io.Writer) *Registry {
	if logger == nil {
		logger = io.Discard
	}
	return &Registry{active: make(map[*Handle]struct{}), logger: logger}
}

// OnDone sets a function called after each thread has finished.
func (r *Registry) OnDone(fn func(h *Handle)) {
	r.mu.Lock()
	r.onDone = fn
	r.mu.Unlock()
}

// Start runs body on a new goroutine using h. The thread is registered
// before Start returns. A panic in body is recovered and recorded as the
// thread's error.
func (r *Registry) Start(h *Handle, name string, body Body) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrRunning
	}
	if !h.finished.IsZero() {
		h.reset()
	}
	h.running = true
	h.name = name
	h.started = time.Now()
	done := h.done
	h.mu.Unlock()

	r.mu.Lock()
	r.active[h] = struct{}{}
	r.mu.Unlock()

	go func() {
		var err error
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
			}
			if err != nil {
				fmt.Fprintf(r.logger, "[ERROR] thread %s: %v\n", name, err)
			}
			h.mu.Lock()
			h.err = err
			h.running = false
			h.finished = time.Now()
			h.mu.Unlock()
			close(done)

			r.mu.Lock()
			onDone := r.onDone
			r.mu.Unlock()
			if onDone != nil {
				onDone(h)
			}
			r.mu.Lock()
			delete(r.active, h)
			r.mu.Unlock()
		}()
		err = body(h)
	}()
	return nil
}

// Active returns the number of running threads.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// WaitIdle polls every poll interval until no thread is active or ctx ends.
func (r *Registry) WaitIdle(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for r.Active() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d threads still active: %w", r.Active(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
