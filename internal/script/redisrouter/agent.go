package redisrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/JzHartmut/jzcmd/internal/protocol"
	"github.com/redis/go-redis/v9"
)

// LocalRunner is the runner an agent executes requests with. It has the
// shape of executor.CommandRunner.
type LocalRunner interface {
	Run(ctx context.Context, argv []string, dir string, stdout, stderr io.Writer) int
}

// Agent serves command requests for one station.
type Agent struct {
	rdb       redis.UniversalClient
	source    protocol.Source
	runner    LocalRunner
	heartbeat time.Duration
	started   time.Time

	mu        sync.Mutex
	processed int
	failed    int
	lastErr   string
}

// NewAgent creates an agent that listens on the command channel of
// source.Instance.
func NewAgent(rdb redis.UniversalClient, source protocol.Source, runner LocalRunner) *Agent {
	return &Agent{rdb: rdb, source: source, runner: runner, heartbeat: 10 * time.Second}
}

// SetHeartbeat sets the heartbeat interval. Zero disables heartbeats.
func (a *Agent) SetHeartbeat(d time.Duration) { a.heartbeat = d }

// Serve subscribes to the command channel and handles requests until ctx is
// cancelled. Each request runs on its own goroutine.
func (a *Agent) Serve(ctx context.Context) error {
	a.started = time.Now()
	channel := protocol.CommandChannel(a.source.Instance)
	sub := a.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("SUBSCRIBE %s: %w", channel, err)
	}
	log.Printf("agent %s listening on %s", a.source.Instance, channel)

	var tick <-chan time.Time
	if a.heartbeat > 0 {
		t := time.NewTicker(a.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			a.publishHeartbeat(ctx)
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			wg.Add(1)
			go func(data string) {
				defer wg.Done()
				a.serveOne(ctx, []byte(data))
			}(m.Payload)
		}
	}
}

func (a *Agent) serveOne(ctx context.Context, data []byte) {
	req, err := protocol.Parse(data)
	if err != nil {
		log.Printf("agent: %v", err)
		return
	}
	resp, err := a.Handle(ctx, req)
	if err != nil {
		log.Printf("agent: %v", err)
		return
	}
	out, err := json.Marshal(resp)
	if err != nil {
		log.Printf("agent: marshal response: %v", err)
		return
	}
	if err := a.rdb.Publish(ctx, req.Envelope.ReplyTo, string(out)).Err(); err != nil {
		log.Printf("agent: PUBLISH %s: %v", req.Envelope.ReplyTo, err)
	}
}

// Handle runs the command of req and builds the response message. Requests
// that fail validation get a BAD_REQUEST response when they can be answered
// at all.
func (a *Agent) Handle(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	p, err := protocol.ValidateCommandRunRequest(req)
	if err != nil {
		if req.Envelope.ReplyTo == "" || req.Envelope.CorrelationID == "" {
			return nil, fmt.Errorf("drop request %s: %w", req.Envelope.ID, err)
		}
		a.count(-1, err.Error())
		return protocol.BuildCommandRunResponse(a.source, req, protocol.CommandRunResponsePayload{
			ExitCode: -1,
			Error:    &protocol.Error{Code: protocol.ErrCodeBadRequest, Message: err.Error()},
		})
	}

	if p.TimeoutMs != nil && *p.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*p.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	start := time.Now()
	code := a.runner.Run(ctx, p.Argv, p.Dir, &stdout, &stderr)
	dur := int(time.Since(start).Milliseconds())

	payload := protocol.CommandRunResponsePayload{
		ExitCode:   code,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: &dur,
	}
	switch {
	case code == -1:
		payload.Error = &protocol.Error{Code: protocol.ErrCodeLaunchFailed, Message: stderr.String()}
	case ctx.Err() == context.DeadlineExceeded:
		payload.Error = &protocol.Error{Code: protocol.ErrCodeTimeout, Message: "command timed out"}
	}
	a.count(code, stderr.String())
	return protocol.BuildCommandRunResponse(a.source, req, payload)
}

func (a *Agent) count(code int, diag string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed++
	if code != 0 {
		a.failed++
		a.lastErr = diag
	}
}

// Heartbeat returns the current heartbeat payload.
func (a *Agent) Heartbeat() protocol.HeartbeatPayload {
	a.mu.Lock()
	defer a.mu.Unlock()
	hb := protocol.HeartbeatPayload{
		Status:            "running",
		Station:           a.source.Instance,
		UptimeSeconds:     int64(time.Since(a.started).Seconds()),
		CommandsProcessed: a.processed,
		CommandsFailed:    a.failed,
	}
	if a.lastErr != "" {
		last := a.lastErr
		hb.LastError = &last
	}
	return hb
}

func (a *Agent) publishHeartbeat(ctx context.Context) {
	msg, err := protocol.NewMessage(a.source, protocol.TypeAgentHeartbeat, a.Heartbeat())
	if err != nil {
		log.Printf("agent: heartbeat: %v", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("agent: heartbeat: %v", err)
		return
	}
	if err := a.rdb.Publish(ctx, protocol.HeartbeatChannel, string(data)).Err(); err != nil {
		log.Printf("agent: PUBLISH %s: %v", protocol.HeartbeatChannel, err)
	}
}
