// Package redisrouter runs script commands on a remote agent through Redis
// Pub/Sub. The Router side implements executor.CommandRunner: it publishes a
// command request to the station's command channel and waits on its own
// response channel for the correlated response. The Agent side subscribes to
// the command channel, runs each request with a local runner and publishes
// the outcome.
package redisrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/JzHartmut/jzcmd/internal/protocol"
	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds the wait for a response when none is configured.
const DefaultTimeout = 5 * time.Minute

// Router sends commands over Redis Pub/Sub and waits for their results.
type Router struct {
	rdb     redis.UniversalClient
	source  protocol.Source
	station string
	env     map[string]string
	timeout time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout bounds how long Run waits for a response. Values <= 0 keep
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithEnv adds variables to the environment of every remote command.
func WithEnv(env map[string]string) Option {
	return func(r *Router) { r.env = env }
}

// New creates a Router.
//   - rdb: connected go-redis client
//   - source: protocol Source for this run
//   - station: agent instance id (used to address the command channel)
func New(rdb redis.UniversalClient, source protocol.Source, station string, opts ...Option) *Router {
	r := &Router{rdb: rdb, source: source, station: station, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements executor.CommandRunner. Transport failures are reported
// like a launch failure: a diagnostic on stderr and exit code -1.
func (r *Router) Run(ctx context.Context, argv []string, dir string, stdout, stderr io.Writer) int {
	payload, err := r.send(ctx, argv, dir)
	if err != nil {
		fmt.Fprintf(stderr, "remote %s: %v", r.station, err)
		return -1
	}
	return deliver(payload, stdout, stderr)
}

func (r *Router) send(ctx context.Context, argv []string, dir string) (*protocol.CommandRunResponsePayload, error) {
	msg, err := protocol.BuildCommandRunRequest(r.source, argv, dir, r.env, int(r.timeout/time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("build command request: %w", err)
	}
	correlationID := msg.Envelope.CorrelationID

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	// Subscribe before publishing so the response cannot be missed.
	responseChannel := protocol.ResponseChannel(r.source.Instance)
	sub := r.rdb.Subscribe(ctx, responseChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("SUBSCRIBE %s: %w", responseChannel, err)
	}
	ch := sub.Channel()

	channelKey := protocol.CommandChannel(r.station)
	n, err := r.rdb.Publish(ctx, channelKey, string(data)).Result()
	if err != nil {
		return nil, fmt.Errorf("PUBLISH %s: %w", channelKey, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no agent listening on %s", channelKey)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case subMsg, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("subscription channel closed")
			}
			payload, match, err := matchResponse([]byte(subMsg.Payload), correlationID)
			if !match {
				continue
			}
			return payload, err

		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for response on %s (correlation_id=%s)", responseChannel, correlationID)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// matchResponse parses data and reports whether it is the response for
// correlationID. Unparseable messages and other correlation ids do not match.
func matchResponse(data []byte, correlationID string) (*protocol.CommandRunResponsePayload, bool, error) {
	msg, err := protocol.Parse(data)
	if err != nil {
		return nil, false, nil
	}
	if msg.Envelope.Type != protocol.TypeCommandRunResponse || msg.Envelope.CorrelationID != correlationID {
		return nil, false, nil
	}
	payload, err := protocol.ParseCommandRunResponse(msg)
	if err != nil {
		return nil, true, fmt.Errorf("parse response payload: %w", err)
	}
	return payload, true, nil
}

// deliver writes the captured streams of a response and returns its exit
// code.
func deliver(p *protocol.CommandRunResponsePayload, stdout, stderr io.Writer) int {
	io.WriteString(stdout, p.Stdout)
	io.WriteString(stderr, p.Stderr)
	if p.ExitCode == -1 && p.Error != nil && p.Stderr == "" {
		io.WriteString(stderr, p.Error.Message)
	}
	return p.ExitCode
}
