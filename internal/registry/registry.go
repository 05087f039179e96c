// Package registry tracks the command agents seen on Redis. Agents publish
// heartbeats on protocol.HeartbeatChannel; the registry keeps the latest one
// per station and derives an online, stale or offline status from its age.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JzHartmut/jzcmd/internal/protocol"
)

// Status constants for stations.
const (
	StatusOnline  = "online"
	StatusStale   = "stale"
	StatusOffline = "offline"
)

// Health check thresholds, sized for the agent's default 10s heartbeat.
const (
	StaleThreshold   = 30 * time.Second
	OfflineThreshold = 60 * time.Second
)

// StationEntry holds a station's most recent heartbeat data.
type StationEntry struct {
	Instance          string    `json:"instance"`
	Service           string    `json:"service"`
	Version           string    `json:"version"`
	LastHeartbeat     time.Time `json:"last_heartbeat"`
	Status            string    `json:"status"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	CommandsProcessed int       `json:"commands_processed"`
	CommandsFailed    int       `json:"commands_failed"`
	LastError         string    `json:"last_error,omitempty"`
}

// Registry holds the in-memory map of stations.
type Registry struct {
	mu       sync.RWMutex
	stations map[string]*StationEntry // instance -> entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{stations: make(map[string]*StationEntry)}
}

// UpdateFromHeartbeat upserts the station that sent payload.
func (r *Registry) UpdateFromHeartbeat(source protocol.Source, payload *protocol.HeartbeatPayload, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance := payload.Station
	if instance == "" {
		instance = source.Instance
	}
	station, exists := r.stations[instance]
	if !exists {
		station = &StationEntry{Instance: instance}
		r.stations[instance] = station
	}
	station.Service = source.Service
	station.Version = source.Version
	station.LastHeartbeat = now
	station.Status = StatusOnline
	station.UptimeSeconds = payload.UptimeSeconds
	station.CommandsProcessed = payload.CommandsProcessed
	station.CommandsFailed = payload.CommandsFailed
	station.LastError = ""
	if payload.LastError != nil {
		station.LastError = *payload.LastError
	}
}

// HandleMessage parses a raw heartbeat message and records it. Messages of
// other types are ignored.
func (r *Registry) HandleMessage(data []byte, now time.Time) error {
	msg, err := protocol.Parse(data)
	if err != nil {
		return err
	}
	if msg.Envelope.Type != protocol.TypeAgentHeartbeat {
		return nil
	}
	hb, err := protocol.ParseHeartbeat(msg)
	if err != nil {
		return err
	}
	r.UpdateFromHeartbeat(msg.Envelope.Source, hb, now)
	return nil
}

// Lookup returns a snapshot of one station, or nil if it never reported.
func (r *Registry) Lookup(instance string) *StationEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.stations[instance]; ok {
		snap := *e
		return &snap
	}
	return nil
}

// ListStations returns snapshots of every station ordered by instance.
func (r *Registry) ListStations() []*StationEntry {
	r.mu.RLock()
	out := make([]*StationEntry, 0, len(r.stations))
	for _, e := range r.stations {
		snap := *e
		out = append(out, &snap)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

// StatusAfter maps the time since a station's last heartbeat to its status.
func StatusAfter(silence time.Duration) string {
	if silence >= OfflineThreshold {
		return StatusOffline
	}
	if silence >= StaleThreshold {
		return StatusStale
	}
	return StatusOnline
}

// RunHealthCheck recomputes every station's status as of now.
func (r *Registry) RunHealthCheck(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.stations {
		e.Status = StatusAfter(now.Sub(e.LastHeartbeat))
	}
}

// Listen subscribes to the heartbeat channel and feeds every heartbeat into
// r until ctx is cancelled. Malformed messages are passed to onError, which
// may be nil.
func (r *Registry) Listen(ctx context.Context, rdb redis.UniversalClient, onError func(error)) error {
	sub := rdb.Subscribe(ctx, protocol.HeartbeatChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("SUBSCRIBE %s: %w", protocol.HeartbeatChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			if err := r.HandleMessage([]byte(m.Payload), time.Now()); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
