package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/JzHartmut/jzcmd/internal/protocol"
)

var agentSource = protocol.Source{Service: "jzcmd-agent", Instance: "bench-1", Version: "0.1.0"}

func makePayload(processed, failed int) *protocol.HeartbeatPayload {
	return &protocol.HeartbeatPayload{
		Status:            "running",
		Station:           "bench-1",
		UptimeSeconds:     3600,
		CommandsProcessed: processed,
		CommandsFailed:    failed,
	}
}

func TestNewRegistryIsEmpty(t *testing.T) {
	r := New()
	if got := r.ListStations(); len(got) != 0 {
		t.Fatalf("expected 0 stations, got %d", len(got))
	}
	if r.Lookup("bench-1") != nil {
		t.Fatal("expected nil for an unknown station")
	}
}

func TestUpdateFromHeartbeat(t *testing.T) {
	r := New()
	now := time.Now()
	r.UpdateFromHeartbeat(agentSource, makePayload(5, 1), now)

	s := r.Lookup("bench-1")
	if s == nil {
		t.Fatal("station not registered")
	}
	if s.Status != StatusOnline || s.Service != "jzcmd-agent" || s.Version != "0.1.0" {
		t.Errorf("station = %+v", s)
	}
	if s.CommandsProcessed != 5 || s.CommandsFailed != 1 || s.UptimeSeconds != 3600 {
		t.Errorf("counters = %+v", s)
	}

	msg := "exit 2"
	p := makePayload(6, 2)
	p.LastError = &msg
	r.UpdateFromHeartbeat(agentSource, p, now.Add(time.Second))
	s = r.Lookup("bench-1")
	if s.CommandsProcessed != 6 || s.LastError != "exit 2" {
		t.Errorf("updated station = %+v", s)
	}
	if len(r.ListStations()) != 1 {
		t.Errorf("an update must not add a second station")
	}
}

func TestStationFallsBackToSourceInstance(t *testing.T) {
	r := New()
	p := makePayload(0, 0)
	p.Station = ""
	r.UpdateFromHeartbeat(protocol.Source{Instance: "lab-2"}, p, time.Now())
	if r.Lookup("lab-2") == nil {
		t.Fatal("expected station keyed by the source instance")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r := New()
	r.UpdateFromHeartbeat(agentSource, makePayload(1, 0), time.Now())
	s := r.Lookup("bench-1")
	s.Status = StatusOffline
	if r.Lookup("bench-1").Status != StatusOnline {
		t.Error("modifying a returned entry must not change the registry")
	}
}

func TestListStationsSorted(t *testing.T) {
	r := New()
	for _, name := range []string{"c", "a", "b"} {
		p := makePayload(0, 0)
		p.Station = name
		r.UpdateFromHeartbeat(agentSource, p, time.Now())
	}
	got := r.ListStations()
	if len(got) != 3 || got[0].Instance != "a" || got[2].Instance != "c" {
		t.Errorf("stations not sorted: %v, %v, %v", got[0].Instance, got[1].Instance, got[2].Instance)
	}
}

func TestRunHealthCheck(t *testing.T) {
	base := time.Now()
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{5 * time.Second, StatusOnline},
		{StaleThreshold, StatusStale},
		{StaleThreshold + 10*time.Second, StatusStale},
		{OfflineThreshold, StatusOffline},
		{5 * time.Minute, StatusOffline},
	}
	for _, tt := range tests {
		r := New()
		r.UpdateFromHeartbeat(agentSource, makePayload(0, 0), base)
		r.RunHealthCheck(base.Add(tt.elapsed))
		if got := r.Lookup("bench-1").Status; got != tt.want {
			t.Errorf("after %v status = %s, want %s", tt.elapsed, got, tt.want)
		}
	}
}

func TestHandleMessage(t *testing.T) {
	r := New()
	msg, err := protocol.NewMessage(agentSource, protocol.TypeAgentHeartbeat, makePayload(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(msg)
	if err := r.HandleMessage(data, time.Now()); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if s := r.Lookup("bench-1"); s == nil || s.CommandsProcessed != 3 {
		t.Fatalf("station = %+v", s)
	}

	other, _ := protocol.NewMessage(agentSource, protocol.TypeCommandRunResponse, map[string]int{"exit_code": 0})
	data, _ = json.Marshal(other)
	if err := r.HandleMessage(data, time.Now()); err != nil {
		t.Errorf("other message types must be ignored, got %v", err)
	}
	if err := r.HandleMessage([]byte("not json"), time.Now()); err == nil {
		t.Error("expected a parse error")
	}
}
