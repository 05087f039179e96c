package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Newline != "\n" || c.MissingArgument != "error" || c.ThreadQueueSize != 16 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.ThreadPoll.Std() != 100*time.Millisecond {
		t.Errorf("thread_poll = %v", c.ThreadPoll.Std())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
	opts, err := c.ExecutorOptions()
	if err != nil || len(opts) != 7 {
		t.Errorf("options = %d, err = %v", len(opts), err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "jzcmd.yaml", `
newline: "\r\n"
errors_inline: true
missing_argument: warn
thread_poll: 20ms
thread_wait: 2000
env:
  CC: gcc
redis:
  addr: localhost:6379
  station: build-01
  timeout_ms: 1500
store:
  path: runs.db
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Newline != "\r\n" || !c.ErrorsInline || c.MissingArgument != "warn" {
		t.Errorf("config = %+v", c)
	}
	if c.ThreadPoll.Std() != 20*time.Millisecond || c.ThreadWait.Std() != 2*time.Second {
		t.Errorf("durations poll=%v wait=%v", c.ThreadPoll.Std(), c.ThreadWait.Std())
	}
	if c.ThreadQueueSize != 16 {
		t.Errorf("unset fields keep defaults, queue size = %d", c.ThreadQueueSize)
	}
	if c.Env["CC"] != "gcc" || !c.Redis.Enabled() || c.RedisTimeout() != 1500*time.Millisecond {
		t.Errorf("env=%v redis=%+v", c.Env, c.Redis)
	}
	if c.Store.Path != "runs.db" {
		t.Errorf("store = %+v", c.Store)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "jzcmd.toml", `
ignore_exit_codes = true
thread_queue_size = 4
thread_wait = "1m"

[env]
MODE = "release"

[redis]
addr = "redis:6379"
station = "bench"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IgnoreExitCodes || c.ThreadQueueSize != 4 || c.ThreadWait.Std() != time.Minute {
		t.Errorf("config = %+v", c)
	}
	if c.Env["MODE"] != "release" || c.Redis.Station != "bench" {
		t.Errorf("env=%v redis=%+v", c.Env, c.Redis)
	}
	if c.Newline != "\n" {
		t.Errorf("newline default lost: %q", c.Newline)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, file, content, want string
	}{
		{"unknown format", "c.json", "{}", "unsupported format"},
		{"bad policy", "c.yaml", "missing_argument: maybe", "missing argument policy"},
		{"bad duration", "c.yaml", "thread_poll: soon", "invalid duration"},
		{"redis half set", "c.yaml", "redis: {addr: x}", "must be set together"},
		{"negative queue", "c.toml", "thread_queue_size = -1", "must not be negative"},
		{"yaml syntax", "c.yaml", "newline: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
