package cmdexec

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunExitCodes(t *testing.T) {
	skipWindows(t)
	tests := []struct {
		name string
		argv []string
		want int
	}{
		{"success", []string{"true"}, 0},
		{"failure", []string{"false"}, 1},
		{"explicit code", []string{"sh", "-c", "exit 3"}, 3},
	}
	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if got := r.Run(context.Background(), tt.argv, "", &out, &errOut); got != tt.want {
				t.Errorf("exit code = %d, want %d (stderr %q)", got, tt.want, errOut.String())
			}
		})
	}
}

func TestRunLaunchFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	got := New().Run(context.Background(), []string{"jzcmd-no-such-binary-xyz"}, "", &out, &errOut)
	if got != -1 {
		t.Fatalf("exit code = %d, want -1", got)
	}
	if !strings.Contains(errOut.String(), "jzcmd-no-such-binary-xyz") {
		t.Errorf("diagnostic = %q", errOut.String())
	}
}

func TestRunEmptyArgv(t *testing.T) {
	var out, errOut bytes.Buffer
	if got := New().Run(context.Background(), nil, "", &out, &errOut); got != -1 {
		t.Errorf("exit code = %d, want -1", got)
	}
}

func TestRunCapturesStreamsAndDir(t *testing.T) {
	skipWindows(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("m"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out, errOut bytes.Buffer
	code := New().Run(context.Background(), []string{"sh", "-c", "ls; echo oops >&2"}, dir, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.TrimSpace(out.String()) != "marker.txt" {
		t.Errorf("stdout = %q", out.String())
	}
	if strings.TrimSpace(errOut.String()) != "oops" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunEnv(t *testing.T) {
	skipWindows(t)
	var out, errOut bytes.Buffer
	r := New(WithEnv(map[string]string{"JZCMD_VALUE": "42"}))
	if code := r.Run(context.Background(), []string{"sh", "-c", "echo $JZCMD_VALUE"}, "", &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.TrimSpace(out.String()) != "42" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestRunTimeout(t *testing.T) {
	skipWindows(t)
	var out, errOut bytes.Buffer
	r := New(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	code := r.Run(context.Background(), []string{"sleep", "5"}, "", &out, &errOut)
	if code <= 0 {
		t.Errorf("exit code = %d, want a failure code", code)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not stop the command")
	}
}
