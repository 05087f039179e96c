// Package result collects what happened during a script run and produces a
// structured report. The executor depends on this package via an interface;
// this package does NOT import the executor.
package result

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Data types
// ---------------------------------------------------------------------------

// CommandResult holds the outcome of one external command.
type CommandResult struct {
	Argv       []string  `json:"argv"`
	Dir        string    `json:"dir"`
	ExitCode   int       `json:"exit_code"`
	Background bool      `json:"background,omitempty"`
	StartTime  time.Time `json:"start_time"`
	DurationMs int64     `json:"duration_ms"`
}

// Success reports whether the command exited with code 0.
func (c CommandResult) Success() bool { return c.ExitCode == 0 }

// RecoveredError is an error caught by an onerror handler.
type RecoveredError struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ThreadResult holds the outcome of a thread block.
type ThreadResult struct {
	Name       string `json:"name"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Summary aggregates counts over a run.
type Summary struct {
	Commands       int `json:"commands"`
	FailedCommands int `json:"failed_commands"`
	Recovered      int `json:"recovered"`
	Threads        int `json:"threads"`
	FailedThreads  int `json:"failed_threads"`
}

// RunReport is the top-level report for a full script execution.
type RunReport struct {
	RunID      string           `json:"run_id"`
	ScriptPath string           `json:"script_path"`
	Status     string           `json:"status"` // "ok" or "failed"
	Commands   []CommandResult  `json:"commands,omitempty"`
	Recovered  []RecoveredError `json:"recovered,omitempty"`
	Threads    []ThreadResult   `json:"threads,omitempty"`
	Errors     []string         `json:"errors,omitempty"` // unrecovered errors
	Summary    Summary          `json:"summary"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	Duration   time.Duration    `json:"duration"`
}

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

// Collector accumulates run events. It is safe for use by several threads.
type Collector struct {
	mu         sync.Mutex
	runID      string
	scriptPath string
	commands   []CommandResult
	recovered  []RecoveredError
	threads    []ThreadResult
	errors     []string
	startTime  time.Time
}

// NewCollector creates a Collector for the given script path, recording the
// start time immediately.
func NewCollector(scriptPath string) *Collector {
	return &Collector{
		runID:      uuid.New().String(),
		scriptPath: scriptPath,
		startTime:  time.Now(),
	}
}

// RunID returns the id assigned to this run.
func (c *Collector) RunID() string { return c.runID }

// RecordCommand appends a finished command.
func (c *Collector) RecordCommand(argv []string, dir string, exitCode int, background bool, start time.Time, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, CommandResult{
		Argv:       append([]string(nil), argv...),
		Dir:        dir,
		ExitCode:   exitCode,
		Background: background,
		StartTime:  start,
		DurationMs: d.Milliseconds(),
	})
}

// RecordRecovered appends an error caught by an onerror handler.
func (c *Collector) RecordRecovered(kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recovered = append(c.recovered, RecoveredError{Kind: kind, Message: message, Time: time.Now()})
}

// RecordThread appends a finished thread.
func (c *Collector) RecordThread(name string, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr := ThreadResult{Name: name, DurationMs: d.Milliseconds()}
	if err != nil {
		tr.Error = err.Error()
	}
	c.threads = append(c.threads, tr)
}

// RecordError records an unrecovered error.
func (c *Collector) RecordError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, message)
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

// Finalize computes the summary and durations. Call after execution completes.
func (c *Collector) Finalize() *RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	report := &RunReport{
		RunID:      c.runID,
		ScriptPath: c.scriptPath,
		Status:     "ok",
		Commands:   c.commands,
		Recovered:  c.recovered,
		Threads:    c.threads,
		Errors:     c.errors,
		StartTime:  c.startTime,
		EndTime:    now,
		Duration:   now.Sub(c.startTime),
	}
	if len(c.errors) > 0 {
		report.Status = "failed"
	}
	report.Summary = summarize(report)
	return report
}

// summarize computes a Summary from the report lists.
func summarize(r *RunReport) Summary {
	s := Summary{
		Commands:  len(r.Commands),
		Recovered: len(r.Recovered),
		Threads:   len(r.Threads),
	}
	for _, c := range r.Commands {
		if !c.Success() {
			s.FailedCommands++
		}
	}
	for _, t := range r.Threads {
		if t.Error != "" {
			s.FailedThreads++
		}
	}
	return s
}
