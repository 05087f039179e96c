// Package report exports stored script runs: the command list as CSV or
// JSON and the whole run as a PDF document.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JzHartmut/jzcmd/internal/store"
)

// CommandJSON is the JSON representation of a command for export.
type CommandJSON struct {
	Argv       []string `json:"argv"`
	Dir        string   `json:"dir"`
	ExitCode   int      `json:"exit_code"`
	Background bool     `json:"background"`
	DurationMs int64    `json:"duration_ms"`
	StartedAt  string   `json:"started_at"`
}

// ExportCSV writes the commands of a run as CSV to w.
// Headers: command,dir,exit_code,background,duration_ms,started_at
func ExportCSV(w io.Writer, s *store.Store, runID string) error {
	commands, err := s.QueryCommands(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"command", "dir", "exit_code", "background", "duration_ms", "started_at"}); err != nil {
		return err
	}

	for _, c := range commands {
		record := []string{
			strings.Join(c.Argv, " "),
			c.Dir,
			strconv.Itoa(c.ExitCode),
			strconv.FormatBool(c.Background),
			strconv.FormatInt(c.DurationMs, 10),
			c.StartTime.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the commands of a run as a JSON array to w.
func ExportJSON(w io.Writer, s *store.Store, runID string) error {
	commands, err := s.QueryCommands(runID)
	if err != nil {
		return err
	}

	records := make([]CommandJSON, len(commands))
	for i, c := range commands {
		records[i] = CommandJSON{
			Argv:       c.Argv,
			Dir:        c.Dir,
			ExitCode:   c.ExitCode,
			Background: c.Background,
			DurationMs: c.DurationMs,
			StartedAt:  c.StartTime.Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// ExportPDF loads a stored run and renders it with GeneratePDF.
func ExportPDF(w io.Writer, s *store.Store, runID string) error {
	r, err := s.LoadReport(runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	return GeneratePDF(w, r)
}
