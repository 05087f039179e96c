package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JzHartmut/jzcmd/internal/script/result"
	"github.com/JzHartmut/jzcmd/internal/store"
)

func seededStore(t *testing.T) (*store.Store, *result.RunReport) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := result.NewCollector("build.jzy")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.RecordCommand([]string{"make", "all"}, "/work", 0, false, start, 1500*time.Millisecond)
	c.RecordCommand([]string{"make", "test"}, "/work", 2, false, start.Add(2*time.Second), 300*time.Millisecond)
	c.RecordRecovered("cmd", "make test failed with exit code 2")
	c.RecordThread("lint", 40*time.Millisecond, errors.New("lint failed"))
	c.RecordError("exit 1")
	r := c.Finalize()
	if err := s.SaveReport(r, ""); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	return s, r
}

func TestExportCSV(t *testing.T) {
	s, r := seededStore(t)
	var buf bytes.Buffer
	if err := ExportCSV(&buf, s, r.RunID); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header plus 2", len(records))
	}
	if records[0][0] != "command" || records[2][0] != "make test" || records[2][2] != "2" {
		t.Errorf("records = %v", records)
	}
	if records[1][5] != "2026-03-01T10:00:00Z" {
		t.Errorf("started_at = %q", records[1][5])
	}
}

func TestExportJSON(t *testing.T) {
	s, r := seededStore(t)
	var buf bytes.Buffer
	if err := ExportJSON(&buf, s, r.RunID); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var got []CommandJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[0].DurationMs != 1500 || got[1].Argv[1] != "test" {
		t.Errorf("commands = %+v", got)
	}
}

func TestExportJSONUnknownRun(t *testing.T) {
	s, _ := seededStore(t)
	var buf bytes.Buffer
	if err := ExportJSON(&buf, s, "missing"); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPDF(t *testing.T) {
	s, r := seededStore(t)
	var buf bytes.Buffer
	if err := ExportPDF(&buf, s, r.RunID); err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header")
	}
	if err := ExportPDF(&buf, s, "missing"); err == nil {
		t.Error("expected error for an unknown run")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncateLeft("/a/long/path/dir", 9); got != "...th/dir" {
		t.Errorf("truncateLeft = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
