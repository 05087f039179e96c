package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/JzHartmut/jzcmd/internal/script/result"
)

// GeneratePDF renders a run report: header, summary, commands, recovered
// errors and threads.
func GeneratePDF(w io.Writer, r *result.RunReport) error {
	if r == nil {
		return fmt.Errorf("run not found")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "Script Run Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	info := []struct{ label, value string }{
		{"Run", r.RunID},
		{"Script", r.ScriptPath},
		{"Status", r.Status},
		{"Started", r.StartTime.Format(time.RFC3339)},
		{"Finished", r.EndTime.Format(time.RFC3339)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
		{"Commands", fmt.Sprintf("%d (%d failed)", r.Summary.Commands, r.Summary.FailedCommands)},
		{"Recovered errors", fmt.Sprintf("%d", r.Summary.Recovered)},
		{"Threads", fmt.Sprintf("%d (%d failed)", r.Summary.Threads, r.Summary.FailedThreads)},
	}
	for _, item := range info {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, item.value, "", 1, "L", false, 0, "")
	}

	if len(r.Errors) > 0 {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 7, "Unrecovered errors:", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, strings.Join(r.Errors, "\n"), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Commands", "", 1, "L", false, 0, "")
	if len(r.Commands) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 7, "No commands executed.", "", 1, "L", false, 0, "")
	} else {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(80, 6, "Command", "1", 0, "L", true, 0, "")
		pdf.CellFormat(45, 6, "Directory", "1", 0, "L", true, 0, "")
		pdf.CellFormat(15, 6, "Exit", "1", 0, "C", true, 0, "")
		pdf.CellFormat(20, 6, "Duration", "1", 0, "R", true, 0, "")
		pdf.CellFormat(0, 6, "Time", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 8)
		for _, c := range r.Commands {
			exit := fmt.Sprintf("%d", c.ExitCode)
			if c.Background {
				exit += " bg"
			}
			pdf.CellFormat(80, 6, truncate(strings.Join(c.Argv, " "), 50), "1", 0, "L", false, 0, "")
			pdf.CellFormat(45, 6, truncateLeft(c.Dir, 28), "1", 0, "L", false, 0, "")
			pdf.CellFormat(15, 6, exit, "1", 0, "C", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%dms", c.DurationMs), "1", 0, "R", false, 0, "")
			pdf.CellFormat(0, 6, c.StartTime.Format("15:04:05"), "1", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	if len(r.Recovered) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, "Recovered errors", "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(20, 6, "Kind", "1", 0, "L", true, 0, "")
		pdf.CellFormat(140, 6, "Message", "1", 0, "L", true, 0, "")
		pdf.CellFormat(0, 6, "Time", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 8)
		for _, e := range r.Recovered {
			pdf.CellFormat(20, 6, e.Kind, "1", 0, "L", false, 0, "")
			pdf.CellFormat(140, 6, truncate(e.Message, 90), "1", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, e.Time.Format("15:04:05"), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if len(r.Threads) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, "Threads", "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(40, 6, "Name", "1", 0, "L", true, 0, "")
		pdf.CellFormat(25, 6, "Duration", "1", 0, "R", true, 0, "")
		pdf.CellFormat(0, 6, "Error", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 8)
		for _, t := range r.Threads {
			pdf.CellFormat(40, 6, truncate(t.Name, 25), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%dms", t.DurationMs), "1", 0, "R", false, 0, "")
			pdf.CellFormat(0, 6, truncate(t.Error, 70), "1", 1, "L", false, 0, "")
		}
	}

	return pdf.Output(w)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// truncateLeft keeps the end of s, which is the informative part of a path.
func truncateLeft(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
