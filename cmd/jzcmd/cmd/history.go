package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/report"
	"github.com/JzHartmut/jzcmd/internal/store"
)

var (
	historyScript string
	historyLimit  int
	exportFormat  string
	exportOutput  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored script runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run as CSV, JSON or PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	historyCmd.Flags().StringVar(&historyScript, "script", "", "only runs of this script path")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs, 0 for all")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv, json or pdf")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(historyCmd, exportCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no run history configured (--store or store.path)")
	}
	return store.New(cfg.Store.Path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.QueryRuns(historyScript, historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tCOMMANDS\tFAILED\tSCRIPT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status,
			r.Summary.Commands, r.Summary.FailedCommands, r.ScriptPath)
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var export func(io.Writer, *store.Store, string) error
	switch exportFormat {
	case "csv":
		export = report.ExportCSV
	case "json":
		export = report.ExportJSON
	case "pdf":
		export = report.ExportPDF
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}

	if exportOutput == "" {
		return export(os.Stdout, st, args[0])
	}
	return writeFile(exportOutput, func(w io.Writer) error { return export(w, st, args[0]) })
}
