package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/config"
	"github.com/JzHartmut/jzcmd/internal/protocol"
	"github.com/JzHartmut/jzcmd/internal/report"
	"github.com/JzHartmut/jzcmd/internal/script/cmdexec"
	"github.com/JzHartmut/jzcmd/internal/script/executor"
	"github.com/JzHartmut/jzcmd/internal/script/loader"
	"github.com/JzHartmut/jzcmd/internal/script/redisrouter"
	"github.com/JzHartmut/jzcmd/internal/script/result"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/store"
)

// runFlags are the flags shared by run and watch.
type runFlags struct {
	redisAddr    string
	station      string
	dir          string
	pdfPath      string
	reportPath   string
	errorsInline bool
	vars         []string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Execute a script",
	Long: `Executes the main statements of a script. Text output goes to stdout,
diagnostics to stderr. The exit level of an uncaught exit statement becomes
the process exit code; any other uncaught error exits with 1.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(c *cobra.Command, f *runFlags) {
	c.Flags().StringVar(&f.redisAddr, "redis", "", "Redis address for remote commands (overrides redis.addr)")
	c.Flags().StringVar(&f.station, "station", "", "agent station id for remote commands (overrides redis.station)")
	c.Flags().StringVar(&f.dir, "dir", "", "initial current directory of the script")
	c.Flags().StringVar(&f.pdfPath, "pdf", "", "write a PDF run report to this file")
	c.Flags().StringVar(&f.reportPath, "report", "", "write the JSON run report to this file (- for stderr)")
	c.Flags().BoolVar(&f.errorsInline, "errors-inline", false, "write an uncaught error into the output")
	c.Flags().StringArrayVar(&f.vars, "set", nil, "pre-define a script variable as name=value")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := execute(ctx, args[0], cfg, runOpts, os.Stdout)
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// execute loads and runs one script and handles the run report. It returns
// the exit code of the script; err is set only when the run could not take
// place.
func execute(ctx context.Context, path string, cfg *config.Config, f runFlags, out io.Writer) (int, error) {
	script, err := loader.Load(path)
	if err != nil {
		var list loader.ErrorList
		if errors.As(err, &list) {
			return 0, fmt.Errorf("loading %s:\n  %s", path, strings.ReplaceAll(list.Error(), "\n", "\n  "))
		}
		return 0, err
	}

	if f.redisAddr != "" {
		cfg.Redis.Addr = f.redisAddr
	}
	if f.station != "" {
		cfg.Redis.Station = f.station
	}
	if f.errorsInline {
		cfg.ErrorsInline = true
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	opts, err := cfg.ExecutorOptions()
	if err != nil {
		return 0, err
	}

	var runner executor.CommandRunner = cmdexec.New(cmdexec.WithEnv(cfg.Env))
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		instance := cfg.Redis.Instance
		if instance == "" {
			instance = "jzcmd-" + uuid.New().String()[:8]
		}
		source := protocol.Source{Service: "jzcmd", Instance: instance, Version: version}
		runner = redisrouter.New(rdb, source, cfg.Redis.Station,
			redisrouter.WithTimeout(cfg.RedisTimeout()),
			redisrouter.WithEnv(cfg.Env),
		)
		if verbose {
			log.Printf("commands go to station %s via %s", cfg.Redis.Station, cfg.Redis.Addr)
		}
	}

	collector := result.NewCollector(path)
	opts = append(opts,
		executor.WithRunner(runner),
		executor.WithCollector(collector),
		executor.WithLogger(os.Stderr),
		executor.WithOutput(out),
		executor.WithErrOutput(os.Stderr),
	)
	if f.dir != "" {
		opts = append(opts, executor.WithDir(f.dir))
	}
	for _, kv := range f.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return 0, fmt.Errorf("--set %q: want name=value", kv)
		}
		opts = append(opts, executor.WithVar(name, value))
	}

	runErr := executor.New(ctx, opts...).Run(script)
	code := exitCodeOf(runErr)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
	}

	rep := collector.Finalize()
	if err := saveReport(rep, cfg, f); err != nil {
		log.Printf("run report: %v", err)
	}
	if verbose {
		log.Printf("run %s: %s, %d commands (%d failed) in %s",
			rep.RunID, rep.Status, rep.Summary.Commands, rep.Summary.FailedCommands, rep.Duration)
	}
	return code, nil
}

// exitCodeOf maps the result of Executor.Run to a process exit code.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var se *scripterr.Error
	if errors.As(err, &se) && se.Kind == scripterr.KindExit {
		return se.Level
	}
	return 1
}

func saveReport(rep *result.RunReport, cfg *config.Config, f runFlags) error {
	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveReport(rep, cfg.Redis.Station); err != nil {
			return err
		}
	}
	if f.pdfPath != "" {
		if err := writeFile(f.pdfPath, func(w io.Writer) error { return report.GeneratePDF(w, rep) }); err != nil {
			return err
		}
	}
	if f.reportPath != "" {
		encode := func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		if f.reportPath == "-" {
			return encode(os.Stderr)
		}
		return writeFile(f.reportPath, encode)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
