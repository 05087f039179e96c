package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/config"
)

const version = "0.1.0"

var (
	cfgFile   string
	storePath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "jzcmd",
	Short: "Script engine for build automation and text generation",
	Long: `jzcmd executes scripts that generate text and drive external tools.

A script combines text output, variables, loops, subroutines, threads and
command invocations. Commands run locally or, with --redis and --station,
on a remote jzcmd agent.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors other than a script exit level are
// printed to stderr.
func Execute() error {
	err := rootCmd.Execute()
	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

// exitError carries a process exit code without a message of its own.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "run history database (overrides store.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	log.SetFlags(log.Ltime)
	log.SetPrefix("[jzcmd] ")
}

// loadConfig reads --config, or returns the defaults when none is given.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	return cfg, nil
}
