package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchOpts runFlags

var watchCmd = &cobra.Command{
	Use:   "watch <script>",
	Short: "Run a script and run it again whenever it changes",
	Long: `Runs the script once, then watches the script file and the config file.
Every change triggers a new run after a short quiet period.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addRunFlags(watchCmd, &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

// watchDebounce is the quiet period after the last write before a re-run;
// editors often write a file in several steps.
const watchDebounce = 500 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	script, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	watched := map[string]bool{script: true}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return err
		}
		watched[abs] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	// Directories are watched so that rename-into-place saves are seen.
	dirs := make(map[string]bool)
	for f := range watched {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger := make(chan struct{}, 1)
	runOnce := func() {
		cfg, err := loadConfig()
		if err != nil {
			log.Printf("config: %v", err)
			return
		}
		code, err := execute(ctx, script, cfg, watchOpts, os.Stdout)
		switch {
		case err != nil:
			log.Printf("%v", err)
		case code != 0:
			log.Printf("run finished with exit code %d", code)
		default:
			log.Printf("run finished")
		}
	}

	runOnce()
	log.Printf("watching %s", script)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-trigger:
			runOnce()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			name := filepath.Base(ev.Name)
			debounce = time.AfterFunc(watchDebounce, func() {
				log.Printf("%s changed, running again", name)
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}
