package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/registry"
)

var (
	stationsRedis  string
	stationsListen time.Duration
	stationsJSON   bool
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List the agents that send heartbeats",
	Long: `Listens on the heartbeat channel for a while and prints every agent
station seen, with its status and command counters.`,
	Args: cobra.NoArgs,
	RunE: runStations,
}

func init() {
	stationsCmd.Flags().StringVar(&stationsRedis, "redis", "", "Redis address (overrides redis.addr, default localhost:6379)")
	stationsCmd.Flags().DurationVar(&stationsListen, "listen", 15*time.Second, "how long to collect heartbeats")
	stationsCmd.Flags().BoolVar(&stationsJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(stationsCmd)
}

func runStations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := firstNonEmpty(stationsRedis, cfg.Redis.Addr, "localhost:6379")
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), stationsListen)
	defer cancel()

	reg := registry.New()
	err = reg.Listen(ctx, rdb, func(err error) {
		if verbose {
			log.Printf("heartbeat: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("redis %s: %w", addr, err)
	}
	reg.RunHealthCheck(time.Now())
	stations := reg.ListStations()

	if stationsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stations)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tSTATUS\tUPTIME\tCOMMANDS\tFAILED\tLAST ERROR")
	for _, s := range stations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.Instance, s.Status, time.Duration(s.UptimeSeconds)*time.Second,
			s.CommandsProcessed, s.CommandsFailed, s.LastError)
	}
	return tw.Flush()
}
