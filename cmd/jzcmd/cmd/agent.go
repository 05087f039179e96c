package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/protocol"
	"github.com/JzHartmut/jzcmd/internal/script/cmdexec"
	"github.com/JzHartmut/jzcmd/internal/script/redisrouter"
)

var (
	agentRedis     string
	agentStation   string
	agentHeartbeat time.Duration
	agentTimeout   time.Duration
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run commands sent by remote script runs",
	Long: `Subscribes to the command channel of a station and executes every
command request locally. Scripts started with --station <id> send their
commands here and receive exit code and output in return.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentRedis, "redis", "", "Redis address (overrides redis.addr, default localhost:6379)")
	agentCmd.Flags().StringVar(&agentStation, "station", "", "station id to serve (overrides redis.station)")
	agentCmd.Flags().DurationVar(&agentHeartbeat, "heartbeat", 10*time.Second, "heartbeat interval, 0 disables")
	agentCmd.Flags().DurationVar(&agentTimeout, "timeout", 0, "upper bound for each command, 0 for none")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := firstNonEmpty(agentRedis, cfg.Redis.Addr, "localhost:6379")
	station := firstNonEmpty(agentStation, cfg.Redis.Station)
	if station == "" {
		return fmt.Errorf("agent needs a station id (--station or redis.station)")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", addr, err)
	}

	runner := cmdexec.New(cmdexec.WithEnv(cfg.Env), cmdexec.WithTimeout(agentTimeout))
	source := protocol.Source{Service: "jzcmd-agent", Instance: station, Version: version}
	agent := redisrouter.NewAgent(rdb, source, runner)
	agent.SetHeartbeat(agentHeartbeat)

	log.Printf("agent for station %s connected to %s", station, addr)
	return agent.Serve(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
