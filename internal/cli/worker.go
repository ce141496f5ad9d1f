package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/worker"
)

// NewWorkerCmd runs the asynq worker that delivers queued notifications.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis addr not configured; the worker reads the asynq queue from redis")
			}

			srv := worker.NewServer(asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, cfg.Notifications.QueueName, cfg.Notifications.Concurrency, worker.NewLogDelivery())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := srv.Start(); err != nil {
				return err
			}
			<-ctx.Done()
			srv.Shutdown()
			return nil
		},
	}
}

