package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/infra/queue"
)

// Server wraps the asynq server that drains the notification queue.
type Server struct {
	server   *asynq.Server
	delivery Delivery
	log      *logrus.Entry
}

func NewServer(redisOpt asynq.RedisClientOpt, queueName string, concurrency int, delivery Delivery) *Server {
	logEntry := logrus.WithField("component", "worker_server")
	if queueName == "" {
		queueName = "default"
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retry, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logEntry.WithFields(logrus.Fields{
				"task_type": task.Type(),
				"retries":   retry,
				"max_retry": maxRetry,
			}).Errorf("Task failed: %v", err)
		}),
	})

	return &Server{server: server, delivery: delivery, log: logEntry}
}

// Mux routes task types to their handlers.
func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeNotificationDeliver, NewNotificationHandler(s.delivery))
	return mux
}

// Run blocks until the server stops.
func (s *Server) Run() error {
	s.log.Info("Worker server starting...")
	if err := s.server.Run(s.Mux()); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return err
	}
	s.log.Info("Worker server stopped")
	return nil
}

// Start runs the server in the background; pair it with Shutdown.
func (s *Server) Start() error {
	s.log.Info("Worker server starting...")
	return s.server.Start(s.Mux())
}

func (s *Server) Shutdown() {
	s.log.Info("Shutting down worker server...")
	s.server.Shutdown()
}
