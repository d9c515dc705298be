package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/app"
	"github.com/unclebandit/campaignhq-backend/internal/config"
	"github.com/unclebandit/campaignhq-backend/internal/logger"
	"github.com/unclebandit/campaignhq-backend/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Queue.Backend != "amqp" {
		log.Fatalf("worker needs QUEUE_BACKEND=amqp (got %q); the memory queue runs inside the server", cfg.Queue.Backend)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to start worker", zap.Error(err))
	}
	defer a.Close()

	q, err := a.OpenQueue()
	if err != nil {
		zl.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	if err := a.NewWorker().Start(q, cfg.Queue.PublishTopic); err != nil {
		zl.Fatal("failed to register consumer", zap.Error(err))
	}

	var closed <-chan *amqp.Error
	if aq, ok := q.(*queue.AMQPQueue); ok {
		closed = aq.Closed()
	}

	zl.Info("worker running, waiting for messages", zap.String("topic", cfg.Queue.PublishTopic))
	select {
	case <-ctx.Done():
		zl.Info("worker stopping")
	case err := <-closed:
		zl.Error("broker connection closed", zap.Any("reason", err))
		a.Close()
		os.Exit(1)
	}
}
