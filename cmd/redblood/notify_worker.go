package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"redblood/internal/db"
	"redblood/internal/notify"
	"redblood/internal/store"

	"github.com/urfave/cli/v2"
)

var notifyWorkerCommand = &cli.Command{
	Name:   "notify-worker",
	Usage:  "Consume domain events and deliver donor notifications",
	Action: runNotifyWorker,
}

func runNotifyWorker(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	if err := requireDatabase(config); err != nil {
		return err
	}
	if len(config.KafkaBrokers) == 0 {
		return fmt.Errorf("set KAFKA_BROKERS")
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	consumer, err := notify.NewConsumer(config.KafkaBrokers, config.KafkaEventsTopic, config.KafkaGroupID, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	worker := notify.NewWorker(store.NewPostgres(pool), notify.NewLogSender(logger), logger, config.DefaultSearchRadiusKm)

	logger.WithField("topic", config.KafkaEventsTopic).Info("notification worker started")
	return consumer.Run(ctx, worker.Handle)
}
