package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/workflow"
)

func main() {
	batchSize := flag.Int("batch-size", 50, "Events claimed per poll")
	pollInterval := flag.Duration("poll-interval", 500*time.Millisecond, "Delay between polls")
	maxAttempts := flag.Int("max-attempts", 20, "Publish attempts before an event goes DEAD")
	once := flag.Bool("once", false, "Dispatch one batch and exit")
	requeueDead := flag.Bool("requeue-dead", false, "Put DEAD events back in the queue before dispatching")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	logger := config.GetLogger()

	client, err := config.GetClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pubsub: %v\n", err)
		os.Exit(1)
	}
	if _, err := config.CreateTopicIfNotExists(ctx, client, config.InventoryTopicName()); err != nil {
		fmt.Fprintf(os.Stderr, "pubsub topic: %v\n", err)
		os.Exit(1)
	}

	if *requeueDead {
		n, err := models.RequeueDeadInventoryEvents(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "requeue dead events: %v\n", err)
			os.Exit(1)
		}
		logger.WithField("requeued", n).Info("dead inventory events requeued")
	}

	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), logger)
	dispatcher.BatchSize = *batchSize
	dispatcher.PollInterval = *pollInterval
	dispatcher.MaxAttempts = *maxAttempts

	if *once {
		sent, err := dispatcher.DispatchOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sent=%d\n", sent)
		return
	}
	logger.WithField("dispatcher_id", dispatcher.DispatcherID).Info("inventory outbox dispatcher started")
	dispatcher.Run(ctx)
}
