package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	"github.com/salesarmbiz-Dev/aimacademy/internal/queue"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/local"
	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

// cmdWatch prints a player's events as the daemon forwards them to RabbitMQ
func cmdWatch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy watch <player>")
	}

	conn, err := dialQueue()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	consumer := queue.NewEventConsumer(conn)
	consumer.Subscribe(args[0], func(msg *queue.EventMessage) {
		fmt.Printf("%s  %-22s %s\n", msg.OccurredAt.Format("15:04:05"), msg.Type, msg.Data)
	})
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	<-ctx.Done()
	return nil
}

// cmdArchive drains the transcript queue into ~/.aimacademy/transcripts
func cmdArchive() error {
	homeDir, err := config.EnsureHomeDir()
	if err != nil {
		return err
	}

	store, err := local.NewStore(filepath.Join(homeDir, "transcripts"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	conn, err := dialQueue()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	consumer := queue.NewConsumer(conn, queue.SinkHandler(transcript.NewLocalSink(store)), queue.DefaultConsumerConfig())
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	fmt.Println("Archiving transcripts (Ctrl+C to stop)")
	<-ctx.Done()
	return nil
}

func dialQueue() (*queue.Connection, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := queue.NewConnection(cfg.Queue.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to queue: %w", err)
	}
	return conn, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
