// worker drains the security event topic into Loki so auth activity is
// searchable next to the rest of the platform's logs.
// Requires KAFKA_BROKERS and LOKI_URL; topic and group ID have defaults.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"property-platform/access-core/internal/config"
	"property-platform/access-core/internal/telemetry/loki"
)

const (
	pushTimeout = 10 * time.Second
	readBackoff = time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("worker: LOKI_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.NotifyKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	log.Printf("worker: draining %s (group %s) into %s", cfg.NotifyKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
	drain(ctx, reader, cfg.LokiURL)
	log.Println("worker: stopped")
}

func drain(ctx context.Context, reader *kafka.Reader, lokiURL string) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Printf("worker: kafka read: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := loki.PushEventJSON(pushCtx, lokiURL, msg.Value); err != nil {
			log.Printf("worker: loki push: %v", err)
		}
		cancel()
	}
}
