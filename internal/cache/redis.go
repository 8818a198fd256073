// Package cache publishes settlement records to a Redis queue for the
// historian worker to persist asynchronously.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soragane/tilescore/internal/models"
)

// DefaultQueueName is the Redis list (queue) name for settlement records.
var DefaultQueueName = "tilescore_settlements"

// Publisher pushes settlement records onto the queue. It satisfies the
// session service's Recorder interface.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// Connect initializes a Publisher from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - SETTLEMENT_QUEUE_NAME (optional)
func Connect() (*Publisher, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Publisher{
		rdb:   rdb,
		queue: getEnv("SETTLEMENT_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// RecordSettlement serializes the record to JSON and pushes it to the queue.
// This does not block the settlement path beyond a quick network send.
func (p *Publisher) RecordSettlement(ctx context.Context, rec models.SettlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal SettlementRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", p.queue, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
