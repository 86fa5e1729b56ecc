package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"garden-cloud/internal/telemetry/application/events"
	telemetry "garden-cloud/internal/telemetry/domain"
)

const liveEntryTTL = 24 * time.Hour

// LiveCache mirrors the latest reading per serial and type into Redis
// so dashboards can poll without touching Postgres. It is advisory:
// Postgres remains the source of truth and cache failures are logged,
// never surfaced to the ingest path.
type LiveCache struct {
	client *redis.Client
	logger *log.Logger
}

// NewLiveCache connects to the given address and verifies the connection.
func NewLiveCache(ctx context.Context, addr string, logger *log.Logger) (*LiveCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &LiveCache{client: client, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *LiveCache) Close() error {
	return c.client.Close()
}

// OnReadingStored caches the reading under latest:<serial> keyed by
// type and announces it on the readings:<serial> channel.
func (c *LiveCache) OnReadingStored(ctx context.Context, event events.ReadingStored) error {
	payload, err := json.Marshal(event.Reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	key := latestKey(event.SerialMachine)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, event.Type, payload)
	pipe.Expire(ctx, key, liveEntryTTL)
	pipe.Publish(ctx, channelFor(event.SerialMachine), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("live cache update failed for serial %s: %v", event.SerialMachine, err)
	}
	return nil
}

// Latest returns the cached reading per type for a serial. A missing
// key yields an empty map.
func (c *LiveCache) Latest(ctx context.Context, serial string) (map[string]telemetry.Reading, error) {
	raw, err := c.client.HGetAll(ctx, latestKey(serial)).Result()
	if err != nil {
		return nil, fmt.Errorf("read live cache: %w", err)
	}
	latest := make(map[string]telemetry.Reading, len(raw))
	for readingType, value := range raw {
		var snapshot telemetry.Reading
		if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
			c.logger.Printf("live cache entry for serial %s type %s is corrupt: %v", serial, readingType, err)
			continue
		}
		latest[readingType] = snapshot
	}
	return latest, nil
}

func latestKey(serial string) string {
	return "latest:" + serial
}

func channelFor(serial string) string {
	return "readings:" + serial
}
