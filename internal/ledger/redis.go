package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"harvest/scraper/internal/domain"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const readBatch = 1000

// RedisLedger keeps failures in a Redis stream. Stream IDs carry the time each
// failure was recorded.
type RedisLedger struct {
	redisClient *redis.Client
	stream      string
}

func NewRedisLedger(redisClient *redis.Client, keyPrefix, stream string) *RedisLedger {
	return &RedisLedger{
		redisClient: redisClient,
		stream:      keyPrefix + "stream:" + stream,
	}
}

func (l *RedisLedger) Location() string {
	return "redis stream " + l.stream
}

// Record appends one entry with XADD. Redis serializes concurrent writers.
func (l *RedisLedger) Record(ctx context.Context, id, reference string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	messageID, err := l.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		Values: map[string]interface{}{
			"id":     id,
			"target": reference,
			"error":  msg,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add failure to Redis stream %s: %w", l.stream, err)
	}

	log.Debugf("Recorded failure %s in stream %s with message ID: %s", id, l.stream, messageID)
	return nil
}

// ReadAll pages through the whole stream oldest first.
func (l *RedisLedger) ReadAll(ctx context.Context) ([]domain.FailureEntry, error) {
	entries := make([]domain.FailureEntry, 0)
	start := "-"
	skipped := 0

	for {
		messages, err := l.redisClient.XRangeN(ctx, l.stream, start, "+", readBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read Redis stream %s: %w", l.stream, err)
		}

		for _, msg := range messages {
			entry, ok := decodeMessage(msg)
			if !ok {
				skipped++
				continue
			}
			entries = append(entries, entry)
		}

		if len(messages) < readBatch {
			break
		}
		start = "(" + messages[len(messages)-1].ID
	}

	if skipped > 0 {
		log.Warnf("⚠️ Skipped %d malformed messages in %s", skipped, l.stream)
	}

	return entries, nil
}

func decodeMessage(msg redis.XMessage) (domain.FailureEntry, bool) {
	id, _ := msg.Values["id"].(string)
	target, _ := msg.Values["target"].(string)
	errMsg, _ := msg.Values["error"].(string)

	if id == "" || target == "" {
		return domain.FailureEntry{}, false
	}

	return domain.FailureEntry{
		ID:        id,
		Target:    target,
		Error:     errMsg,
		Timestamp: streamTime(msg.ID),
	}, true
}

// streamTime reads the millisecond part of an ID like "1700000000000-0".
func streamTime(messageID string) time.Time {
	ms, _, _ := strings.Cut(messageID, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}
