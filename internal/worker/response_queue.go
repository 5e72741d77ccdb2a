package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// ResponseQueue buffers response records in a Redis list for ResponseWorker.
type ResponseQueue struct {
	rdb *redis.Client
	key string
}

// NewResponseQueue creates a queue on the persist_responses list.
func NewResponseQueue(rdb *redis.Client) *ResponseQueue {
	return &ResponseQueue{rdb: rdb, key: config.WorkerKey.PersistResponsesQueue}
}

// Enqueue appends a record; it only waits for the RPUSH round trip.
func (q *ResponseQueue) Enqueue(ctx context.Context, resp model.ExamResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue response: %w", err)
	}
	return nil
}
