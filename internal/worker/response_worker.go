package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/model"
)

const (
	ResponseBatchSize    = 50
	ResponseBatchTimeout = 2 * time.Second
	ResponsePollTimeout  = 1 * time.Second
)

// ResponseStore is the persistence side of the worker.
type ResponseStore interface {
	UpsertResponses(ctx context.Context, rs []model.ExamResponse) error
}

// ResponseWorker consumes persist_responses_queue and upserts records in batches.
// Records that cannot be written are logged and dropped; there is no retry.
type ResponseWorker struct {
	store ResponseStore
	rdb   *redis.Client
	key   string
	log   zerolog.Logger
}

// NewResponseWorker creates a new ResponseWorker.
func NewResponseWorker(store ResponseStore, rdb *redis.Client, log zerolog.Logger) *ResponseWorker {
	return &ResponseWorker{
		store: store,
		rdb:   rdb,
		key:   config.WorkerKey.PersistResponsesQueue,
		log:   logger.Component(log, "response_worker"),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes and drains. Call in a goroutine.
func (w *ResponseWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResponseWorker started")

	batch := make([]model.ExamResponse, 0, ResponseBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResponseBatchSize || time.Since(lastFlush) >= ResponseBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("ResponseWorker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResponsePollTimeout, w.key).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			if resp, ok := w.decode(item[1]); ok {
				batch = append(batch, resp)
			}
		}
	}
}

func (w *ResponseWorker) decode(raw string) (model.ExamResponse, bool) {
	var resp model.ExamResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return resp, false
	}
	return resp, true
}

// ----------------------------------------------------------------
// Batch upsert with single-record fallback
// ----------------------------------------------------------------

// flush writes batch in one call, falling back to one call per record so a
// single bad record does not sink the rest.
func (w *ResponseWorker) flush(ctx context.Context, batch []model.ExamResponse) (written int) {
	if len(batch) == 0 {
		return 0
	}

	err := w.store.UpsertResponses(ctx, batch)
	if err == nil {
		return len(batch)
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk response upsert failed, using fallback")

	for _, resp := range batch {
		if err := w.store.UpsertResponses(ctx, []model.ExamResponse{resp}); err != nil {
			w.log.Error().Err(err).
				Str("exam_id", resp.ExamID.String()).
				Str("question_id", resp.QuestionID.String()).
				Msg("Response dropped")
			continue
		}
		written++
	}
	return written
}

// drain persists whatever is still queued before shutdown.
func (w *ResponseWorker) drain(ctx context.Context) {
	drained := 0
	batch := make([]model.ExamResponse, 0, ResponseBatchSize)

	for {
		raw, err := w.rdb.LPop(ctx, w.key).Result()
		if err != nil {
			break
		}
		if resp, ok := w.decode(raw); ok {
			batch = append(batch, resp)
		}
		if len(batch) >= ResponseBatchSize {
			drained += w.flush(ctx, batch)
			batch = batch[:0]
		}
	}
	drained += w.flush(ctx, batch)

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
