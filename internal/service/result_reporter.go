package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/messaging"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// ResponseSink accepts response records without waiting for them to be stored.
type ResponseSink interface {
	Enqueue(ctx context.Context, resp model.ExamResponse) error
}

// DirectResponseSink writes records straight to the store. Used with the
// fixture source, where writes are in memory and never block.
type DirectResponseSink struct {
	store datasource.ExamStore
}

// NewDirectResponseSink creates a DirectResponseSink.
func NewDirectResponseSink(store datasource.ExamStore) *DirectResponseSink {
	return &DirectResponseSink{store: store}
}

func (s *DirectResponseSink) Enqueue(ctx context.Context, resp model.ExamResponse) error {
	return s.store.UpsertResponses(ctx, []model.ExamResponse{resp})
}

// ResultReporter persists sessions for the exam controller.
type ResultReporter struct {
	exams     datasource.ExamStore
	sink      ResponseSink
	publisher messaging.Publisher
	log       zerolog.Logger
}

var _ exam.Reporter = (*ResultReporter)(nil)

// NewResultReporter creates a new ResultReporter.
func NewResultReporter(exams datasource.ExamStore, sink ResponseSink, publisher messaging.Publisher, log zerolog.Logger) *ResultReporter {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &ResultReporter{
		exams:     exams,
		sink:      sink,
		publisher: publisher,
		log:       logger.Component(log, "result_reporter"),
	}
}

// CreateSession inserts the exam row and returns its id.
func (r *ResultReporter) CreateSession(ctx context.Context, userID uuid.UUID, mode model.Mode, total int) (uuid.UUID, error) {
	e := &model.Exam{UserID: userID, Mode: mode, TotalQuestions: total}
	if err := r.exams.CreateExam(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("create exam: %w", err)
	}
	return e.ID, nil
}

// RecordResponse hands the record to the sink.
func (r *ResultReporter) RecordResponse(ctx context.Context, resp model.ExamResponse) error {
	return r.sink.Enqueue(ctx, resp)
}

// FinalizeSession stores the outcome and announces it. Publishing is best effort.
func (r *ResultReporter) FinalizeSession(ctx context.Context, id uuid.UUID, o model.ExamOutcome) error {
	if err := r.exams.FinalizeExam(ctx, id, o); err != nil {
		return fmt.Errorf("finalize exam: %w", err)
	}

	e, err := r.exams.GetExam(ctx, id)
	if err != nil {
		r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Load exam for event failed")
		return nil
	}

	evt := messaging.ExamCompletedEvent{
		ExamID:         id,
		UserID:         e.UserID,
		Mode:           e.Mode,
		TotalQuestions: e.TotalQuestions,
		Score:          o.Score,
		CorrectCount:   o.CorrectCount,
		Passed:         o.Passed,
		EndedAt:        o.EndedAt,
	}
	if err := r.publisher.PublishExamCompleted(ctx, evt); err != nil {
		r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Publish exam completed failed")
	}
	return nil
}
