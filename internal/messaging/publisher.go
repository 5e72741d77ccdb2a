// Package messaging publishes domain events to a message broker.
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// QueueExamCompleted receives one event per finalized exam session.
const QueueExamCompleted = "exam.completed"

// ExamCompletedEvent is published after a session is finalized.
type ExamCompletedEvent struct {
	ExamID         uuid.UUID  `json:"exam_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Mode           model.Mode `json:"mode"`
	TotalQuestions int        `json:"total_questions"`
	Score          int        `json:"score"`
	CorrectCount   int        `json:"correct_count"`
	Passed         bool       `json:"passed"`
	EndedAt        time.Time  `json:"ended_at"`
}

// Publisher emits exam events.
type Publisher interface {
	PublishExamCompleted(ctx context.Context, evt ExamCompletedEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishExamCompleted(context.Context, ExamCompletedEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
