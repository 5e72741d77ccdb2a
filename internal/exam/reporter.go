package exam

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// Reporter persists session lifecycle events outside the process.
//
// CreateSession and FinalizeSession are awaited by the controller.
// RecordResponse is fire-and-forget: its error is logged, never retried,
// and runs outside the session lock so it never blocks the session.
type Reporter interface {
	CreateSession(ctx context.Context, userID uuid.UUID, mode model.Mode, totalQuestions int) (uuid.UUID, error)
	RecordResponse(ctx context.Context, resp model.ExamResponse) error
	FinalizeSession(ctx context.Context, sessionID uuid.UUID, outcome model.ExamOutcome) error
}
