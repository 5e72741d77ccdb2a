package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

func TestDedupeResponses_KeepsLastPerQuestion(t *testing.T) {
	exam := uuid.New()
	q1, q2 := uuid.New(), uuid.New()
	a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()

	in := []model.ExamResponse{
		{ExamID: exam, QuestionID: q1, AnswerID: &a1},
		{ExamID: exam, QuestionID: q2, AnswerID: &a2},
		{ExamID: exam, QuestionID: q1, AnswerID: &a3},
	}

	out := dedupeResponses(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].QuestionID != q2 || *out[1].AnswerID != a3 {
		t.Fatalf("expected the later record for q1 to win, got %+v", out)
	}
}

func TestDedupeResponses_NoDuplicates(t *testing.T) {
	in := []model.ExamResponse{
		{ExamID: uuid.New(), QuestionID: uuid.New()},
		{ExamID: uuid.New(), QuestionID: uuid.New()},
	}
	if out := dedupeResponses(in); len(out) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out))
	}
}

func TestNullUUID(t *testing.T) {
	if nullUUID(uuid.Nil) != nil {
		t.Fatal("expected nil for uuid.Nil")
	}
	id := uuid.New()
	if got := nullUUID(id); got == nil || *got != id {
		t.Fatalf("expected %s, got %v", id, got)
	}
}
