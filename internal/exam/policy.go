// Package exam implements the exam session core: building the question set,
// driving a session through its states, and scoring the result.
package exam

import (
	"time"

	"github.com/stemsi/drivetest-backend/internal/model"
)

const (
	// PassThreshold is the minimum score that passes.
	PassThreshold = 70

	// MockTestDuration is the countdown for a mock test.
	MockTestDuration = 1200 * time.Second

	practiceQuestionCount = 10
	mockTestQuestionCount = 20
)

// QuestionCount returns how many questions a session of the given mode draws.
func QuestionCount(mode model.Mode) int {
	if mode == model.ModeMockTest {
		return mockTestQuestionCount
	}
	return practiceQuestionCount
}
