package service

import (
	"context"

	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalQuestions      int                    `json:"total_questions"`
	QuestionsByCategory map[model.Category]int `json:"questions_by_category"`
	Exams               model.ExamStats        `json:"exams"`
	PassRate            float64                `json:"pass_rate"`
	LiveSessions        int                    `json:"live_sessions"`
}

// LiveCounter reports sessions currently held in memory.
type LiveCounter interface {
	LiveCount() int
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	bank  datasource.QuestionBank
	exams datasource.ExamStore
	live  LiveCounter
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(bank datasource.QuestionBank, exams datasource.ExamStore, live LiveCounter) *DashboardService {
	return &DashboardService{bank: bank, exams: exams, live: live}
}

// GetDashboardData gathers question bank and exam metrics.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	counts, err := s.bank.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.exams.ExamStats(ctx)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		QuestionsByCategory: make(map[model.Category]int, len(model.Categories)),
		Exams:               stats,
	}
	for _, c := range model.Categories {
		data.QuestionsByCategory[c] = counts[c]
		data.TotalQuestions += counts[c]
	}
	if stats.CompletedExams > 0 {
		data.PassRate = 100 * float64(stats.PassedExams) / float64(stats.CompletedExams)
	}
	if s.live != nil {
		data.LiveSessions = s.live.LiveCount()
	}
	return data, nil
}
