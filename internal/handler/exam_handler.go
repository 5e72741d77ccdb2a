package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/middleware"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/response"
	"github.com/stemsi/drivetest-backend/internal/service"
	"github.com/stemsi/drivetest-backend/internal/validator"
)

// ExamHandler handles the student exam session endpoints.
type ExamHandler struct {
	sessionService *service.ExamSessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.ExamSessionService) *ExamHandler {
	return &ExamHandler{sessionService: sessionService}
}

// sessionView adds the persistence status of a finished session to its snapshot.
type sessionView struct {
	exam.Snapshot
	ReportError string `json:"report_error,omitempty"`
}

func newSessionView(snap exam.Snapshot) sessionView {
	v := sessionView{Snapshot: snap}
	if snap.Result != nil && snap.Result.ReportErr != nil {
		v.ReportError = "result could not be saved"
	}
	return v
}

// StartExam godoc
// POST /api/v1/student/exams
// Loads a shuffled question set for the mode and starts a session.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessionService.Start(c.Request.Context(), claims.UserID, req.Mode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newSessionView(snap))
}

// GetExam godoc
// GET /api/v1/student/exams/:id
// Returns the current view of a session.
func (h *ExamHandler) GetExam(c *gin.Context) {
	h.withSession(c, func(claims *service.Claims, id uuid.UUID) (exam.Snapshot, error) {
		return h.sessionService.Snapshot(c.Request.Context(), claims.UserID, id)
	})
}

// SelectAnswer godoc
// POST /api/v1/student/exams/:id/answer
// Chooses an answer on the current question. A later choice replaces an earlier one.
func (h *ExamHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.withSession(c, func(claims *service.Claims, id uuid.UUID) (exam.Snapshot, error) {
		return h.sessionService.SelectAnswer(c.Request.Context(), claims.UserID, id, req.AnswerID)
	})
}

// Advance godoc
// POST /api/v1/student/exams/:id/advance
// Moves to the next question; on the last question the session is submitted.
func (h *ExamHandler) Advance(c *gin.Context) {
	h.withSession(c, func(claims *service.Claims, id uuid.UUID) (exam.Snapshot, error) {
		return h.sessionService.Advance(c.Request.Context(), claims.UserID, id)
	})
}

// Retreat godoc
// POST /api/v1/student/exams/:id/retreat
func (h *ExamHandler) Retreat(c *gin.Context) {
	h.withSession(c, func(claims *service.Claims, id uuid.UUID) (exam.Snapshot, error) {
		return h.sessionService.Retreat(c.Request.Context(), claims.UserID, id)
	})
}

// Submit godoc
// POST /api/v1/student/exams/:id/submit
// Scores and finalizes the session. Repeated calls return the same result.
func (h *ExamHandler) Submit(c *gin.Context) {
	h.withSession(c, func(claims *service.Claims, id uuid.UUID) (exam.Snapshot, error) {
		return h.sessionService.Submit(c.Request.Context(), claims.UserID, id)
	})
}

// ListHistory godoc
// GET /api/v1/student/exams
// Lists the student's sessions, newest first.
func (h *ExamHandler) ListHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.sessionService.History(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetResult godoc
// GET /api/v1/student/exams/:id/result
// Returns the persisted result of a finished session with its responses.
func (h *ExamHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.sessionService.Report(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

func (h *ExamHandler) withSession(c *gin.Context, fn func(*service.Claims, uuid.UUID) (exam.Snapshot, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := fn(claims, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionView(snap))
}

// failSession maps session errors to HTTP responses.
func failSession(c *gin.Context, err error) {
	status, code := sessionErrorCode(err)
	response.Fail(c, status, code)
}

func sessionErrorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrInvalidMode):
		return http.StatusBadRequest, response.ErrInvalidPayload
	case errors.Is(err, service.ErrSessionNotFinished):
		return http.StatusConflict, response.ErrSessionNotFinished
	case errors.Is(err, exam.ErrQuestionSetUnavailable):
		return http.StatusServiceUnavailable, response.ErrQuestionSetUnavailable
	case errors.Is(err, exam.ErrStartFailed):
		return http.StatusBadGateway, response.ErrSessionStartFailed
	case errors.Is(err, exam.ErrSessionNotActive):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, exam.ErrUnknownAnswer):
		return http.StatusBadRequest, response.ErrUnknownAnswer
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
