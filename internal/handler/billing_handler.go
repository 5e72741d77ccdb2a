package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/drivetest-backend/internal/middleware"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/response"
	"github.com/stemsi/drivetest-backend/internal/service"
	"github.com/stemsi/drivetest-backend/internal/validator"
)

// BillingHandler handles subscription and payment endpoints.
type BillingHandler struct {
	billingService *service.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// Subscribe godoc
// POST /api/v1/student/subscriptions
// Records a pending mobile money payment and subscription for a plan.
func (h *BillingHandler) Subscribe(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubscribeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.billingService.Subscribe(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPlan) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// GetActiveSubscription godoc
// GET /api/v1/student/subscriptions/active
func (h *BillingHandler) GetActiveSubscription(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sub, err := h.billingService.Active(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"subscription": sub})
}

// ListPayments godoc
// GET /api/v1/student/payments
func (h *BillingHandler) ListPayments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	payments, pagination, err := h.billingService.Payments(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"payments": payments}, pagination)
}
