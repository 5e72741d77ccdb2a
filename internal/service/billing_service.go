package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/response"
)

// Currency is the currency of every plan price.
const Currency = "UGX"

// Billing errors.
var (
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrInvalidPlan          = errors.New("invalid plan")
)

// SubscribeResult is the pair of records written by Subscribe.
type SubscribeResult struct {
	Subscription model.Subscription `json:"subscription"`
	Payment      model.Payment      `json:"payment"`
}

// BillingService records subscription purchases. Payments are written as
// pending and settled by the mobile money operator outside this service.
type BillingService struct {
	store datasource.BillingStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(store datasource.BillingStore, log zerolog.Logger) *BillingService {
	return &BillingService{
		store: store,
		log:   logger.Component(log, "billing_service"),
		now:   time.Now,
	}
}

// Subscribe writes a pending subscription for the plan period and its payment record.
func (s *BillingService) Subscribe(ctx context.Context, userID uuid.UUID, req model.SubscribeRequest) (*SubscribeResult, error) {
	period := req.Plan.Duration()
	if period == 0 {
		return nil, ErrInvalidPlan
	}

	now := s.now().UTC()
	sub := &model.Subscription{
		UserID:   userID,
		Plan:     req.Plan,
		Status:   model.BillingStatusPending,
		StartsAt: now,
		EndsAt:   now.Add(period),
	}
	pay := &model.Payment{
		UserID:      userID,
		Amount:      req.Plan.Price(),
		Currency:    Currency,
		Provider:    req.Provider,
		PhoneNumber: req.PhoneNumber,
		Status:      model.BillingStatusPending,
		Reference:   newPaymentReference(req.Provider),
	}

	if err := s.store.CreateSubscription(ctx, sub, pay); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("plan", string(req.Plan)).
		Str("provider", string(req.Provider)).
		Str("reference", pay.Reference).
		Msg("Subscription requested")
	return &SubscribeResult{Subscription: *sub, Payment: *pay}, nil
}

// Active returns the user's current subscription.
func (s *BillingService) Active(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	sub, err := s.store.ActiveSubscription(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// Payments lists the user's payment records, newest first.
func (s *BillingService) Payments(ctx context.Context, userID uuid.UUID, page, perPage int) ([]model.Payment, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	payments, total, err := s.store.ListPayments(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return payments, response.NewPagination(page, perPage, total), nil
}

// newPaymentReference returns a short reference a user can quote to the operator.
func newPaymentReference(p model.Provider) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(string(p)) + "-" + strings.ToUpper(id[:12])
}
