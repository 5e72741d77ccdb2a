package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/model"
)

func TestBilling_SubscribeAndActive(t *testing.T) {
	svc := NewBillingService(datasource.NewFixture(), nopLogger())
	ctx := context.Background()
	user := uuid.New()

	if _, err := svc.Active(ctx, user); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}

	res, err := svc.Subscribe(ctx, user, model.SubscribeRequest{
		Plan:        model.PlanWeekly,
		Provider:    model.ProviderMTN,
		PhoneNumber: "+256700000001",
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if res.Payment.Status != model.BillingStatusPending || res.Subscription.Status != model.BillingStatusPending {
		t.Fatal("records must be written as pending")
	}
	if res.Payment.Amount != 2000 || res.Payment.Currency != Currency {
		t.Fatalf("unexpected amount %d %s", res.Payment.Amount, res.Payment.Currency)
	}
	if got := res.Subscription.EndsAt.Sub(res.Subscription.StartsAt); got != 7*24*time.Hour {
		t.Fatalf("expected a 7 day period, got %s", got)
	}
	if !strings.HasPrefix(res.Payment.Reference, "MTN-") || res.Payment.SubscriptionID != res.Subscription.ID {
		t.Fatalf("unexpected payment %+v", res.Payment)
	}

	active, err := svc.Active(ctx, user)
	if err != nil || active.ID != res.Subscription.ID {
		t.Fatalf("expected active subscription, got %+v err=%v", active, err)
	}

	payments, pagination, err := svc.Payments(ctx, user, 1, 10)
	if err != nil || len(payments) != 1 || pagination.TotalItems != 1 {
		t.Fatalf("unexpected payments %+v err=%v", payments, err)
	}
}

func TestBilling_InvalidPlan(t *testing.T) {
	svc := NewBillingService(datasource.NewFixture(), nopLogger())
	_, err := svc.Subscribe(context.Background(), uuid.New(), model.SubscribeRequest{Plan: "yearly", Provider: model.ProviderAirtel})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
