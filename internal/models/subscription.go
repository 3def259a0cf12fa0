package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid subscription transition")
	ErrPlanNotFound      = errors.New("plan not found")
)

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue, SubscriptionCancelled:
		return st, nil
	case "trialing":
		return SubscriptionTrial, nil
	case "canceled":
		return SubscriptionCancelled, nil
	default:
		return "", fmt.Errorf("unknown subscription status %q", s)
	}
}

type BillingEvent string

const (
	EventPaymentSucceeded   BillingEvent = "payment_succeeded"
	EventPaymentFailed      BillingEvent = "payment_failed"
	EventGracePeriodExpired BillingEvent = "grace_period_expired"
	EventUserCancel         BillingEvent = "user_cancel"
	EventUserReactivate     BillingEvent = "user_reactivate"
)

type SubscriptionRecord struct {
	ID               string             `json:"id"`
	CustomerEmail    string             `json:"customer_email"`
	PlanID           string             `json:"plan_id"`
	Status           SubscriptionStatus `json:"status"`
	PaymentAttempts  int                `json:"payment_attempts"`
	GracePeriodEnd   *time.Time         `json:"grace_period_end,omitempty"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
}

func (s SubscriptionRecord) Validate() error {
	if s.ID == "" {
		return errors.New("subscription id is empty")
	}
	if s.CustomerEmail == "" {
		return fmt.Errorf("subscription %s: customer email is empty", s.ID)
	}
	if _, err := ParseSubscriptionStatus(string(s.Status)); err != nil {
		return fmt.Errorf("subscription %s: %w", s.ID, err)
	}
	if s.PaymentAttempts < 0 {
		return fmt.Errorf("subscription %s: negative payment attempts", s.ID)
	}
	return nil
}

// StatusTransition is one observed status change, identified by the billing
// event that caused it so replays of the same webhook can be recognised.
type StatusTransition struct {
	EventID        string             `json:"event_id"`
	SubscriptionID string             `json:"subscription_id"`
	From           SubscriptionStatus `json:"from"`
	To             SubscriptionStatus `json:"to"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// RecoveryOutcomes counts past_due exits inside an observation window.
type RecoveryOutcomes struct {
	Recovered int `json:"recovered"`
	Lost      int `json:"lost"`
}
