package analytics

import (
	"fmt"
	"slices"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

type transitionKey struct {
	from  models.SubscriptionStatus
	event models.BillingEvent
}

var transitions = map[transitionKey]models.SubscriptionStatus{
	{models.SubscriptionTrial, models.EventPaymentSucceeded}:     models.SubscriptionActive,
	{models.SubscriptionTrial, models.EventUserCancel}:           models.SubscriptionCancelled,
	{models.SubscriptionActive, models.EventPaymentFailed}:       models.SubscriptionPastDue,
	{models.SubscriptionActive, models.EventUserCancel}:          models.SubscriptionCancelled,
	{models.SubscriptionPastDue, models.EventPaymentSucceeded}:   models.SubscriptionActive,
	{models.SubscriptionPastDue, models.EventGracePeriodExpired}: models.SubscriptionCancelled,
	{models.SubscriptionPastDue, models.EventUserCancel}:         models.SubscriptionCancelled,
	{models.SubscriptionCancelled, models.EventUserReactivate}:   models.SubscriptionActive,
}

// NextStatus applies a billing event to a subscription status. Transitions
// are owned by the billing system; this only encodes which ones are legal.
func NextStatus(from models.SubscriptionStatus, event models.BillingEvent) (models.SubscriptionStatus, error) {
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", models.ErrInvalidTransition, event, from)
	}
	return to, nil
}

// ClassifyTransitions counts past_due exits inside window: to active is a
// recovery, to cancelled is a loss. Transitions sharing an event ID are
// counted once, so a replayed webhook cannot inflate the figures.
func ClassifyTransitions(history []models.StatusTransition, window *models.DateRange) models.RecoveryOutcomes {
	var out models.RecoveryOutcomes
	seen := make(map[string]struct{}, len(history))

	for _, t := range history {
		if t.From != models.SubscriptionPastDue || !window.Contains(t.OccurredAt) {
			continue
		}
		key := t.EventID
		if key == "" {
			key = fmt.Sprintf("%s|%s|%s|%d", t.SubscriptionID, t.From, t.To, t.OccurredAt.UnixNano())
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch t.To {
		case models.SubscriptionActive:
			out.Recovered++
		case models.SubscriptionCancelled:
			out.Lost++
		}
	}
	return out
}

// Dunning classifies the current subscription snapshot. prices maps plan ID
// to monthly price; a past_due subscription whose plan has no price adds
// nothing to AtRiskMRR and produces a warning. RecoveryRate is
// recovered/(recovered+lost+atRisk), or 0 when that sum is 0.
func Dunning(subs []models.SubscriptionRecord, outcomes models.RecoveryOutcomes, prices map[string]decimal.Decimal) models.DunningStats {
	stats := models.DunningStats{
		Recovered:    outcomes.Recovered,
		Lost:         outcomes.Lost,
		AtRiskMRR:    decimal.Zero,
		StatusCounts: make(map[models.SubscriptionStatus]int, 4),
	}
	if stats.Recovered < 0 {
		stats.Warnings = append(stats.Warnings, models.Warning{Source: "dunning", Message: fmt.Sprintf("negative recovered count %d treated as 0", stats.Recovered)})
		stats.Recovered = 0
	}
	if stats.Lost < 0 {
		stats.Warnings = append(stats.Warnings, models.Warning{Source: "dunning", Message: fmt.Sprintf("negative lost count %d treated as 0", stats.Lost)})
		stats.Lost = 0
	}

	for _, s := range subs {
		stats.StatusCounts[s.Status]++
		if s.Status != models.SubscriptionPastDue {
			continue
		}
		stats.AtRisk++
		price, ok := prices[s.PlanID]
		if !ok {
			stats.Warnings = append(stats.Warnings, models.Warning{
				Source:   "dunning",
				RecordID: s.ID,
				Message:  fmt.Sprintf("no monthly price for plan %q", s.PlanID),
			})
			continue
		}
		stats.AtRiskMRR = stats.AtRiskMRR.Add(price)
	}

	if denom := stats.Recovered + stats.Lost + stats.AtRisk; denom > 0 {
		stats.RecoveryRate = float64(stats.Recovered) / float64(denom)
	}
	return stats
}

// AtRiskPlans returns the distinct plan IDs of past_due subscriptions, sorted.
// Callers use it to resolve prices before calling Dunning.
func AtRiskPlans(subs []models.SubscriptionRecord) []string {
	var plans []string
	for _, s := range subs {
		if s.Status == models.SubscriptionPastDue && !slices.Contains(plans, s.PlanID) {
			plans = append(plans, s.PlanID)
		}
	}
	slices.Sort(plans)
	return plans
}
