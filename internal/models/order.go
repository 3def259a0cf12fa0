package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDateRange = errors.New("date range start is after end")
	ErrMalformedAmount  = errors.New("malformed amount")
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OrderPending, OrderCompleted, OrderCancelled, OrderRefunded:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Amount is the monetary value exactly as the backing store reported it.
// It is parsed lazily so a malformed value degrades to zero with a warning
// instead of dropping the whole record.
type Amount string

func AmountOf(d decimal.Decimal) Amount {
	return Amount(d.String())
}

// Decimal parses the amount. Empty, non-numeric and negative values are
// reported as ErrMalformedAmount.
func (a Amount) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrMalformedAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %s", ErrMalformedAmount, s)
	}
	return d, nil
}

type OrderRecord struct {
	ID            string      `json:"id"`
	CustomerEmail string      `json:"customer_email"`
	Amount        Amount      `json:"amount"`
	Status        OrderStatus `json:"status"`
	ProductID     string      `json:"product_id"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (o OrderRecord) Completed() bool {
	return o.Status == OrderCompleted
}

// Validate checks the fields every consumer relies on. Amount is not checked
// here; see Amount.Decimal.
func (o OrderRecord) Validate() error {
	if o.ID == "" {
		return errors.New("order id is empty")
	}
	if o.CustomerEmail == "" {
		return fmt.Errorf("order %s: customer email is empty", o.ID)
	}
	if _, err := ParseOrderStatus(string(o.Status)); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	if o.CreatedAt.IsZero() {
		return fmt.Errorf("order %s: created_at is zero", o.ID)
	}
	return nil
}

// NormalizeEmail produces the customer key: there is no separate customer
// entity, so two spellings of one address must collapse to one customer.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DateRange bounds are inclusive on Start and exclusive on End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r *DateRange) Validate() error {
	if r == nil {
		return nil
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return ErrInvalidDateRange
	}
	return nil
}

// Contains reports whether t falls in the range. A nil range or a zero bound
// is unbounded on that side.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

func (r *DateRange) Key() string {
	if r == nil {
		return "all"
	}
	return fmt.Sprintf("%s_%s", formatBound(r.Start), formatBound(r.End))
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.UTC().Format(time.RFC3339)
}
