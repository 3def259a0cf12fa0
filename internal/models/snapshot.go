package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Warning struct {
	Source   string `json:"source"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

type RevenueSummary struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	UniqueCustomers   int             `json:"unique_customers"`
	CLV               decimal.Decimal `json:"clv"`
	PurchaseFrequency float64         `json:"purchase_frequency"`
	Warnings          []Warning       `json:"warnings,omitempty"`
}

type MonthlyRevenue struct {
	Month      string          `json:"month"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int             `json:"order_count"`
}

type Segment string

const (
	SegmentVIP     Segment = "VIP"
	SegmentHigh    Segment = "High"
	SegmentRegular Segment = "Regular"
	SegmentNewLow  Segment = "New/Low"
)

// Segments lists every segment in reporting order.
var Segments = []Segment{SegmentVIP, SegmentHigh, SegmentRegular, SegmentNewLow}

type SegmentBucket struct {
	Label   Segment         `json:"label"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type SegmentReport struct {
	AvgRevenue decimal.Decimal `json:"avg_revenue"`
	Buckets    []SegmentBucket `json:"buckets"`
}

type CohortBucket struct {
	Month     string          `json:"month"`
	Members   []string        `json:"members"`
	Size      int             `json:"size"`
	Retention []float64       `json:"retention"`
	Revenue   decimal.Decimal `json:"revenue"`
	AvgLTV    decimal.Decimal `json:"avg_ltv"`
}

type DunningStats struct {
	AtRisk       int                        `json:"at_risk"`
	Recovered    int                        `json:"recovered"`
	Lost         int                        `json:"lost"`
	RecoveryRate float64                    `json:"recovery_rate"`
	AtRiskMRR    decimal.Decimal            `json:"at_risk_mrr"`
	StatusCounts map[SubscriptionStatus]int `json:"status_counts"`
	Warnings     []Warning                  `json:"warnings,omitempty"`
}

type ForecastPoint struct {
	Period   string   `json:"period"`
	Forecast float64  `json:"forecast"`
	Actual   *float64 `json:"actual,omitempty"`
}

// AnalyticsSnapshot is built once per request and not modified afterwards.
type AnalyticsSnapshot struct {
	ID             string           `json:"id"`
	ShopID         string           `json:"shop_id"`
	DateRange      *DateRange       `json:"date_range,omitempty"`
	DataVersion    string           `json:"data_version"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Revenue        RevenueSummary   `json:"revenue"`
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`
	Segments       SegmentReport    `json:"segments"`
	Cohorts        []CohortBucket   `json:"cohorts"`
	Dunning        DunningStats     `json:"dunning"`
	Forecast       []ForecastPoint  `json:"forecast"`
	Warnings       []Warning        `json:"warnings,omitempty"`
}

type ExportRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
