package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
)

// Outcome labels for discount applications. Kept low-cardinality.
const (
	OutcomeApplied         = "applied"
	OutcomeLimitExceeded   = "limit_exceeded"
	OutcomeBudgetExhausted = "budget_exhausted"
	OutcomeNotEligible     = "not_eligible"
	OutcomeNotFound        = "not_found"
	OutcomeInvalid         = "invalid_input"
	OutcomeCanceled        = "canceled"
	OutcomeError           = "error"
)

// Metrics holds the discount engine instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	applications  *prometheus.CounterVec
	discountSpent *prometheus.CounterVec
	eligibility   *prometheus.HistogramVec
}

// New creates the instruments and registers them on registerer, falling back
// to the default registerer when nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discount_applications_total",
			Help: "Discount application attempts by discount type and outcome.",
		}, []string{"discount_type", "outcome"}),
		discountSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discount_amount_total",
			Help: "Discount amount granted, in currency units.",
		}, []string{"discount_type"}),
		eligibility: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "discount_eligible_campaigns",
			Help:    "Number of campaigns returned per eligibility lookup.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"targeted"}),
	}
	registerer.MustRegister(m.applications, m.discountSpent, m.eligibility)
	return m
}

// ObserveApplication records one ApplyDiscount attempt. discountType may be
// empty when the campaign could not be loaded.
func (m *Metrics) ObserveApplication(discountType domain.DiscountType, err error, amount decimal.Decimal) {
	if m == nil {
		return
	}
	label := string(discountType)
	if label == "" {
		label = "unknown"
	}
	outcome := Classify(err)
	m.applications.WithLabelValues(label, outcome).Inc()
	if outcome == OutcomeApplied {
		m.discountSpent.WithLabelValues(label).Add(amount.InexactFloat64())
	}
}

// ObserveEligibility records the size of one eligibility result.
func (m *Metrics) ObserveEligibility(targeted bool, n int) {
	if m == nil {
		return
	}
	label := "false"
	if targeted {
		label = "true"
	}
	m.eligibility.WithLabelValues(label).Observe(float64(n))
}

// Classify maps an application error onto an outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, domain.ErrLimitExceeded):
		return OutcomeLimitExceeded
	case errors.Is(err, domain.ErrBudgetExhausted):
		return OutcomeBudgetExhausted
	case errors.Is(err, domain.ErrNotEligible):
		return OutcomeNotEligible
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
