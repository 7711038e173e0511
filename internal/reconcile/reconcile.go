// Package reconcile computes the closing arithmetic of a cash session:
// expected amount, variance against the counted amount, and its
// classification. Every function here is deterministic and side-effect-free;
// all money is decimal so a balanced session reconciles to exactly zero.
package reconcile

import "github.com/shopspring/decimal"

// Direction of the variance. Advisory — carries no side effect.
const (
	DirectionBalanced = "balanced"
	DirectionSurplus  = "surplus"
	DirectionShortage = "shortage"
)

// Severity buckets on |variance %| of the expected amount.
// A critical close requires supervisor notes (enforced by the service).
const (
	SeverityNormal   = "normal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var (
	severityNormalMax  = decimal.NewFromInt(1)
	severityWarningMax = decimal.NewFromInt(5)
	hundred            = decimal.NewFromInt(100)
)

// SalesSummary is the read-only projection of sales attributed to a session,
// produced by the sales aggregator.
type SalesSummary struct {
	Total    decimal.Decimal
	Count    int64
	ByMethod map[string]decimal.Decimal
}

// Result is the full reconciliation outcome.
type Result struct {
	Expected    decimal.Decimal
	Counted     decimal.Decimal
	Variance    decimal.Decimal
	VariancePct decimal.Decimal
	Direction   string
	Severity    string
}

// Reconcile computes expected = opening + sales total and
// variance = counted - expected.
func Reconcile(opening decimal.Decimal, summary SalesSummary, counted decimal.Decimal) Result {
	expected := opening.Add(summary.Total)
	variance := counted.Sub(expected)

	var pct decimal.Decimal
	if !expected.IsZero() {
		pct = variance.Div(expected).Mul(hundred).Round(2)
	}

	return Result{
		Expected:    expected,
		Counted:     counted,
		Variance:    variance,
		VariancePct: pct,
		Direction:   classify(variance),
		Severity:    severity(pct),
	}
}

// Expected returns the pre-close projection: what the drawer should hold
// right now given the sales attributed so far.
func Expected(opening decimal.Decimal, summary SalesSummary) decimal.Decimal {
	return opening.Add(summary.Total)
}

func classify(variance decimal.Decimal) string {
	switch variance.Sign() {
	case 1:
		return DirectionSurplus
	case -1:
		return DirectionShortage
	default:
		return DirectionBalanced
	}
}

// severity buckets: |pct| <= 1 normal, <= 5 warning, > 5 critical.
func severity(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(severityNormalMax):
		return SeverityNormal
	case abs.LessThanOrEqual(severityWarningMax):
		return SeverityWarning
	default:
		return SeverityCritical
	}
}
