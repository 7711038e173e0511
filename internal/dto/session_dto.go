package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	RegisterID    string          `json:"register_id"    validate:"required,uuid"`
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

type CloseSessionRequest struct {
	SessionID     string          `json:"session_id"     validate:"required,uuid"`
	CountedAmount decimal.Decimal `json:"counted_amount" validate:"min=0"`
	Notes         *string         `json:"notes"`
	// Confirm must be true: closing is irreversible and the UI is required
	// to send the operator's explicit confirmation with the request.
	Confirm bool `json:"confirm"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VarianceResponse struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Direction  string          `json:"direction"` // balanced | surplus | shortage
	Severity   string          `json:"severity"`  // normal | warning | critical
}

type SessionResponse struct {
	SessionID      string            `json:"session_id"`
	RegisterID     string            `json:"register_id"`
	OperatorID     string            `json:"operator_id"`
	OpeningAmount  decimal.Decimal   `json:"opening_amount"`
	ExpectedAmount *decimal.Decimal  `json:"expected_amount,omitempty"`
	CountedAmount  *decimal.Decimal  `json:"counted_amount,omitempty"`
	Variance       *VarianceResponse `json:"variance,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	State          string            `json:"state"`
	OpenedAt       string            `json:"opened_at"`
	ClosedAt       *string           `json:"closed_at,omitempty"`
}

type SalesSummaryResponse struct {
	SessionID string                     `json:"session_id"`
	Total     decimal.Decimal            `json:"total"`
	Count     int64                      `json:"count"`
	ByMethod  map[string]decimal.Decimal `json:"by_method"`
}

// ReconciliationPreview is the pre-close projection. CountedAmount and
// Variance appear only after the session closed.
type ReconciliationPreview struct {
	SessionID      string            `json:"session_id"`
	OpeningAmount  decimal.Decimal   `json:"opening_amount"`
	SalesTotal     decimal.Decimal   `json:"sales_total"`
	ExpectedAmount decimal.Decimal   `json:"expected_amount"`
	CountedAmount  *decimal.Decimal  `json:"counted_amount,omitempty"`
	Variance       *VarianceResponse `json:"variance,omitempty"`
	State          string            `json:"state"`
}
