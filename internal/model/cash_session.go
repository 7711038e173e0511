package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session lifecycle states. VOID is reachable only through an administrative
// override, never by operator action.
const (
	SessionOpen   = "OPEN"
	SessionClosed = "CLOSED"
	SessionVoid   = "VOID"
)

// CashSession represents one open→close operating cycle of a register.
//
// A partial unique index (migration 000001) guarantees at most one OPEN
// session per register. The closing fields — ClosedAt, CountedAmount,
// ExpectedAmount, Variance and friends — are written together by a single
// conditional UPDATE on the OPEN→CLOSED transition and never altered after.
type CashSession struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperatorID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OpeningAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ExpectedAmount is computed on close: opening + SUM(session sales).
	ExpectedAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CountedAmount  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	VariancePct    *decimal.Decimal `gorm:"type:decimal(5,2)"`
	// Direction: "balanced" | "surplus" | "shortage"
	Direction *string `gorm:"type:varchar(20)"`
	// Severity: "normal" | "warning" | "critical"
	Severity *string `gorm:"type:varchar(20)"`
	Notes    *string
	State    string `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	OpenedAt time.Time
	ClosedAt *time.Time
}

func (CashSession) TableName() string { return "cash_sessions" }

// IsOpen reports whether the session still accepts sales and a close.
func (s *CashSession) IsOpen() bool { return s.State == SessionOpen }
