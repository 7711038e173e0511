package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods — a closed set. YAPE and PLIN are the mobile-wallet
// channels.
const (
	PaymentCash         = "CASH"
	PaymentCard         = "CARD"
	PaymentBankTransfer = "BANK_TRANSFER"
	PaymentWalletYape   = "YAPE"
	PaymentWalletPlin   = "PLIN"
)

// PaymentMethods lists every accepted method in display order.
var PaymentMethods = []string{
	PaymentCash,
	PaymentCard,
	PaymentBankTransfer,
	PaymentWalletYape,
	PaymentWalletPlin,
}

const (
	SaleCompleted = "COMPLETED"
	SaleCancelled = "CANCELLED"
)

// Sale is the header of a checkout attributed to a cash session. The session
// core only reads sales — registering them belongs to the checkout surface.
// Cancelled sales never count toward reconciliation.
type Sale struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperatorID uuid.UUID       `gorm:"type:uuid;not null"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status     string          `gorm:"type:varchar(20);not null;default:'COMPLETED'"`
	CreatedAt  time.Time

	Payments []SalePayment `gorm:"foreignKey:SaleID"`
}

func (Sale) TableName() string { return "sales" }

// SalePayment splits a sale total across payment methods.
type SalePayment struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Method string          `gorm:"type:varchar(20);not null"`
	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (SalePayment) TableName() string { return "sale_payments" }
