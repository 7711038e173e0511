package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RegisterActive    = "ACTIVE"
	RegisterDisabled  = "DISABLED"
	RegisterSuspended = "SUSPENDED"
)

// CashRegister is a point-of-sale terminal capable of holding one open
// session at a time. The session core references registers and never
// mutates them — creation and editing belong to the admin surface.
type CashRegister struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name     string    `gorm:"not null"`
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
	// AssignedOperatorID is set for cashier-owned registers; supervisors
	// operate every register in their branch regardless of assignment.
	AssignedOperatorID *uuid.UUID `gorm:"type:uuid;index"`
	Status             string     `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (CashRegister) TableName() string { return "cash_registers" }
