package repository

import (
	"context"
	"errors"

	"tillpoint/internal/apierror"
	"tillpoint/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegisterRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegister, error)
	// ListByOperator returns registers assigned to a specific cashier.
	ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]model.CashRegister, error)
	// ListByBranch returns every register of a branch (supervisor scope).
	ListByBranch(ctx context.Context, branchID uuid.UUID) ([]model.CashRegister, error)
}

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository { return &registerRepo{db: db} }

func (r *registerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NewNotFound("register not found")
	}
	if err != nil {
		return nil, apierror.NewTransient("register store unavailable", err)
	}
	return &reg, nil
}

func (r *registerRepo) ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]model.CashRegister, error) {
	var regs []model.CashRegister
	err := r.db.WithContext(ctx).
		Where("assigned_operator_id = ?", operatorID).
		Order("name ASC").
		Find(&regs).Error
	if err != nil {
		return nil, apierror.NewTransient("register store unavailable", err)
	}
	return regs, nil
}

func (r *registerRepo) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]model.CashRegister, error) {
	var regs []model.CashRegister
	err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("name ASC").
		Find(&regs).Error
	if err != nil {
		return nil, apierror.NewTransient("register store unavailable", err)
	}
	return regs, nil
}
