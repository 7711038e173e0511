package repository

import (
	"context"
	"errors"
	"time"

	"tillpoint/internal/apierror"
	"tillpoint/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClosingRecord carries every field committed by the OPEN→CLOSED transition.
// The repository writes them in one conditional UPDATE — never partially.
type ClosingRecord struct {
	ExpectedAmount decimal.Decimal
	CountedAmount  decimal.Decimal
	Variance       decimal.Decimal
	VariancePct    decimal.Decimal
	Direction      string
	Severity       string
	Notes          *string
	ClosedAt       time.Time
}

type SessionRepository interface {
	// CreateSession inserts an OPEN session. The store's partial unique
	// index rejects a second OPEN session on the same register; that
	// violation surfaces as a ConflictError.
	CreateSession(ctx context.Context, s *model.CashSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	// FindOpenByRegister / ByOperator / ByBranch return (nil, nil) when no
	// open session exists — "no session" is an expected state, not a failure.
	FindOpenByRegister(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error)
	FindOpenByOperator(ctx context.Context, operatorID uuid.UUID) (*model.CashSession, error)
	FindOpenByBranch(ctx context.Context, branchID uuid.UUID) (*model.CashSession, error)
	// CloseSession performs the conditional write: the row must still be
	// OPEN or the call fails with ConflictError. This is the enforcement
	// point for "at most one successful close per session".
	CloseSession(ctx context.Context, id uuid.UUID, rec ClosingRecord) error
	ListClosed(ctx context.Context, branchID uuid.UUID, page, limit int) ([]model.CashSession, int64, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepo{db: db} }

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (register_id) WHERE state = 'OPEN'.
const uniqueViolation = "23505"

func (r *sessionRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apierror.NewConflict("an open session already exists for this register")
		}
		return apierror.NewTransient("session store unavailable", err)
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NewNotFound("session not found")
	}
	if err != nil {
		return nil, apierror.NewTransient("session store unavailable", err)
	}
	return &s, nil
}

func (r *sessionRepo) FindOpenByRegister(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(ctx, "register_id = ?", registerID)
}

func (r *sessionRepo) FindOpenByOperator(ctx context.Context, operatorID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(ctx, "operator_id = ?", operatorID)
}

func (r *sessionRepo) FindOpenByBranch(ctx context.Context, branchID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(ctx,
		"register_id IN (SELECT id FROM cash_registers WHERE branch_id = ?)", branchID)
}

func (r *sessionRepo) findOpen(ctx context.Context, cond string, arg any) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("state = ?", model.SessionOpen).
		Where(cond, arg).
		Order("opened_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.NewTransient("session store unavailable", err)
	}
	return &s, nil
}

func (r *sessionRepo) CloseSession(ctx context.Context, id uuid.UUID, rec ClosingRecord) error {
	res := r.db.WithContext(ctx).
		Model(&model.CashSession{}).
		Where("id = ? AND state = ?", id, model.SessionOpen).
		Updates(map[string]any{
			"state":           model.SessionClosed,
			"expected_amount": rec.ExpectedAmount,
			"counted_amount":  rec.CountedAmount,
			"variance":        rec.Variance,
			"variance_pct":    rec.VariancePct,
			"direction":       rec.Direction,
			"severity":        rec.Severity,
			"notes":           rec.Notes,
			"closed_at":       rec.ClosedAt,
		})
	if res.Error != nil {
		return apierror.NewTransient("session store unavailable", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race: a concurrent close got there first, or the id
		// never existed. Callers re-fetch to distinguish.
		return apierror.NewConflict("session is no longer open")
	}
	return nil
}

func (r *sessionRepo) ListClosed(ctx context.Context, branchID uuid.UUID, page, limit int) ([]model.CashSession, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.CashSession{}).
		Where("state = ?", model.SessionClosed).
		Where("register_id IN (SELECT id FROM cash_registers WHERE branch_id = ?)", branchID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apierror.NewTransient("session store unavailable", err)
	}

	var sessions []model.CashSession
	err := q.Order("closed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, apierror.NewTransient("session store unavailable", err)
	}
	return sessions, total, nil
}
