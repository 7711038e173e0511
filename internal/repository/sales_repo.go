package repository

import (
	"context"

	"tillpoint/internal/apierror"
	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesRepository is the sales aggregator: a read-only projection of sales
// attributed to a session. It is idempotent — repeated calls for the same
// session never double count, they re-run the same aggregate.
type SalesRepository interface {
	SummarizeBySession(ctx context.Context, sessionID uuid.UUID) (reconcile.SalesSummary, error)
}

type salesRepo struct{ db *gorm.DB }

func NewSalesRepository(db *gorm.DB) SalesRepository { return &salesRepo{db: db} }

func (r *salesRepo) SummarizeBySession(ctx context.Context, sessionID uuid.UUID) (reconcile.SalesSummary, error) {
	summary := reconcile.SalesSummary{ByMethod: emptyBreakdown()}

	// The total and count come from the sales themselves — a completed sale
	// with missing or partial payment rows still counts toward the drawer's
	// expected amount.
	agg := struct {
		Total decimal.Decimal
		Count int64
	}{}
	err := r.db.WithContext(ctx).
		Model(&model.Sale{}).
		Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS count").
		Where("session_id = ? AND status = ?", sessionID, model.SaleCompleted).
		Scan(&agg).Error
	if err != nil {
		return summary, apierror.NewTransient("sales store unavailable", err)
	}
	summary.Total = agg.Total
	summary.Count = agg.Count

	// Per-method breakdown from the attributed payment rows.
	rows := []struct {
		Method string
		Sum    decimal.Decimal
	}{}
	err = r.db.WithContext(ctx).
		Table("sale_payments").
		Select("sale_payments.method AS method, COALESCE(SUM(sale_payments.amount), 0) AS sum").
		Joins("JOIN sales ON sales.id = sale_payments.sale_id").
		Where("sales.session_id = ? AND sales.status = ?", sessionID, model.SaleCompleted).
		Group("sale_payments.method").
		Scan(&rows).Error
	if err != nil {
		return summary, apierror.NewTransient("sales store unavailable", err)
	}
	for _, row := range rows {
		summary.ByMethod[row.Method] = row.Sum
	}
	return summary, nil
}

func emptyBreakdown() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(model.PaymentMethods))
	for _, method := range model.PaymentMethods {
		m[method] = decimal.Zero
	}
	return m
}
