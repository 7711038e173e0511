package service

import (
	"context"
	"encoding/json"

	"tillpoint/internal/dto"
	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"
	"tillpoint/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const frozenSummaryPrefix = "session:summary:"

// SalesService exposes the sales aggregator to the session core. While a
// session is open the summary is the live aggregate; once it closes the
// summary is frozen in Redis and served from the snapshot — no further
// sales may attribute to a closed session.
type SalesService interface {
	GetSessionSales(ctx context.Context, sessionID uuid.UUID) (*dto.SalesSummaryResponse, error)
	// FreezeSummary snapshots a closed session's aggregate. Idempotent: the
	// first snapshot wins, re-freezing never overwrites.
	FreezeSummary(ctx context.Context, sessionID uuid.UUID) (reconcile.SalesSummary, error)
}

type salesService struct {
	sessions repository.SessionRepository
	sales    repository.SalesRepository
	rdb      *redis.Client
}

func NewSalesService(
	sessions repository.SessionRepository,
	sales repository.SalesRepository,
	rdb *redis.Client,
) SalesService {
	return &salesService{sessions: sessions, sales: sales, rdb: rdb}
}

// frozenSummary is the Redis snapshot layout.
type frozenSummary struct {
	Total    decimal.Decimal            `json:"total"`
	Count    int64                      `json:"count"`
	ByMethod map[string]decimal.Decimal `json:"by_method"`
}

func (s *salesService) GetSessionSales(ctx context.Context, sessionID uuid.UUID) (*dto.SalesSummaryResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.State != model.SessionOpen && s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, frozenSummaryPrefix+sessionID.String()).Bytes(); err == nil {
			var snap frozenSummary
			if err := json.Unmarshal(raw, &snap); err == nil {
				return &dto.SalesSummaryResponse{
					SessionID: sessionID.String(),
					Total:     snap.Total,
					Count:     snap.Count,
					ByMethod:  snap.ByMethod,
				}, nil
			}
			log.Warn().Str("session_id", sessionID.String()).
				Msg("corrupt frozen summary snapshot — falling back to live aggregate")
		}
	}

	summary, err := retryRead(ctx, func() (reconcile.SalesSummary, error) {
		return s.sales.SummarizeBySession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SalesSummaryResponse{
		SessionID: sessionID.String(),
		Total:     summary.Total,
		Count:     summary.Count,
		ByMethod:  summary.ByMethod,
	}, nil
}

func (s *salesService) FreezeSummary(ctx context.Context, sessionID uuid.UUID) (reconcile.SalesSummary, error) {
	summary, err := retryRead(ctx, func() (reconcile.SalesSummary, error) {
		return s.sales.SummarizeBySession(ctx, sessionID)
	})
	if err != nil {
		return summary, err
	}
	if s.rdb == nil {
		return summary, nil
	}

	raw, err := json.Marshal(frozenSummary{
		Total:    summary.Total,
		Count:    summary.Count,
		ByMethod: summary.ByMethod,
	})
	if err != nil {
		return summary, err
	}
	// SETNX: the snapshot is immutable once written.
	if err := s.rdb.SetNX(ctx, frozenSummaryPrefix+sessionID.String(), raw, 0).Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
