package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"tillpoint/internal/apierror"
	"tillpoint/internal/config"
	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"
	"tillpoint/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testConfig() *config.Config {
	return &config.Config{
		RolePriority: []string{"admin", "supervisor", "cashier"},
	}
}

// ── Full in-memory SessionRepository ─────────────────────────────────────────
// Mirrors the store semantics the real Postgres schema enforces: the partial
// unique index on open sessions and the conditional close.

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*model.CashSession
	registers *fakeRegisterRepo
}

func newFakeSessionRepo(registers *fakeRegisterRepo) *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:  make(map[uuid.UUID]*model.CashSession),
		registers: registers,
	}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.RegisterID == s.RegisterID && existing.State == model.SessionOpen {
			return apierror.NewConflict("an open session already exists for this register")
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.OpenedAt.IsZero() {
		s.OpenedAt = time.Now()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apierror.NewNotFound("session not found")
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindOpenByRegister(_ context.Context, registerID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(func(s *model.CashSession) bool { return s.RegisterID == registerID })
}

func (r *fakeSessionRepo) FindOpenByOperator(_ context.Context, operatorID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(func(s *model.CashSession) bool { return s.OperatorID == operatorID })
}

func (r *fakeSessionRepo) FindOpenByBranch(_ context.Context, branchID uuid.UUID) (*model.CashSession, error) {
	return r.findOpen(func(s *model.CashSession) bool {
		reg, ok := r.registers.registers[s.RegisterID]
		return ok && reg.BranchID == branchID
	})
}

func (r *fakeSessionRepo) findOpen(match func(*model.CashSession) bool) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.State == model.SessionOpen && match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) CloseSession(_ context.Context, id uuid.UUID, rec repository.ClosingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State != model.SessionOpen {
		return apierror.NewConflict("session is no longer open")
	}
	s.State = model.SessionClosed
	s.ExpectedAmount = &rec.ExpectedAmount
	s.CountedAmount = &rec.CountedAmount
	s.Variance = &rec.Variance
	s.VariancePct = &rec.VariancePct
	s.Direction = &rec.Direction
	s.Severity = &rec.Severity
	s.Notes = rec.Notes
	closedAt := rec.ClosedAt
	s.ClosedAt = &closedAt
	return nil
}

func (r *fakeSessionRepo) ListClosed(_ context.Context, branchID uuid.UUID, page, limit int) ([]model.CashSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.CashSession
	for _, s := range r.sessions {
		reg, ok := r.registers.registers[s.RegisterID]
		if s.State == model.SessionClosed && ok && reg.BranchID == branchID {
			all = append(all, *s)
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

var _ repository.SessionRepository = (*fakeSessionRepo)(nil)

// ── In-memory RegisterRepository ─────────────────────────────────────────────

type fakeRegisterRepo struct {
	registers map[uuid.UUID]*model.CashRegister
}

func newFakeRegisterRepo() *fakeRegisterRepo {
	return &fakeRegisterRepo{registers: make(map[uuid.UUID]*model.CashRegister)}
}

func (r *fakeRegisterRepo) add(reg model.CashRegister) uuid.UUID {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	r.registers[reg.ID] = &reg
	return reg.ID
}

func (r *fakeRegisterRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CashRegister, error) {
	reg, ok := r.registers[id]
	if !ok {
		return nil, apierror.NewNotFound("register not found")
	}
	cp := *reg
	return &cp, nil
}

func (r *fakeRegisterRepo) ListByOperator(_ context.Context, operatorID uuid.UUID) ([]model.CashRegister, error) {
	var out []model.CashRegister
	for _, reg := range r.registers {
		if reg.AssignedOperatorID != nil && *reg.AssignedOperatorID == operatorID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (r *fakeRegisterRepo) ListByBranch(_ context.Context, branchID uuid.UUID) ([]model.CashRegister, error) {
	var out []model.CashRegister
	for _, reg := range r.registers {
		if reg.BranchID == branchID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

var _ repository.RegisterRepository = (*fakeRegisterRepo)(nil)

// ── In-memory SalesRepository ────────────────────────────────────────────────

type fakeSalesRepo struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]reconcile.SalesSummary
	// failures injects transient errors before succeeding, to exercise the
	// read retry path.
	failures int
}

func newFakeSalesRepo() *fakeSalesRepo {
	return &fakeSalesRepo{summaries: make(map[uuid.UUID]reconcile.SalesSummary)}
}

func (r *fakeSalesRepo) setSummary(sessionID uuid.UUID, total string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[sessionID] = reconcile.SalesSummary{
		Total:    decimal.RequireFromString(total),
		Count:    count,
		ByMethod: map[string]decimal.Decimal{model.PaymentCash: decimal.RequireFromString(total)},
	}
}

func (r *fakeSalesRepo) SummarizeBySession(_ context.Context, sessionID uuid.UUID) (reconcile.SalesSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return reconcile.SalesSummary{}, apierror.NewTransient("sales store unavailable", errors.New("connection refused"))
	}
	if summary, ok := r.summaries[sessionID]; ok {
		return summary, nil
	}
	return reconcile.SalesSummary{ByMethod: map[string]decimal.Decimal{}}, nil
}

var _ repository.SalesRepository = (*fakeSalesRepo)(nil)

// ── Close publisher spy ──────────────────────────────────────────────────────

type fakePublisher struct {
	mu     sync.Mutex
	closed []uuid.UUID
}

func (p *fakePublisher) PublishSessionClosed(_ context.Context, sessionID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, sessionID)
	return nil
}
