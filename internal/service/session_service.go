package service

import (
	"context"
	"time"

	"tillpoint/internal/apierror"
	"tillpoint/internal/config"
	"tillpoint/internal/dto"
	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"
	"tillpoint/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClosePublisher hands a freshly closed session to the async pipeline
// (summary freeze, report PDF, variance alert). Best effort: a publish
// failure never rolls back the close.
type ClosePublisher interface {
	PublishSessionClosed(ctx context.Context, sessionID uuid.UUID) error
}

type SessionService interface {
	// Open creates an OPEN session on a register. ConflictError when the
	// register already has one; ValidationError when the amount is negative
	// or the register does not resolve to an ACTIVE register the actor may
	// operate.
	Open(ctx context.Context, actor Actor, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	// GetOpenSession resolves the actor's scope (own register vs. whole
	// branch) and returns its open session, or nil when none exists.
	GetOpenSession(ctx context.Context, actor Actor) (*dto.SessionResponse, error)
	// Close reconciles and commits the OPEN→CLOSED transition atomically.
	// The session's register must be within the actor's scope.
	Close(ctx context.Context, actor Actor, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	ReconciliationPreview(ctx context.Context, actor Actor, sessionID uuid.UUID) (*dto.ReconciliationPreview, error)
	Get(ctx context.Context, actor Actor, sessionID uuid.UUID) (*dto.SessionResponse, error)
	History(ctx context.Context, actor Actor, page, limit int) ([]dto.SessionResponse, int64, error)
}

type sessionService struct {
	sessions  repository.SessionRepository
	registers repository.RegisterRepository
	sales     repository.SalesRepository
	cfg       *config.Config
	publisher ClosePublisher
}

func NewSessionService(
	sessions repository.SessionRepository,
	registers repository.RegisterRepository,
	sales repository.SalesRepository,
	cfg *config.Config,
	publisher ClosePublisher,
) SessionService {
	return &sessionService{
		sessions:  sessions,
		registers: registers,
		sales:     sales,
		cfg:       cfg,
		publisher: publisher,
	}
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *sessionService) Open(ctx context.Context, actor Actor, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if req.OpeningAmount.IsNegative() {
		return nil, apierror.NewValidation("opening amount must not be negative")
	}
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, apierror.NewValidation("register_id is not a valid uuid")
	}

	register, err := s.registers.FindByID(ctx, registerID)
	if err != nil {
		if apierror.IsKind(err, apierror.KindNotFound) {
			return nil, apierror.NewValidation("register does not exist")
		}
		return nil, err
	}
	if register.Status != model.RegisterActive {
		return nil, apierror.NewValidation("register is not active")
	}
	if err := s.checkOperable(actor, register); err != nil {
		return nil, err
	}

	// Pre-check for a friendlier error; the partial unique index is the
	// real guard against two operators racing on the same register.
	existing, err := s.sessions.FindOpenByRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.NewConflict("an open session already exists for this register")
	}

	session := &model.CashSession{
		RegisterID:    registerID,
		OperatorID:    actor.OperatorID,
		OpeningAmount: req.OpeningAmount,
		State:         model.SessionOpen,
		OpenedAt:      time.Now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("register_id", registerID.String()).
		Str("operator_id", actor.OperatorID.String()).
		Msg("cash session opened")

	return sessionToResponse(session), nil
}

// checkOperable rejects an operation on a register outside the actor's
// scope: supervising roles reach the whole branch, a cashier only their
// assigned register.
func (s *sessionService) checkOperable(actor Actor, register *model.CashRegister) error {
	if actor.BranchScoped(s.cfg.RolePriority) {
		if register.BranchID != actor.BranchID {
			return apierror.NewValidation("register belongs to another branch")
		}
		return nil
	}
	if actor.RegisterID == nil || *actor.RegisterID != register.ID {
		return apierror.NewValidation("register is not assigned to this operator")
	}
	return nil
}

// checkSessionScope applies the same scope rules an open goes through to an
// existing session, resolved via its register.
func (s *sessionService) checkSessionScope(ctx context.Context, actor Actor, session *model.CashSession) error {
	register, err := s.registers.FindByID(ctx, session.RegisterID)
	if err != nil {
		return err
	}
	return s.checkOperable(actor, register)
}

// ── GetOpenSession ───────────────────────────────────────────────────────────

func (s *sessionService) GetOpenSession(ctx context.Context, actor Actor) (*dto.SessionResponse, error) {
	session, err := s.findOpenForScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	return sessionToResponse(session), nil
}

func (s *sessionService) findOpenForScope(ctx context.Context, actor Actor) (*model.CashSession, error) {
	return scopedOpenSession(ctx, s.sessions, s.cfg, actor)
}

// scopedOpenSession resolves the open session visible to the actor: the whole
// branch for supervising roles, the assigned register otherwise. The open
// invariant is per register, so a cashier sees their register's session even
// when someone else opened it.
func scopedOpenSession(ctx context.Context, sessions repository.SessionRepository, cfg *config.Config, actor Actor) (*model.CashSession, error) {
	return retryRead(ctx, func() (*model.CashSession, error) {
		if actor.BranchScoped(cfg.RolePriority) {
			return sessions.FindOpenByBranch(ctx, actor.BranchID)
		}
		if actor.RegisterID != nil {
			return sessions.FindOpenByRegister(ctx, *actor.RegisterID)
		}
		return sessions.FindOpenByOperator(ctx, actor.OperatorID)
	})
}

// ── Close ────────────────────────────────────────────────────────────────────

func (s *sessionService) Close(ctx context.Context, actor Actor, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	if !req.Confirm {
		return nil, apierror.NewValidation("closing a session is irreversible and requires confirmation")
	}
	if req.CountedAmount.IsNegative() {
		return nil, apierror.NewValidation("counted amount must not be negative")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apierror.NewValidation("session_id is not a valid uuid")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSessionScope(ctx, actor, session); err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, apierror.NewConflict("session is no longer open")
	}

	summary, err := retryRead(ctx, func() (reconcile.SalesSummary, error) {
		return s.sales.SummarizeBySession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	result := reconcile.Reconcile(session.OpeningAmount, summary, req.CountedAmount)

	// A critical deviation demands supervisor observations before closing.
	if result.Severity == reconcile.SeverityCritical && (req.Notes == nil || *req.Notes == "") {
		return nil, apierror.NewValidation("critical variance: supervisor notes are required")
	}

	closedAt := time.Now().UTC()
	record := repository.ClosingRecord{
		ExpectedAmount: result.Expected,
		CountedAmount:  result.Counted,
		Variance:       result.Variance,
		VariancePct:    result.VariancePct,
		Direction:      result.Direction,
		Severity:       result.Severity,
		Notes:          req.Notes,
		ClosedAt:       closedAt,
	}
	// Conditional write: fails with ConflictError when a concurrent close
	// already flipped the state. No partial commit is possible.
	if err := s.sessions.CloseSession(ctx, sessionID, record); err != nil {
		return nil, err
	}

	session.State = model.SessionClosed
	session.ExpectedAmount = &record.ExpectedAmount
	session.CountedAmount = &record.CountedAmount
	session.Variance = &record.Variance
	session.VariancePct = &record.VariancePct
	session.Direction = &record.Direction
	session.Severity = &record.Severity
	session.Notes = req.Notes
	session.ClosedAt = &closedAt

	log.Info().
		Str("session_id", sessionID.String()).
		Str("direction", result.Direction).
		Str("severity", result.Severity).
		Str("variance", result.Variance.String()).
		Msg("cash session closed")

	if s.publisher != nil {
		if err := s.publisher.PublishSessionClosed(ctx, sessionID); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).
				Msg("failed to enqueue close report job")
		}
	}

	return sessionToResponse(session), nil
}

// ── ReconciliationPreview ────────────────────────────────────────────────────

func (s *sessionService) ReconciliationPreview(ctx context.Context, actor Actor, sessionID uuid.UUID) (*dto.ReconciliationPreview, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSessionScope(ctx, actor, session); err != nil {
		return nil, err
	}
	summary, err := retryRead(ctx, func() (reconcile.SalesSummary, error) {
		return s.sales.SummarizeBySession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	preview := &dto.ReconciliationPreview{
		SessionID:      session.ID.String(),
		OpeningAmount:  session.OpeningAmount,
		SalesTotal:     summary.Total,
		ExpectedAmount: reconcile.Expected(session.OpeningAmount, summary),
		State:          session.State,
	}
	if session.State == model.SessionClosed {
		// Closed sessions report the frozen figures, not the live aggregate.
		if session.ExpectedAmount != nil {
			preview.ExpectedAmount = *session.ExpectedAmount
		}
		preview.CountedAmount = session.CountedAmount
		preview.Variance = varianceOf(session)
	}
	return preview, nil
}

// ── Get / History ────────────────────────────────────────────────────────────

func (s *sessionService) Get(ctx context.Context, actor Actor, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSessionScope(ctx, actor, session); err != nil {
		return nil, err
	}
	return sessionToResponse(session), nil
}

func (s *sessionService) History(ctx context.Context, actor Actor, page, limit int) ([]dto.SessionResponse, int64, error) {
	sessions, total, err := s.sessions.ListClosed(ctx, actor.BranchID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, *sessionToResponse(&sessions[i]))
	}
	return out, total, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func sessionToResponse(s *model.CashSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		SessionID:      s.ID.String(),
		RegisterID:     s.RegisterID.String(),
		OperatorID:     s.OperatorID.String(),
		OpeningAmount:  s.OpeningAmount,
		ExpectedAmount: s.ExpectedAmount,
		CountedAmount:  s.CountedAmount,
		Variance:       varianceOf(s),
		Notes:          s.Notes,
		State:          s.State,
		OpenedAt:       s.OpenedAt.UTC().Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.UTC().Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func varianceOf(s *model.CashSession) *dto.VarianceResponse {
	if s.Variance == nil || s.VariancePct == nil || s.Direction == nil || s.Severity == nil {
		return nil
	}
	return &dto.VarianceResponse{
		Amount:     *s.Variance,
		Percentage: *s.VariancePct,
		Direction:  *s.Direction,
		Severity:   *s.Severity,
	}
}
