package service_test

import (
	"context"
	"sync"
	"testing"

	"tillpoint/internal/apierror"
	"tillpoint/internal/dto"
	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"
	"tillpoint/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sessions  *fakeSessionRepo
	registers *fakeRegisterRepo
	sales     *fakeSalesRepo
	publisher *fakePublisher
	svc       service.SessionService

	branchID   uuid.UUID
	registerID uuid.UUID
	cashier    service.Actor
	supervisor service.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registers := newFakeRegisterRepo()
	sessions := newFakeSessionRepo(registers)
	sales := newFakeSalesRepo()
	publisher := &fakePublisher{}

	branchID := uuid.New()
	operatorID := uuid.New()
	registerID := registers.add(model.CashRegister{
		Name:               "Till 1",
		BranchID:           branchID,
		AssignedOperatorID: &operatorID,
		Status:             model.RegisterActive,
	})

	return &fixture{
		sessions:   sessions,
		registers:  registers,
		sales:      sales,
		publisher:  publisher,
		svc:        service.NewSessionService(sessions, registers, sales, testConfig(), publisher),
		branchID:   branchID,
		registerID: registerID,
		cashier: service.Actor{
			OperatorID: operatorID,
			Roles:      []string{service.RoleCashier},
			BranchID:   branchID,
			RegisterID: &registerID,
		},
		supervisor: service.Actor{
			OperatorID: uuid.New(),
			Roles:      []string{service.RoleSupervisor},
			BranchID:   branchID,
		},
	}
}

func (f *fixture) open(t *testing.T, amount string) *dto.SessionResponse {
	t.Helper()
	resp, err := f.svc.Open(context.Background(), f.cashier, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return resp
}

// ── Open ─────────────────────────────────────────────────────────────────────

func TestOpenSession(t *testing.T) {
	f := newFixture(t)

	resp := f.open(t, "5000")

	assert.Equal(t, model.SessionOpen, resp.State)
	assert.Equal(t, f.registerID.String(), resp.RegisterID)
	assert.Equal(t, f.cashier.OperatorID.String(), resp.OperatorID)
	assert.Equal(t, "5000", resp.OpeningAmount.String())
	assert.Nil(t, resp.Variance)
	assert.Nil(t, resp.ClosedAt)
}

func TestOpenSessionNegativeAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(context.Background(), f.cashier, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.NewFromInt(-10),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	// No record created
	open, err := f.sessions.FindOpenByRegister(context.Background(), f.registerID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestOpenSessionUnknownRegister(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(context.Background(), f.cashier, dto.OpenSessionRequest{
		RegisterID:    uuid.NewString(),
		OpeningAmount: decimal.NewFromInt(100),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestOpenSessionInactiveRegister(t *testing.T) {
	f := newFixture(t)
	operatorID := f.cashier.OperatorID
	suspendedID := f.registers.add(model.CashRegister{
		Name:               "Till 2",
		BranchID:           f.branchID,
		AssignedOperatorID: &operatorID,
		Status:             model.RegisterSuspended,
	})

	_, err := f.svc.Open(context.Background(), f.cashier, dto.OpenSessionRequest{
		RegisterID:    suspendedID.String(),
		OpeningAmount: decimal.NewFromInt(100),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestOpenSessionDuplicate(t *testing.T) {
	f := newFixture(t)
	f.open(t, "5000")

	// Supervisor tries to open the same register
	_, err := f.svc.Open(context.Background(), f.supervisor, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.NewFromInt(2000),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindConflict))
}

func TestOpenSessionUnassignedCashier(t *testing.T) {
	f := newFixture(t)
	stranger := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleCashier},
		BranchID:   f.branchID,
	}

	_, err := f.svc.Open(context.Background(), stranger, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.NewFromInt(100),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestOpenSessionOtherBranchSupervisor(t *testing.T) {
	f := newFixture(t)
	foreign := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleSupervisor},
		BranchID:   uuid.New(),
	}

	_, err := f.svc.Open(context.Background(), foreign, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.NewFromInt(100),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

// Randomized concurrent opens on one register: the store-level uniqueness
// guard must let exactly one through.
func TestOpenSessionConcurrentRace(t *testing.T) {
	f := newFixture(t)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Open(context.Background(), f.supervisor, dto.OpenSessionRequest{
				RegisterID:    f.registerID.String(),
				OpeningAmount: decimal.NewFromInt(int64(i * 100)),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apierror.IsKind(err, apierror.KindConflict))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one open must win the race")
}

// ── GetOpenSession ───────────────────────────────────────────────────────────

func TestGetOpenSessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "3000")

	current, err := f.svc.GetOpenSession(context.Background(), f.cashier)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, opened.SessionID, current.SessionID)
	assert.Equal(t, opened.RegisterID, current.RegisterID)
	assert.Equal(t, opened.OperatorID, current.OperatorID)
	assert.Equal(t, opened.OpeningAmount.String(), current.OpeningAmount.String())
}

func TestGetOpenSessionNone(t *testing.T) {
	f := newFixture(t)

	current, err := f.svc.GetOpenSession(context.Background(), f.cashier)
	require.NoError(t, err)
	assert.Nil(t, current, "no session is an expected state, not a failure")
}

func TestGetOpenSessionBranchScope(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "1000")

	// The supervisor did not open it but supervises the branch.
	current, err := f.svc.GetOpenSession(context.Background(), f.supervisor)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, opened.SessionID, current.SessionID)
}

func TestGetOpenSessionOnAssignedRegister(t *testing.T) {
	f := newFixture(t)

	// The supervisor opens on the cashier's register. The open invariant is
	// per register, so the cashier must see that session as their current
	// one rather than being redirected to open a second.
	opened, err := f.svc.Open(context.Background(), f.supervisor, dto.OpenSessionRequest{
		RegisterID:    f.registerID.String(),
		OpeningAmount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	current, err := f.svc.GetOpenSession(context.Background(), f.cashier)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, opened.SessionID, current.SessionID)
}

// ── Close ────────────────────────────────────────────────────────────────────

func TestCloseBalanced(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	sessionID := uuid.MustParse(opened.SessionID)
	f.sales.setSummary(sessionID, "250.50", 7)

	resp, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.RequireFromString("350.50"),
		Confirm:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.SessionClosed, resp.State)
	require.NotNil(t, resp.ExpectedAmount)
	assert.Equal(t, "350.5", resp.ExpectedAmount.String())
	require.NotNil(t, resp.Variance)
	assert.True(t, resp.Variance.Amount.IsZero())
	assert.Equal(t, reconcile.DirectionBalanced, resp.Variance.Direction)
	assert.NotNil(t, resp.ClosedAt)

	// The async pipeline was notified exactly once.
	assert.Equal(t, []uuid.UUID{sessionID}, f.publisher.closed)
}

func TestCloseShortageRequiresNotes(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	sessionID := uuid.MustParse(opened.SessionID)
	f.sales.setSummary(sessionID, "250.50", 3)

	// -50.50 on 350.50 expected is > 5% — critical, notes demanded.
	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.RequireFromString("300.00"),
		Confirm:       true,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	notes := "drawer short after evening shift"
	resp, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.RequireFromString("300.00"),
		Notes:         &notes,
		Confirm:       true,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Variance)
	assert.Equal(t, "-50.5", resp.Variance.Amount.String())
	assert.Equal(t, reconcile.DirectionShortage, resp.Variance.Direction)
	assert.Equal(t, reconcile.SeverityCritical, resp.Variance.Severity)
}

func TestCloseWithoutConfirmation(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	current, _ := f.svc.GetOpenSession(context.Background(), f.cashier)
	assert.NotNil(t, current, "session must remain open")
}

func TestCloseNegativeCounted(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(-1),
		Confirm:       true,
	})

	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestCloseUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     uuid.NewString(),
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})

	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestDoubleClose(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	first, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	require.NoError(t, err)

	_, err = f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(999),
		Confirm:       true,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindConflict))

	// The persisted record is untouched by the failed second close.
	stored, err := f.sessions.FindByID(context.Background(), uuid.MustParse(opened.SessionID))
	require.NoError(t, err)
	assert.Equal(t, first.CountedAmount.String(), stored.CountedAmount.String())
	assert.Equal(t, *first.ClosedAt, stored.ClosedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
}

func TestCloseConcurrentRace(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
				SessionID:     opened.SessionID,
				CountedAmount: decimal.NewFromInt(100),
				Confirm:       true,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apierror.IsKind(err, apierror.KindConflict))
		}
	}
	assert.Equal(t, 1, succeeded, "at most one successful close per session")
}

// Scope applies to closing, not just opening: an actor from another branch
// holds a valid token yet must not be able to close this branch's session.
func TestCloseOutsideActorScope(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	foreignCashier := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleCashier},
		BranchID:   uuid.New(),
	}
	_, err := f.svc.Close(context.Background(), foreignCashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	foreignSupervisor := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleSupervisor},
		BranchID:   uuid.New(),
	}
	_, err = f.svc.Close(context.Background(), foreignSupervisor, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	// The session is untouched by either attempt.
	stored, err := f.sessions.FindByID(context.Background(), uuid.MustParse(opened.SessionID))
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, stored.State)
}

func TestCloseBySupervisorSameBranch(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")

	resp, err := f.svc.Close(context.Background(), f.supervisor, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, resp.State)
}

func TestCloseRetriesTransientSummaryReads(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	f.sales.failures = 2 // first two aggregate reads fail, third succeeds

	resp, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, resp.State)
}

// ── ReconciliationPreview ────────────────────────────────────────────────────

func TestReconciliationPreviewOpen(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	sessionID := uuid.MustParse(opened.SessionID)
	f.sales.setSummary(sessionID, "80.25", 2)

	preview, err := f.svc.ReconciliationPreview(context.Background(), f.supervisor, sessionID)
	require.NoError(t, err)

	assert.Equal(t, "180.25", preview.ExpectedAmount.String())
	assert.Nil(t, preview.CountedAmount)
	assert.Nil(t, preview.Variance)
	assert.Equal(t, model.SessionOpen, preview.State)
}

func TestReconciliationPreviewClosed(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	sessionID := uuid.MustParse(opened.SessionID)
	f.sales.setSummary(sessionID, "50.00", 1)

	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.RequireFromString("150.00"),
		Confirm:       true,
	})
	require.NoError(t, err)

	preview, err := f.svc.ReconciliationPreview(context.Background(), f.supervisor, sessionID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionClosed, preview.State)
	require.NotNil(t, preview.CountedAmount)
	assert.Equal(t, "150", preview.CountedAmount.String())
	require.NotNil(t, preview.Variance)
	assert.True(t, preview.Variance.Amount.IsZero())
}

func TestReconciliationPreviewOutsideBranch(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	foreign := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleSupervisor},
		BranchID:   uuid.New(),
	}

	_, err := f.svc.ReconciliationPreview(context.Background(), foreign, uuid.MustParse(opened.SessionID))
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

// ── Get ──────────────────────────────────────────────────────────────────────

func TestGetSessionOutsideBranch(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	foreign := service.Actor{
		OperatorID: uuid.New(),
		Roles:      []string{service.RoleCashier},
		BranchID:   uuid.New(),
	}

	resp, err := f.svc.Get(context.Background(), f.supervisor, uuid.MustParse(opened.SessionID))
	require.NoError(t, err)
	assert.Equal(t, opened.SessionID, resp.SessionID)

	_, err = f.svc.Get(context.Background(), foreign, uuid.MustParse(opened.SessionID))
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

// ── History ──────────────────────────────────────────────────────────────────

func TestHistoryListsClosedSessions(t *testing.T) {
	f := newFixture(t)
	opened := f.open(t, "100.00")
	_, err := f.svc.Close(context.Background(), f.cashier, dto.CloseSessionRequest{
		SessionID:     opened.SessionID,
		CountedAmount: decimal.NewFromInt(100),
		Confirm:       true,
	})
	require.NoError(t, err)

	sessions, total, err := f.svc.History(context.Background(), f.supervisor, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.SessionClosed, sessions[0].State)
}
