package service

import (
	"context"

	"tillpoint/internal/apierror"
	"tillpoint/internal/config"
	"tillpoint/internal/dto"
	"tillpoint/internal/model"
	"tillpoint/internal/repository"
)

// GuardService decides, before the routing layer enters a sale workflow,
// whether the actor may proceed and where to send them otherwise. Decisions
// are pure reads of the latest store truth: nothing is cached across
// navigation attempts, because another actor may open or close the shared
// branch session at any time.
type GuardService interface {
	CanEnter(ctx context.Context, actor Actor, requirement string) (*dto.GuardDecision, error)
	// OperableRegisters resolves the set of ACTIVE registers the actor is
	// entitled to operate.
	OperableRegisters(ctx context.Context, actor Actor) ([]model.CashRegister, error)
}

type guardService struct {
	sessions  repository.SessionRepository
	registers repository.RegisterRepository
	cfg       *config.Config
}

func NewGuardService(
	sessions repository.SessionRepository,
	registers repository.RegisterRepository,
	cfg *config.Config,
) GuardService {
	return &guardService{sessions: sessions, registers: registers, cfg: cfg}
}

func (g *guardService) CanEnter(ctx context.Context, actor Actor, requirement string) (*dto.GuardDecision, error) {
	if requirement != dto.RequireOpen && requirement != dto.RequireClosed {
		return nil, apierror.NewValidation("unknown workflow requirement")
	}

	operable, err := g.OperableRegisters(ctx, actor)
	if err != nil {
		return nil, err
	}
	// No operable register: the cash workflow is unreachable for this actor.
	if len(operable) == 0 {
		return deny(dto.TargetHome, nil), nil
	}

	open, err := scopedOpenSession(ctx, g.sessions, g.cfg, actor)
	if err != nil {
		return nil, err
	}

	switch requirement {
	case dto.RequireOpen:
		if open == nil {
			return deny(dto.TargetOpenSession, nil), nil
		}
	case dto.RequireClosed:
		if open != nil {
			return deny(dto.TargetCheckout, open), nil
		}
	}

	decision := &dto.GuardDecision{Allowed: true, RolePriorityVersion: config.RolePriorityVersion}
	if open != nil {
		id := open.ID.String()
		decision.OpenSessionID = &id
	}
	return decision, nil
}

func deny(target string, open *model.CashSession) *dto.GuardDecision {
	decision := &dto.GuardDecision{
		Allowed:             false,
		RedirectTarget:      target,
		RolePriorityVersion: config.RolePriorityVersion,
	}
	if open != nil {
		id := open.ID.String()
		decision.OpenSessionID = &id
	}
	return decision
}

func (g *guardService) OperableRegisters(ctx context.Context, actor Actor) ([]model.CashRegister, error) {
	regs, err := retryRead(ctx, func() ([]model.CashRegister, error) {
		if actor.BranchScoped(g.cfg.RolePriority) {
			return g.registers.ListByBranch(ctx, actor.BranchID)
		}
		return g.registers.ListByOperator(ctx, actor.OperatorID)
	})
	if err != nil {
		return nil, err
	}

	active := regs[:0]
	for _, r := range regs {
		if r.Status == model.RegisterActive {
			active = append(active, r)
		}
	}
	return active, nil
}
