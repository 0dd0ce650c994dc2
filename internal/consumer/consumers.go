package consumer

import (
	"context"
)

// OutboxProcessor processes one batch of pending events
type OutboxProcessor interface {
	Process(ctx context.Context) (int, error)
}

// FundsReleaser moves matured locked funds to available
type FundsReleaser interface {
	ReleaseLockedFunds(ctx context.Context) (int, error)
}

// NewOutboxConsumer polls the outbox
func NewOutboxConsumer(p OutboxProcessor, cfg SupervisorConfig) *Supervisor {
	return NewSupervisor("outbox-processor", p.Process, cfg)
}

// NewWalletReleaseConsumer periodically releases locked wallet funds
func NewWalletReleaseConsumer(r FundsReleaser, cfg SupervisorConfig) *Supervisor {
	return NewSupervisor("wallet-release", r.ReleaseLockedFunds, cfg)
}

// Group starts and stops several supervisors together
type Group []*Supervisor

// Start starts every supervisor
func (g Group) Start(ctx context.Context) {
	for _, s := range g {
		s.Start(ctx)
	}
}

// Stop stops every supervisor and waits for all of them
func (g Group) Stop() {
	for _, s := range g {
		s.Stop()
	}
}
