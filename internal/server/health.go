package server

import (
	"context"

	"github.com/rlagura/transferbot/internal/ledger"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// LedgerHealthService verifies ledger connectivity as part of health checks.
type LedgerHealthService struct {
	Client ledger.Client
}

// Probe implements the HealthService interface.
func (s LedgerHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Probe(ctx)
}
