package service

import (
	"context"
	"testing"
	"time"

	"github.com/rlagura/transferbot/internal/ledger"
	"github.com/rlagura/transferbot/internal/store"
)

// TestApprove_WritesThroughLedgerSyncer runs the approval path against the
// real queue-backed syncer over an in-memory sheet client, checking the exact
// rows an approval produces.
func TestApprove_WritesThroughLedgerSyncer(t *testing.T) {
	mem := ledger.NewMemoryClient()
	mem.Seed("Transfer summary", [][]any{{"Date", "Claimant", "Count", "Generated at"}})

	syncer, err := ledger.NewSyncer(mem, manila, discardLogger(), ledger.SyncerOptions{
		LedgerSheet:  "Transfer chat",
		SummarySheet: "Transfer summary",
	})
	if err != nil {
		t.Fatalf("create syncer: %v", err)
	}
	syncer.WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, manila)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := syncer.Run(ctx); err != nil {
			t.Errorf("syncer run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-syncer.Running()

	st := store.New()
	svc := NewClaimService(st, NewIDGenerator(manila), syncer, discardLogger(), manila)
	svc.WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, manila)
	})

	claim, _, err := svc.CreateClaim(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if err := svc.AttachCardRef(claim.ID, 500); err != nil {
		t.Fatalf("attach card: %v", err)
	}

	result, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.LedgerErr != nil {
		t.Fatalf("unexpected ledger error: %v", result.LedgerErr)
	}

	rows := mem.Rows("Transfer chat")
	if len(rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(rows))
	}
	want := []any{claim.ID, "2025-01-01 12:00:00", "2025-01-01", "@alice", "@bob", "@leader1"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("ledger cell %d mismatch: want %v got %v", i, cell, rows[0][i])
		}
	}

	summary := mem.Rows("Transfer summary")
	if len(summary) != 2 {
		t.Fatalf("expected header plus 1 summary row, got %d", len(summary))
	}
	if summary[1][0] != "2025-01-01" || summary[1][1] != "@alice" || summary[1][2] != 1 {
		t.Errorf("unexpected summary row: %v", summary[1])
	}
}
