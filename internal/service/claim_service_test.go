package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/store"
)

var manila = time.FixedZone("PHT", 8*60*60)

type stubLedger struct {
	mu     sync.Mutex
	claims []domain.Claim
	err    error
}

func (s *stubLedger) RecordApproval(_ context.Context, claim domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.claims = append(s.claims, claim)
	return nil
}

func (s *stubLedger) recorded() []domain.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Claim(nil), s.claims...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(ledger LedgerRecorder) (*ClaimService, *store.Store) {
	st := store.New()
	ids := NewIDGenerator(manila)
	svc := NewClaimService(st, ids, ledger, discardLogger(), manila)
	svc.WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, manila)
	})
	return svc, st
}

func validInput() CreateClaimInput {
	return CreateClaimInput{
		EvidenceRef:    42,
		EvidenceKind:   domain.EvidencePhoto,
		FromAgent:      "@bob",
		Claimant:       "@alice",
		ClaimantUserID: 11,
	}
}

func approvers(ids ...int64) ApproverSet {
	set := make(ApproverSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestCreateClaim_Validation(t *testing.T) {
	svc, _ := newTestService(&stubLedger{})

	tests := []struct {
		name   string
		mutate func(*CreateClaimInput)
		want   string
	}{
		{
			name:   "missing reply target",
			mutate: func(in *CreateClaimInput) { in.EvidenceRef = 0 },
			want:   "Please reply to the screenshot with /transfer.",
		},
		{
			name:   "reply is not evidence",
			mutate: func(in *CreateClaimInput) { in.EvidenceKind = domain.EvidenceNone },
			want:   "Please reply to a screenshot message with /transfer.",
		},
		{
			name:   "missing agent",
			mutate: func(in *CreateClaimInput) { in.FromAgent = "  " },
			want:   "Usage: /transfer @fromAgent",
		},
		{
			name:   "agent without @ prefix",
			mutate: func(in *CreateClaimInput) { in.FromAgent = "bob" },
			want:   "Please specify the agent with @ (e.g., /transfer @agentName)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, _, err := svc.CreateClaim(context.Background(), in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Reason != tt.want {
				t.Errorf("reason mismatch:\nwant %q\ngot  %q", tt.want, verr.Reason)
			}
		})
	}
}

func TestCreateClaim_RegistersPending(t *testing.T) {
	svc, st := newTestService(&stubLedger{})

	claim, card, err := svc.CreateClaim(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if claim.Status != domain.StatusPending {
		t.Errorf("expected PENDING, got %s", claim.Status)
	}
	if !strings.HasPrefix(claim.ID, "TR-20250101-") {
		t.Errorf("unexpected claim id %s", claim.ID)
	}
	if claim.Claimant != "@alice" || claim.TransferredFrom != "@bob" {
		t.Errorf("unexpected parties: %+v", claim)
	}

	stored, ok := st.Get(claim.ID)
	if !ok {
		t.Fatal("expected claim in pending store")
	}
	if stored.SourceMessageRef != 42 || stored.EvidenceKind != domain.EvidencePhoto {
		t.Errorf("evidence not carried: %+v", stored)
	}

	if !strings.Contains(card.Text, claim.ID) || !strings.Contains(card.Text, "Transfer Claim") {
		t.Errorf("card text missing claim details: %q", card.Text)
	}
	if len(card.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(card.Actions))
	}
	if card.Actions[0].Data != "approve:"+claim.ID || card.Actions[1].Data != "reject:"+claim.ID {
		t.Errorf("unexpected action data: %+v", card.Actions)
	}
}

func TestAttachCardRef(t *testing.T) {
	svc, st := newTestService(&stubLedger{})

	claim, _, err := svc.CreateClaim(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := svc.AttachCardRef(claim.ID, 500); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	stored, _ := st.Get(claim.ID)
	if stored.ClaimCardRef != 500 {
		t.Errorf("expected card ref 500, got %d", stored.ClaimCardRef)
	}

	if err := svc.AttachCardRef("TR-20250101-ZZZZZZ", 500); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestApprove_Unauthorized(t *testing.T) {
	svc, st := newTestService(&stubLedger{})

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())

	_, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 12, Handle: "@mallory"}, approvers(99))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	stored, ok := st.Get(claim.ID)
	if !ok || stored.Status != domain.StatusPending {
		t.Error("claim must remain pending and unchanged after unauthorized attempt")
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _ := newTestService(&stubLedger{})

	_, err := svc.Approve(context.Background(), "TR-20250101-ZZZZZZ", Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
	if !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestApprove_FinalizesAndRecords(t *testing.T) {
	ledger := &stubLedger{}
	svc, st := newTestService(ledger)

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())
	if err := svc.AttachCardRef(claim.ID, 500); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	result, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.LedgerErr != nil {
		t.Fatalf("unexpected ledger error: %v", result.LedgerErr)
	}

	if result.Claim.Status != domain.StatusApproved {
		t.Errorf("expected APPROVED, got %s", result.Claim.Status)
	}
	if result.Claim.DecidedBy != "@leader1" {
		t.Errorf("expected decidedBy @leader1, got %s", result.Claim.DecidedBy)
	}
	if !strings.Contains(result.Card.Text, "APPROVED") {
		t.Errorf("card not rendered as approved: %q", result.Card.Text)
	}

	if _, ok := st.Get(claim.ID); ok {
		t.Error("expected claim evicted from pending store")
	}

	recorded := ledger.recorded()
	if len(recorded) != 1 || recorded[0].ID != claim.ID {
		t.Fatalf("expected one ledger record for %s, got %+v", claim.ID, recorded)
	}

	// A second decision of either kind reads as already processed.
	if _, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99)); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound on second approve, got %v", err)
	}
	if _, err := svc.BeginReject(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99)); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound on reject after approve, got %v", err)
	}
}

func TestApprove_LedgerFailureKeepsDecision(t *testing.T) {
	ledger := &stubLedger{err: errors.New("sheets unavailable")}
	svc, st := newTestService(ledger)

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())

	result, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.LedgerErr == nil {
		t.Fatal("expected LedgerErr to be set")
	}
	if result.Claim.Status != domain.StatusApproved {
		t.Errorf("decision must stand despite ledger failure, got %s", result.Claim.Status)
	}
	if _, ok := st.Get(claim.ID); ok {
		t.Error("claim must stay evicted despite ledger failure")
	}
}

func TestApprove_ConcurrentSingleWinner(t *testing.T) {
	ledger := &stubLedger{}
	svc, _ := newTestService(ledger)

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins, notFound := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrClaimNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || notFound != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d not-found", wins, notFound)
	}
	if len(ledger.recorded()) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(ledger.recorded()))
	}
}

func TestBeginReject_KeepsClaimApprovable(t *testing.T) {
	svc, st := newTestService(&stubLedger{})

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())
	if err := svc.AttachCardRef(claim.ID, 500); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	prompt, err := svc.BeginReject(context.Background(), claim.ID, Actor{UserID: 99, Handle: "@leader1"}, approvers(99))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if prompt.CardRef != 500 {
		t.Errorf("expected prompt addressed to card 500, got %d", prompt.CardRef)
	}
	if !strings.Contains(prompt.Text, claim.ID) || !strings.Contains(prompt.Text, "@leader1") {
		t.Errorf("unexpected prompt text: %q", prompt.Text)
	}

	// The claim stays PENDING until a reason arrives, and another approver can
	// still win it.
	stored, ok := st.Get(claim.ID)
	if !ok || stored.Status != domain.StatusPending {
		t.Fatal("claim must remain pending while the reason is outstanding")
	}
	if _, err := svc.Approve(context.Background(), claim.ID, Actor{UserID: 98, Handle: "@leader2"}, approvers(98, 99)); err != nil {
		t.Fatalf("expected concurrent approve to succeed, got %v", err)
	}
}

func TestBeginReject_Unauthorized(t *testing.T) {
	svc, st := newTestService(&stubLedger{})

	claim, _, _ := svc.CreateClaim(context.Background(), validInput())

	_, err := svc.BeginReject(context.Background(), claim.ID, Actor{UserID: 12, Handle: "@mallory"}, approvers(99))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, ok := st.Rejection(12); ok {
		t.Error("no pending rejection may be registered for unauthorized actors")
	}
}
