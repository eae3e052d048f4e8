package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/store"
)

// maxIDAttempts bounds the collision retry loop during claim creation.
const maxIDAttempts = 5

// LedgerRecorder persists approved claims to the external ledger.
type LedgerRecorder interface {
	RecordApproval(ctx context.Context, claim domain.Claim) error
}

// Actor identifies the chat member performing an operation.
type Actor struct {
	UserID int64
	Handle string
}

// ApproverSet is the authorized-approver lookup supplied per call by the
// gateway, built from the chat's current administrators.
type ApproverSet map[int64]struct{}

// Contains reports whether the given user may decide claims.
func (a ApproverSet) Contains(userID int64) bool {
	_, ok := a[userID]
	return ok
}

// CreateClaimInput carries everything the gateway resolved for a new claim.
type CreateClaimInput struct {
	EvidenceRef    domain.MessageRef
	EvidenceKind   domain.EvidenceKind
	FromAgent      string
	Claimant       string
	ClaimantUserID int64
	ThreadRef      int
}

// ApproveResult is the outcome of a successful approval. LedgerErr is set when
// the decision committed but the ledger append failed; the claim stays
// approved either way.
type ApproveResult struct {
	Claim     domain.Claim
	Card      Card
	LedgerErr error
}

// ClaimService governs the claim lifecycle: creation, approval, and the
// two-step rejection dialogue. Any chat member may create a claim; only
// members of the caller-supplied approver set may decide one.
type ClaimService struct {
	store  *store.Store
	ids    *IDGenerator
	ledger LedgerRecorder
	logger *slog.Logger
	loc    *time.Location
	nowFn  func() time.Time
}

// NewClaimService constructs a ClaimService.
func NewClaimService(st *store.Store, ids *IDGenerator, ledger LedgerRecorder, logger *slog.Logger, loc *time.Location) *ClaimService {
	return &ClaimService{
		store:  st,
		ids:    ids,
		ledger: ledger,
		logger: logger,
		loc:    loc,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *ClaimService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// CreateClaim validates the request, allocates an ID, and registers a PENDING
// claim. The returned card must be posted by the caller, followed by exactly
// one AttachCardRef with the posted message's ref.
func (s *ClaimService) CreateClaim(_ context.Context, in CreateClaimInput) (domain.Claim, Card, error) {
	if in.EvidenceRef == 0 {
		return domain.Claim{}, Card{}, &domain.ValidationError{Reason: "Please reply to the screenshot with /transfer."}
	}
	if in.EvidenceKind != domain.EvidencePhoto && in.EvidenceKind != domain.EvidenceDocument {
		return domain.Claim{}, Card{}, &domain.ValidationError{Reason: "Please reply to a screenshot message with /transfer."}
	}
	fromAgent := strings.TrimSpace(in.FromAgent)
	if fromAgent == "" {
		return domain.Claim{}, Card{}, &domain.ValidationError{Reason: "Usage: /transfer @fromAgent"}
	}
	if !strings.HasPrefix(fromAgent, "@") {
		return domain.Claim{}, Card{}, &domain.ValidationError{Reason: "Please specify the agent with @ (e.g., /transfer @agentName)"}
	}

	claim := domain.Claim{
		Claimant:         in.Claimant,
		ClaimantUserID:   in.ClaimantUserID,
		TransferredFrom:  fromAgent,
		Status:           domain.StatusPending,
		CreatedAt:        s.nowFn().In(s.loc),
		SourceMessageRef: in.EvidenceRef,
		EvidenceKind:     in.EvidenceKind,
		ThreadRef:        in.ThreadRef,
	}

	for attempt := 1; ; attempt++ {
		claim.ID = s.ids.Generate()
		err := s.store.Register(claim)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateID) || attempt >= maxIDAttempts {
			return domain.Claim{}, Card{}, fmt.Errorf("allocate claim ID: %w", err)
		}
	}

	s.logger.Info("claim created", "claim_id", claim.ID, "claimant", claim.Claimant, "from_agent", claim.TransferredFrom)
	return claim, pendingCard(claim), nil
}

// AttachCardRef completes registration once the claim card has been posted.
func (s *ClaimService) AttachCardRef(id string, ref domain.MessageRef) error {
	if !s.store.AttachCard(id, ref) {
		return domain.ErrClaimNotFound
	}
	return nil
}

// Approve finalizes a pending claim and records it in the ledger before
// returning. A ledger failure does not roll back the decision: the claim is
// committed in memory, the card content reflects the approval, and LedgerErr
// carries the failure for the caller to report.
func (s *ClaimService) Approve(ctx context.Context, id string, actor Actor, approvers ApproverSet) (ApproveResult, error) {
	if _, ok := s.store.Get(id); !ok {
		return ApproveResult{}, domain.ErrClaimNotFound
	}
	if !approvers.Contains(actor.UserID) {
		return ApproveResult{}, domain.ErrUnauthorized
	}

	claim, ok := s.store.Resolve(id, store.Decision{
		Status:    domain.StatusApproved,
		DecidedBy: actor.Handle,
		DecidedAt: s.nowFn().In(s.loc),
	})
	if !ok {
		// Lost the decision race after the authorization check.
		return ApproveResult{}, domain.ErrClaimNotFound
	}

	result := ApproveResult{Claim: claim, Card: approvedCard(claim)}
	if err := s.ledger.RecordApproval(ctx, claim); err != nil {
		s.logger.Error("ledger record failed for approved claim", "claim_id", claim.ID, "error", err)
		result.LedgerErr = err
		return result, nil
	}

	s.logger.Info("claim approved", "claim_id", claim.ID, "decided_by", actor.Handle)
	return result, nil
}

// BeginReject opens the rejection dialogue for a pending claim. The claim
// itself stays PENDING, still approvable by someone else, until the reason
// arrives; only a PendingRejection keyed by the acting user is registered.
func (s *ClaimService) BeginReject(_ context.Context, id string, actor Actor, approvers ApproverSet) (RejectionPrompt, error) {
	claim, ok := s.store.Get(id)
	if !ok {
		return RejectionPrompt{}, domain.ErrClaimNotFound
	}
	if !approvers.Contains(actor.UserID) {
		return RejectionPrompt{}, domain.ErrUnauthorized
	}

	s.store.PutRejection(domain.PendingRejection{
		UserID:       actor.UserID,
		ClaimID:      claim.ID,
		ClaimCardRef: claim.ClaimCardRef,
		Claim:        claim,
	})

	s.logger.Info("rejection dialogue opened", "claim_id", claim.ID, "approver", actor.Handle)
	return RejectionPrompt{
		ClaimID: claim.ID,
		CardRef: claim.ClaimCardRef,
		Text:    fmt.Sprintf("Leader %s, please reply here with a short rejection reason for %s.", actor.Handle, claim.ID),
	}, nil
}
