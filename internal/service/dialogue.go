package service

import (
	"context"
	"strings"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/store"
)

// ReasonReply is a free-text message that may complete a rejection dialogue.
type ReasonReply struct {
	RepliedToRef  domain.MessageRef
	RepliedToText string
	Text          string
}

// ReasonOutcome is a completed rejection: the finalized claim and the card
// content to render in its place.
type ReasonOutcome struct {
	Claim domain.Claim
	Card  Card
}

// SubmitReason matches a free-text reply against the sender's pending
// rejection, if any. Ordinary chat traffic flows through here constantly, so
// every non-match returns (nil, nil) and must stay silent: no pending
// rejection for the sender, not a reply, or a reply targeting something else.
//
// A reply matches when it targets the stored claim-card message. As a legacy
// fallback for cards re-rendered since the prompt, it also matches when the
// replied-to text contains the claim ID literal.
func (s *ClaimService) SubmitReason(_ context.Context, actor Actor, reply ReasonReply) (*ReasonOutcome, error) {
	pr, ok := s.store.Rejection(actor.UserID)
	if !ok {
		return nil, nil
	}
	if reply.RepliedToRef == 0 {
		return nil, nil
	}

	matched := reply.RepliedToRef == pr.ClaimCardRef ||
		(reply.RepliedToText != "" && strings.Contains(reply.RepliedToText, pr.ClaimID))
	if !matched {
		return nil, nil
	}

	// The reply belongs to this dialogue; it consumes the pending rejection
	// whether or not the claim is still decidable.
	s.store.DropRejection(actor.UserID)

	claim, resolved := s.store.Resolve(pr.ClaimID, store.Decision{
		Status:    domain.StatusRejected,
		DecidedBy: actor.Handle,
		DecidedAt: s.nowFn().In(s.loc),
		Reason:    reply.Text,
	})
	if !resolved {
		// Someone approved the claim while the reason was being typed.
		return nil, domain.ErrClaimNotFound
	}

	s.logger.Info("claim rejected", "claim_id", claim.ID, "decided_by", actor.Handle)
	return &ReasonOutcome{Claim: claim, Card: rejectedCard(claim)}, nil
}
