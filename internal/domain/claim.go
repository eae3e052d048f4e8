package domain

import "time"

// ClaimStatus tracks where a claim sits in its lifecycle. Transitions are
// monotonic: a claim never returns to PENDING once decided.
type ClaimStatus string

const (
	StatusPending  ClaimStatus = "PENDING"
	StatusApproved ClaimStatus = "APPROVED"
	StatusRejected ClaimStatus = "REJECTED"
)

// EvidenceKind classifies the message a claim was filed against. It decides
// whether the claim card is posted as a photo caption or as plain text.
type EvidenceKind string

const (
	EvidenceNone     EvidenceKind = ""
	EvidencePhoto    EvidenceKind = "photo"
	EvidenceDocument EvidenceKind = "document"
)

// MessageRef identifies a message within the target chat.
type MessageRef int

// Claim is the identity and audit record of one transfer-claim workflow.
type Claim struct {
	ID               string
	Claimant         string
	ClaimantUserID   int64
	TransferredFrom  string
	Status           ClaimStatus
	CreatedAt        time.Time
	SourceMessageRef MessageRef
	ClaimCardRef     MessageRef
	EvidenceKind     EvidenceKind
	DecidedBy        string
	DecidedAt        time.Time
	RejectionReason  string
	ThreadRef        int
}

// PendingRejection correlates an approver who pressed Reject with the claim
// they are rejecting, until their free-text reason arrives. Entries never
// expire; an approver who walks away simply leaves the claim approvable.
type PendingRejection struct {
	UserID       int64
	ClaimID      string
	ClaimCardRef MessageRef
	Claim        Claim
}
