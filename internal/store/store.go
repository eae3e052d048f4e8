package store

import (
	"errors"
	"sync"
	"time"

	"github.com/rlagura/transferbot/internal/domain"
)

// ErrDuplicateID indicates a claim with the same ID is already registered.
var ErrDuplicateID = errors.New("claim ID already registered")

// Decision carries the fields applied to a claim when it leaves PENDING.
type Decision struct {
	Status    domain.ClaimStatus
	DecidedBy string
	DecidedAt time.Time
	Reason    string
}

// Store owns every pending Claim and PendingRejection for the process
// lifetime. All reads return snapshots; all status transitions go through
// Resolve under the store lock, so once a claim leaves PENDING any concurrent
// second decision observes it as gone.
type Store struct {
	mu         sync.Mutex
	claims     map[string]*domain.Claim
	rejections map[int64]*domain.PendingRejection
}

// New creates an empty store.
func New() *Store {
	return &Store{
		claims:     make(map[string]*domain.Claim),
		rejections: make(map[int64]*domain.PendingRejection),
	}
}

// Register adds a freshly created claim to the pending set.
func (s *Store) Register(claim domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.ID]; exists {
		return ErrDuplicateID
	}
	c := claim
	s.claims[claim.ID] = &c
	return nil
}

// AttachCard records the posted claim-card message on a pending claim. It
// reports false when the claim is not pending.
func (s *Store) AttachCard(id string, ref domain.MessageRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return false
	}
	claim.ClaimCardRef = ref
	return true
}

// Get returns a snapshot of a pending claim.
func (s *Store) Get(id string) (domain.Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return domain.Claim{}, false
	}
	return *claim, true
}

// Resolve atomically finalizes a pending claim and evicts it. This is the
// single arbitration point for decision races: exactly one caller gets the
// finalized claim, every later caller gets ok=false.
func (s *Store) Resolve(id string, decision Decision) (domain.Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return domain.Claim{}, false
	}

	claim.Status = decision.Status
	claim.DecidedBy = decision.DecidedBy
	claim.DecidedAt = decision.DecidedAt
	claim.RejectionReason = decision.Reason
	delete(s.claims, id)
	return *claim, true
}

// PendingCount reports how many claims are awaiting a decision.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// PutRejection registers that a user owes a rejection reason. A second reject
// by the same user replaces their earlier pending rejection.
func (s *Store) PutRejection(pr domain.PendingRejection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := pr
	s.rejections[pr.UserID] = &p
}

// Rejection returns a snapshot of the pending rejection owned by userID.
func (s *Store) Rejection(userID int64) (domain.PendingRejection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.rejections[userID]
	if !ok {
		return domain.PendingRejection{}, false
	}
	return *pr, true
}

// DropRejection removes the pending rejection owned by userID, if any.
func (s *Store) DropRejection(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rejections, userID)
}
