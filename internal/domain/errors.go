package domain

import "errors"

// ErrClaimNotFound covers both a claim that never existed and one already
// decided. The two cases are reported identically so actors cannot tell which
// side of a decision race they lost.
var ErrClaimNotFound = errors.New("claim not found or already processed")

// ErrUnauthorized indicates the acting user is not in the approver set.
var ErrUnauthorized = errors.New("actor is not an authorized approver")

// ValidationError describes a malformed claim-creation request. Reason is
// shown verbatim to the requesting member.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
