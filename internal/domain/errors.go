package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid input")
	ErrGeneration    = errors.New("generation provider failed")
	ErrStaleProposal = errors.New("proposal base version superseded")
	ErrConflict      = errors.New("version append conflict")
)

// StaleProposalError reports the version drift that prevented a merge.
type StaleProposalError struct {
	RunID   string
	Base    int64
	Current int64
}

func (e *StaleProposalError) Error() string {
	return fmt.Sprintf("proposal for run %s is stale: base version %d, current version %d", e.RunID, e.Base, e.Current)
}

func (e *StaleProposalError) Is(target error) bool {
	return target == ErrStaleProposal
}
