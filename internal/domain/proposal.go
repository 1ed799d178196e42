package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ProposalChangeType describes how a proposal edits its target section.
type ProposalChangeType string

const (
	ProposalChangeAppend  ProposalChangeType = "append"
	ProposalChangeReplace ProposalChangeType = "replace"
	ProposalChangeRemove  ProposalChangeType = "remove"
)

// ProposalStatus tracks a proposal through its lifecycle.
type ProposalStatus string

const (
	ProposalStatusProposed  ProposalStatus = "proposed"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusEdited    ProposalStatus = "edited"
	ProposalStatusDiscarded ProposalStatus = "discarded"
)

// RefinementProposal is an ephemeral AI-drafted candidate change. It is
// never persisted; the Handle identifies it for the resolve step.
type RefinementProposal struct {
	Handle       uuid.UUID          `json:"handle"`
	RunID        uuid.UUID          `json:"run_id"`
	BaseVersion  int64              `json:"base_version"`
	Prompt       string             `json:"prompt"`
	Section      string             `json:"section"`
	ChangeType   ProposalChangeType `json:"change_type"`
	CurrentText  *string            `json:"current_text,omitempty"`
	ProposedText string             `json:"proposed_text"`
	Reasoning    string             `json:"reasoning"`
	Status       ProposalStatus     `json:"status"`
}

// Validate checks the structural requirements on a drafted proposal.
func (p RefinementProposal) Validate() error {
	if strings.TrimSpace(p.Section) == "" {
		return fmt.Errorf("%w: draft is missing a target section", ErrGeneration)
	}
	if p.ChangeType != ProposalChangeRemove && strings.TrimSpace(p.ProposedText) == "" {
		return fmt.Errorf("%w: draft is missing proposed text", ErrGeneration)
	}
	switch p.ChangeType {
	case ProposalChangeAppend, ProposalChangeReplace, ProposalChangeRemove:
	default:
		return fmt.Errorf("%w: draft has unknown change type %q", ErrGeneration, p.ChangeType)
	}
	return nil
}

// ChangeSummary derives the one-line description recorded on the version
// a resolved proposal produces.
func (p RefinementProposal) ChangeSummary() string {
	switch p.ChangeType {
	case ProposalChangeAppend:
		return fmt.Sprintf("Appended to section %q", p.Section)
	case ProposalChangeRemove:
		return fmt.Sprintf("Removed section %q", p.Section)
	default:
		return fmt.Sprintf("Replaced section %q", p.Section)
	}
}
