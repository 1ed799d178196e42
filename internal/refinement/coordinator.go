package refinement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/auth"
	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

// ResolveAction is the caller's decision on a proposal.
type ResolveAction string

const (
	ActionMerge   ResolveAction = "merge"
	ActionEdit    ResolveAction = "edit"
	ActionDiscard ResolveAction = "discard"
)

// Resolution is the outcome of resolving a proposal. NewVersion is set
// only when a merge or edit produced one.
type Resolution struct {
	Action     ResolveAction
	Proposal   domain.RefinementProposal
	NewVersion *domain.ReportVersionSummary
}

// Coordinator resolves proposals under optimistic concurrency: a merge
// succeeds only if the run's current version still equals the proposal's
// base version, checked and appended as one atomic unit in the store.
type Coordinator struct {
	versions  repository.VersionRepository
	proposals *ProposalCache
}

// NewCoordinator creates a coordinator sharing the orchestrator's cache.
func NewCoordinator(versions repository.VersionRepository, proposals *ProposalCache) *Coordinator {
	return &Coordinator{
		versions:  versions,
		proposals: proposals,
	}
}

// Resolve applies the caller's decision to a previously proposed
// refinement. Discard never touches the store. Merge and edit either
// fully succeed, leaving the new version durable and current, or fully
// fail, leaving the proposal resolvable against a re-proposed base.
func (c *Coordinator) Resolve(ctx context.Context, handle uuid.UUID, action ResolveAction, editedText string) (Resolution, error) {
	proposal, ok := c.proposals.Get(handle)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: proposal %s", domain.ErrNotFound, handle)
	}

	switch action {
	case ActionDiscard:
		proposal.Status = domain.ProposalStatusDiscarded
		c.proposals.Remove(handle)
		slog.Info("refinement discarded", "run_id", proposal.RunID, "section", proposal.Section)
		return Resolution{Action: action, Proposal: proposal}, nil

	case ActionMerge, ActionEdit:
		text := proposal.ProposedText
		if action == ActionEdit {
			text = strings.TrimSpace(editedText)
			if text == "" && proposal.ChangeType != domain.ProposalChangeRemove {
				return Resolution{}, fmt.Errorf("%w: edited text is required for the edit action", domain.ErrValidation)
			}
		}
		return c.apply(ctx, handle, proposal, action, text)

	default:
		return Resolution{}, fmt.Errorf("%w: unknown resolve action %q", domain.ErrValidation, action)
	}
}

func (c *Coordinator) apply(ctx context.Context, handle uuid.UUID, proposal domain.RefinementProposal, action ResolveAction, text string) (Resolution, error) {
	current, err := c.versions.GetCurrent(ctx, proposal.RunID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load current version: %w", err)
	}
	if current.Version != proposal.BaseVersion {
		return Resolution{}, &domain.StaleProposalError{
			RunID:   proposal.RunID.String(),
			Base:    proposal.BaseVersion,
			Current: current.Version,
		}
	}

	updated, err := domain.ApplyChange(current.Content, proposal.Section, proposal.ChangeType, text)
	if err != nil {
		return Resolution{}, err
	}

	// The store re-checks the base version under its own lock; the read
	// above only short-circuits the obvious stale case.
	prompt := proposal.Prompt
	changeSummary := proposal.ChangeSummary()
	expected := proposal.BaseVersion
	summary, err := c.versions.Append(ctx, proposal.RunID, updated, repository.AppendMeta{
		CreatedBy:        auth.ActorFromContext(ctx),
		RefinementPrompt: &prompt,
		ChangeSummary:    &changeSummary,
		ExpectedVersion:  &expected,
	})
	if err != nil {
		return Resolution{}, err
	}

	if action == ActionEdit {
		proposal.Status = domain.ProposalStatusEdited
		proposal.ProposedText = text
	} else {
		proposal.Status = domain.ProposalStatusAccepted
	}
	c.proposals.Remove(handle)

	slog.Info("refinement merged",
		"run_id", proposal.RunID,
		"base_version", proposal.BaseVersion,
		"new_version", summary.Version,
		"section", proposal.Section,
	)

	return Resolution{Action: action, Proposal: proposal, NewVersion: &summary}, nil
}
