package refinement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

// Orchestrator drives the propose step of the refinement workflow. It
// reads the current version, delegates drafting to the generation
// provider, and returns an unpersisted proposal bound to the version it
// was computed against. It never writes to the version store.
type Orchestrator struct {
	versions  repository.VersionRepository
	provider  GenerationProvider
	proposals *ProposalCache
}

// NewOrchestrator creates an orchestrator sharing the given proposal cache.
func NewOrchestrator(versions repository.VersionRepository, provider GenerationProvider, proposals *ProposalCache) *Orchestrator {
	return &Orchestrator{
		versions:  versions,
		provider:  provider,
		proposals: proposals,
	}
}

// Propose drafts a refinement against the run's current version. The
// provider call is the only long-latency operation; cancelling ctx aborts
// it with no residual state. A failed or malformed draft produces no
// proposal.
func (o *Orchestrator) Propose(ctx context.Context, runID uuid.UUID, prompt string) (domain.RefinementProposal, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.RefinementProposal{}, fmt.Errorf("%w: refinement prompt is required", domain.ErrValidation)
	}

	current, err := o.versions.GetCurrent(ctx, runID)
	if err != nil {
		return domain.RefinementProposal{}, fmt.Errorf("load current version: %w", err)
	}

	draft, err := o.provider.Generate(ctx, current.Content, prompt)
	if err != nil {
		return domain.RefinementProposal{}, err
	}

	proposal := domain.RefinementProposal{
		Handle:       uuid.New(),
		RunID:        runID,
		BaseVersion:  current.Version,
		Prompt:       prompt,
		Section:      strings.TrimSpace(draft.Section),
		ChangeType:   domain.ProposalChangeType(draft.ChangeType),
		CurrentText:  draft.CurrentText,
		ProposedText: draft.ProposedText,
		Reasoning:    draft.Reasoning,
		Status:       domain.ProposalStatusProposed,
	}
	if proposal.ChangeType == "" {
		proposal.ChangeType = domain.ProposalChangeReplace
	}
	if proposal.CurrentText == nil {
		if existing, ok := domain.LookupSection(current.Content, proposal.Section); ok {
			if text, isText := existing.(string); isText {
				proposal.CurrentText = &text
			}
		}
	}

	if err := proposal.Validate(); err != nil {
		return domain.RefinementProposal{}, err
	}

	o.proposals.Put(proposal)
	slog.Info("refinement proposed",
		"run_id", runID,
		"base_version", proposal.BaseVersion,
		"section", proposal.Section,
		"change_type", proposal.ChangeType,
	)

	return proposal, nil
}
