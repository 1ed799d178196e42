package refinement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

func proposeExpansion(t *testing.T, repo repository.VersionRepository, cache *ProposalCache, runID uuid.UUID) domain.RefinementProposal {
	t.Helper()
	provider := &stubProvider{draft: Draft{
		Section:      "summary",
		ChangeType:   "replace",
		ProposedText: "Initial findings, expanded with market context",
		Reasoning:    "The summary lacked market context.",
	}}
	orchestrator := NewOrchestrator(repo, provider, cache)
	proposal, err := orchestrator.Propose(context.Background(), runID, "expand summary")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	return proposal
}

func TestResolveMergeProducesNewCurrentVersion(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	proposal := proposeExpansion(t, repo, cache, runID)

	resolution, err := coordinator.Resolve(context.Background(), proposal.Handle, ActionMerge, "")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if resolution.Proposal.Status != domain.ProposalStatusAccepted {
		t.Errorf("expected accepted status, got %q", resolution.Proposal.Status)
	}
	if resolution.NewVersion == nil || resolution.NewVersion.Version != 2 {
		t.Fatalf("expected new version 2, got %+v", resolution.NewVersion)
	}
	if resolution.NewVersion.ChangeSummary == nil || *resolution.NewVersion.ChangeSummary == "" {
		t.Errorf("merged version must carry a change summary")
	}
	if resolution.NewVersion.RefinementPrompt == nil || *resolution.NewVersion.RefinementPrompt != "expand summary" {
		t.Errorf("merged version must record the original prompt, got %v", resolution.NewVersion.RefinementPrompt)
	}

	v1, err := repo.Get(context.Background(), runID, 1)
	if err != nil {
		t.Fatalf("get v1 failed: %v", err)
	}
	if v1.IsCurrent {
		t.Errorf("v1 should no longer be current after the merge")
	}
	if v1.Content["summary"] != "Initial" {
		t.Errorf("v1 content changed: %v", v1.Content["summary"])
	}

	current, err := repo.GetCurrent(context.Background(), runID)
	if err != nil {
		t.Fatalf("get current failed: %v", err)
	}
	if current.Version != 2 {
		t.Errorf("expected current version 2, got %d", current.Version)
	}
	if current.Content["summary"] != "Initial findings, expanded with market context" {
		t.Errorf("merged content not applied: %v", current.Content["summary"])
	}

	diffs := domain.CompareContent(v1.Content, current.Content)
	if len(diffs) != 1 || diffs[0].Section != "summary" || diffs[0].ChangeType != domain.DiffModified {
		t.Errorf("expected exactly one modified summary diff, got %+v", diffs)
	}

	// The handle is spent once the proposal reaches a terminal status.
	if _, err := coordinator.Resolve(context.Background(), proposal.Handle, ActionMerge, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for a spent handle, got %v", err)
	}
}

func TestResolveEditSubstitutesText(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	proposal := proposeExpansion(t, repo, cache, runID)

	resolution, err := coordinator.Resolve(context.Background(), proposal.Handle, ActionEdit, "Analyst-adjusted summary")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if resolution.Proposal.Status != domain.ProposalStatusEdited {
		t.Errorf("expected edited status, got %q", resolution.Proposal.Status)
	}

	current, err := repo.GetCurrent(context.Background(), runID)
	if err != nil {
		t.Fatalf("get current failed: %v", err)
	}
	if current.Content["summary"] != "Analyst-adjusted summary" {
		t.Errorf("edited text not applied: %v", current.Content["summary"])
	}
}

func TestResolveEditRequiresText(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	proposal := proposeExpansion(t, repo, cache, runID)

	if _, err := coordinator.Resolve(context.Background(), proposal.Handle, ActionEdit, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The proposal stays resolvable after a rejected edit.
	if _, ok := cache.Get(proposal.Handle); !ok {
		t.Errorf("proposal evicted by a failed edit")
	}
}

func TestResolveDiscardLeavesHistoryUntouched(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	proposal := proposeExpansion(t, repo, cache, runID)

	resolution, err := coordinator.Resolve(context.Background(), proposal.Handle, ActionDiscard, "")
	if err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if resolution.Proposal.Status != domain.ProposalStatusDiscarded {
		t.Errorf("expected discarded status, got %q", resolution.Proposal.Status)
	}
	if resolution.NewVersion != nil {
		t.Errorf("discard must not produce a version")
	}

	summaries, err := repo.List(context.Background(), runID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("discard changed the version history: %d versions", len(summaries))
	}
	if !summaries[0].IsCurrent {
		t.Errorf("discard moved the current pointer")
	}
}

func TestResolveStaleProposal(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	first := proposeExpansion(t, repo, cache, runID)
	second := proposeExpansion(t, repo, cache, runID)

	if _, err := coordinator.Resolve(context.Background(), first.Handle, ActionMerge, ""); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}

	_, err := coordinator.Resolve(context.Background(), second.Handle, ActionMerge, "")
	if !errors.Is(err, domain.ErrStaleProposal) {
		t.Fatalf("expected stale proposal error, got %v", err)
	}

	var stale *domain.StaleProposalError
	if !errors.As(err, &stale) {
		t.Fatalf("expected typed stale error, got %T", err)
	}
	if stale.Base != 1 || stale.Current != 2 {
		t.Errorf("unexpected stale versions: base %d current %d", stale.Base, stale.Current)
	}

	// Exactly one merge went through.
	summaries, err := repo.List(context.Background(), runID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("expected 2 versions after one successful merge, got %d", len(summaries))
	}
}

func TestResolveConcurrentMergesOneWins(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	first := proposeExpansion(t, repo, cache, runID)
	second := proposeExpansion(t, repo, cache, runID)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, handle := range []uuid.UUID{first.Handle, second.Handle} {
		wg.Add(1)
		go func(slot int, h uuid.UUID) {
			defer wg.Done()
			_, err := coordinator.Resolve(context.Background(), h, ActionMerge, "")
			results[slot] = err
		}(i, handle)
	}
	wg.Wait()

	successes, stales := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrStaleProposal):
			stales++
		default:
			t.Errorf("unexpected resolve error: %v", err)
		}
	}
	if successes != 1 || stales != 1 {
		t.Fatalf("expected exactly one winner and one stale, got %d/%d", successes, stales)
	}

	current, err := repo.GetCurrent(context.Background(), runID)
	if err != nil {
		t.Fatalf("get current failed: %v", err)
	}
	if current.Version != 2 {
		t.Errorf("expected current version 2, got %d", current.Version)
	}
}

func TestResolveUnknownHandle(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	coordinator := NewCoordinator(repo, NewProposalCache(time.Minute))

	if _, err := coordinator.Resolve(context.Background(), uuid.New(), ActionMerge, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveUnknownAction(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})
	cache := NewProposalCache(time.Minute)
	coordinator := NewCoordinator(repo, cache)

	proposal := proposeExpansion(t, repo, cache, runID)

	if _, err := coordinator.Resolve(context.Background(), proposal.Handle, ResolveAction("approve"), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
