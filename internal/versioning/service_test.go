package versioning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

func seedVersions(t *testing.T, repo repository.VersionRepository, contents ...map[string]any) uuid.UUID {
	t.Helper()
	runID := uuid.New()
	for _, content := range contents {
		if _, err := repo.Append(context.Background(), runID, content, repository.AppendMeta{CreatedBy: "pipeline"}); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
	return runID
}

func TestCompareBetweenVersions(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedVersions(t, repo,
		map[string]any{"summary": "Initial"},
		map[string]any{"summary": "Initial findings, expanded with market context"},
	)

	diffs, err := service.Compare(context.Background(), runID, 1, 2)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected one diff, got %d: %+v", len(diffs), diffs)
	}
	if diffs[0].Section != "summary" || diffs[0].ChangeType != domain.DiffModified {
		t.Errorf("unexpected diff: %+v", diffs[0])
	}
	if diffs[0].OldItem != "Initial" {
		t.Errorf("expected old item %q, got %v", "Initial", diffs[0].OldItem)
	}
}

func TestCompareSameVersionIsEmpty(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedVersions(t, repo, map[string]any{"summary": "Initial"})

	diffs, err := service.Compare(context.Background(), runID, 1, 1)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected empty diff, got %+v", diffs)
	}
}

func TestCompareMissingVersionFailsBeforeDiff(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedVersions(t, repo, map[string]any{"summary": "Initial"})

	if _, err := service.Compare(context.Background(), runID, 1, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Compare(context.Background(), uuid.New(), 1, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown run, got %v", err)
	}
}

func TestRevertAppendsOldContentAsNewVersion(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedVersions(t, repo,
		map[string]any{"summary": "Initial"},
		map[string]any{"summary": "Expanded"},
	)

	summary, err := service.Revert(context.Background(), runID, 1, "analyst")
	if err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if summary.Version != 3 {
		t.Errorf("revert must append a new version, got %d", summary.Version)
	}
	if summary.ChangeSummary == nil || *summary.ChangeSummary != "Reverted to version 1" {
		t.Errorf("unexpected change summary: %v", summary.ChangeSummary)
	}

	current, err := repo.GetCurrent(context.Background(), runID)
	if err != nil {
		t.Fatalf("get current failed: %v", err)
	}
	if current.Version != 3 || current.Content["summary"] != "Initial" {
		t.Errorf("revert did not restore the old content: %+v", current.Content)
	}

	// The full history is intact.
	summaries, err := service.List(context.Background(), runID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("expected 3 versions after revert, got %d", len(summaries))
	}
}

func TestRevertToCurrentVersionRejected(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedVersions(t, repo, map[string]any{"summary": "Initial"})

	if _, err := service.Revert(context.Background(), runID, 1, "analyst"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
