package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
)

// memoryVersionRepository keeps version history in process memory. It
// backs the memory storage driver and the test suites; it honors the same
// append and compare-and-swap semantics as the Postgres repository.
type memoryVersionRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID][]domain.ReportVersion
	now  func() time.Time
}

// NewMemoryVersionRepository creates an in-memory version repository.
func NewMemoryVersionRepository() VersionRepository {
	return &memoryVersionRepository{
		runs: map[uuid.UUID][]domain.ReportVersion{},
		now:  time.Now,
	}
}

func (r *memoryVersionRepository) List(ctx context.Context, runID uuid.UUID) ([]domain.ReportVersionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.runs[runID]
	summaries := make([]domain.ReportVersionSummary, len(versions))
	for i, version := range versions {
		summaries[i] = version.Summary()
	}
	return summaries, nil
}

func (r *memoryVersionRepository) Get(ctx context.Context, runID uuid.UUID, version int64) (domain.ReportVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.runs[runID]
	if version < 1 || version > int64(len(versions)) {
		return domain.ReportVersion{}, domain.ErrNotFound
	}

	stored := versions[version-1]
	stored.Content = domain.CloneContent(stored.Content)
	return stored, nil
}

func (r *memoryVersionRepository) GetCurrent(ctx context.Context, runID uuid.UUID) (domain.ReportVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.runs[runID]
	if len(versions) == 0 {
		return domain.ReportVersion{}, domain.ErrNotFound
	}

	stored := versions[len(versions)-1]
	stored.Content = domain.CloneContent(stored.Content)
	return stored, nil
}

func (r *memoryVersionRepository) Append(ctx context.Context, runID uuid.UUID, content map[string]any, meta AppendMeta) (domain.ReportVersionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.runs[runID]
	current := int64(len(versions))

	if meta.ExpectedVersion != nil && current != *meta.ExpectedVersion {
		return domain.ReportVersionSummary{}, &domain.StaleProposalError{
			RunID:   runID.String(),
			Base:    *meta.ExpectedVersion,
			Current: current,
		}
	}

	if current > 0 {
		versions[current-1].IsCurrent = false
	}

	created := domain.ReportVersion{
		RunID:            runID,
		Version:          current + 1,
		Content:          domain.CloneContent(content),
		CreatedAt:        r.now().UTC(),
		CreatedBy:        meta.CreatedBy,
		IsCurrent:        true,
		RefinementPrompt: meta.RefinementPrompt,
		ChangeSummary:    meta.ChangeSummary,
	}
	r.runs[runID] = append(versions, created)

	return created.Summary(), nil
}
