package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
)

// AppendMeta carries the metadata recorded on an appended version.
// ExpectedVersion, when set, makes the append conditional: it fails with
// StaleProposalError unless the run's current version still matches.
type AppendMeta struct {
	CreatedBy        string
	RefinementPrompt *string
	ChangeSummary    *string
	ExpectedVersion  *int64
}

// VersionRepository is the durable, append-only store of report versions.
// Versions are immutable once written; exactly one version per run is
// current at any observable instant.
type VersionRepository interface {
	// List returns all version summaries for a run, ascending by version.
	// An unknown run yields an empty slice, not an error.
	List(ctx context.Context, runID uuid.UUID) ([]domain.ReportVersionSummary, error)

	// Get returns one stored version. domain.ErrNotFound when the run or
	// version does not exist.
	Get(ctx context.Context, runID uuid.UUID, version int64) (domain.ReportVersion, error)

	// GetCurrent returns the run's current version. domain.ErrNotFound
	// when the run has no versions.
	GetCurrent(ctx context.Context, runID uuid.UUID) (domain.ReportVersion, error)

	// Append atomically inserts the next version for the run and moves the
	// current pointer to it. Appends for the same run are serialized; no
	// reader ever observes zero or two current versions.
	Append(ctx context.Context, runID uuid.UUID, content map[string]any, meta AppendMeta) (domain.ReportVersionSummary, error)
}
