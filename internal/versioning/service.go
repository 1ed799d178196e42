package versioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

// Service exposes read access to a run's version history, structural
// comparison between versions, and revert-as-append.
type Service struct {
	versions repository.VersionRepository
}

// NewService creates a versioning service over the given repository.
func NewService(versions repository.VersionRepository) *Service {
	return &Service{versions: versions}
}

// List returns the run's version summaries, ascending by version. A run
// with no versions yields an empty list.
func (s *Service) List(ctx context.Context, runID uuid.UUID) ([]domain.ReportVersionSummary, error) {
	return s.versions.List(ctx, runID)
}

// Get returns one stored version.
func (s *Service) Get(ctx context.Context, runID uuid.UUID, version int64) (domain.ReportVersion, error) {
	return s.versions.Get(ctx, runID, version)
}

// Compare computes the structural diff between two stored versions of the
// same run. Both versions must exist; comparing a version against itself
// yields an empty diff.
func (s *Service) Compare(ctx context.Context, runID uuid.UUID, from, to int64) ([]domain.VersionDiff, error) {
	base, err := s.versions.Get(ctx, runID, from)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", from, err)
	}
	target, err := s.versions.Get(ctx, runID, to)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", to, err)
	}

	return domain.CompareContent(base.Content, target.Content), nil
}

// Revert re-appends the content of an older version as a brand-new
// current version. History is never rewound; the old version stays
// immutable and the new version records where its content came from.
func (s *Service) Revert(ctx context.Context, runID uuid.UUID, toVersion int64, actor string) (domain.ReportVersionSummary, error) {
	old, err := s.versions.Get(ctx, runID, toVersion)
	if err != nil {
		return domain.ReportVersionSummary{}, fmt.Errorf("load version %d: %w", toVersion, err)
	}

	current, err := s.versions.GetCurrent(ctx, runID)
	if err != nil {
		return domain.ReportVersionSummary{}, fmt.Errorf("load current version: %w", err)
	}
	if current.Version == toVersion {
		return domain.ReportVersionSummary{}, fmt.Errorf("%w: version %d is already current", domain.ErrValidation, toVersion)
	}

	summary := fmt.Sprintf("Reverted to version %d", toVersion)
	expected := current.Version
	return s.versions.Append(ctx, runID, old.Content, repository.AppendMeta{
		CreatedBy:       actor,
		ChangeSummary:   &summary,
		ExpectedVersion: &expected,
	})
}
