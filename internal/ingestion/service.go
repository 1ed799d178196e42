package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

// Request carries the initial report content produced by the upstream
// analysis pipeline. RunID is optional; a new run is minted when absent.
type Request struct {
	RunID     *uuid.UUID
	Content   map[string]any
	CreatedBy string
}

// Service creates the first version of a run's report. All later versions
// come exclusively from resolved refinements.
type Service struct {
	versions repository.VersionRepository
}

// NewService creates an ingestion service.
func NewService(versions repository.VersionRepository) *Service {
	return &Service{versions: versions}
}

// Ingest stores version 1 for a run. A run that already has versions is
// rejected; the version counter never restarts.
func (s *Service) Ingest(ctx context.Context, req Request) (domain.ReportVersionSummary, error) {
	if len(req.Content) == 0 {
		return domain.ReportVersionSummary{}, fmt.Errorf("%w: report content is required", domain.ErrValidation)
	}

	runID := uuid.New()
	if req.RunID != nil && *req.RunID != uuid.Nil {
		runID = *req.RunID
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "analysis-pipeline"
	}

	// ExpectedVersion 0 makes the emptiness check part of the append
	// transaction: a second ingest for the same run loses the race.
	var expected int64
	summary, err := s.versions.Append(ctx, runID, req.Content, repository.AppendMeta{
		CreatedBy:       createdBy,
		ExpectedVersion: &expected,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleProposal) {
			return domain.ReportVersionSummary{}, fmt.Errorf("%w: run %s already has versions", domain.ErrConflict, runID)
		}
		return domain.ReportVersionSummary{}, err
	}

	return summary, nil
}
