package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/reportvc/internal/domain"
)

const uniqueViolationCode = "23505"

// versionRepository implements VersionRepository over Postgres.
type versionRepository struct {
	pool *pgxpool.Pool
}

// NewVersionRepository creates a Postgres-backed version repository.
func NewVersionRepository(pool *pgxpool.Pool) VersionRepository {
	return &versionRepository{pool: pool}
}

func (r *versionRepository) List(ctx context.Context, runID uuid.UUID) ([]domain.ReportVersionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, version, is_current, created_at, created_by, refinement_prompt, change_summary
		FROM report_versions
		WHERE run_id = $1
		ORDER BY version ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list report versions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.ReportVersionSummary{}
	for rows.Next() {
		var summary domain.ReportVersionSummary
		if err := rows.Scan(
			&summary.RunID,
			&summary.Version,
			&summary.IsCurrent,
			&summary.CreatedAt,
			&summary.CreatedBy,
			&summary.RefinementPrompt,
			&summary.ChangeSummary,
		); err != nil {
			return nil, fmt.Errorf("scan report version summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report versions: %w", err)
	}

	return summaries, nil
}

func (r *versionRepository) Get(ctx context.Context, runID uuid.UUID, version int64) (domain.ReportVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id, version, content, is_current, created_at, created_by, refinement_prompt, change_summary
		FROM report_versions
		WHERE run_id = $1 AND version = $2`, runID, version)
	return scanVersion(row)
}

func (r *versionRepository) GetCurrent(ctx context.Context, runID uuid.UUID) (domain.ReportVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id, version, content, is_current, created_at, created_by, refinement_prompt, change_summary
		FROM report_versions
		WHERE run_id = $1 AND is_current`, runID)
	return scanVersion(row)
}

func scanVersion(row pgx.Row) (domain.ReportVersion, error) {
	var version domain.ReportVersion
	var contentJSON []byte
	err := row.Scan(
		&version.RunID,
		&version.Version,
		&contentJSON,
		&version.IsCurrent,
		&version.CreatedAt,
		&version.CreatedBy,
		&version.RefinementPrompt,
		&version.ChangeSummary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReportVersion{}, domain.ErrNotFound
		}
		return domain.ReportVersion{}, fmt.Errorf("get report version: %w", err)
	}

	content, err := domain.ContentFromJSONB(contentJSON)
	if err != nil {
		return domain.ReportVersion{}, err
	}
	version.Content = content

	return version, nil
}

func (r *versionRepository) Append(ctx context.Context, runID uuid.UUID, content map[string]any, meta AppendMeta) (domain.ReportVersionSummary, error) {
	summary, err := r.appendOnce(ctx, runID, content, meta)
	if err == nil {
		return summary, nil
	}

	// Two appends for the same run can race past the row lock when the
	// run has no versions yet. Retry once with a fresh read.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		summary, retryErr := r.appendOnce(ctx, runID, content, meta)
		if retryErr == nil {
			return summary, nil
		}
		if errors.As(retryErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ReportVersionSummary{}, fmt.Errorf("%w: run %s", domain.ErrConflict, runID)
		}
		return domain.ReportVersionSummary{}, retryErr
	}

	return domain.ReportVersionSummary{}, err
}

func (r *versionRepository) appendOnce(ctx context.Context, runID uuid.UUID, content map[string]any, meta AppendMeta) (domain.ReportVersionSummary, error) {
	contentJSON, err := (domain.ReportVersion{Content: content}).GetContentAsJSONB()
	if err != nil {
		return domain.ReportVersionSummary{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ReportVersionSummary{}, fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `
		SELECT version FROM report_versions
		WHERE run_id = $1 AND is_current
		FOR UPDATE`, runID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.ReportVersionSummary{}, fmt.Errorf("lock current version: %w", err)
	}

	if meta.ExpectedVersion != nil && current != *meta.ExpectedVersion {
		return domain.ReportVersionSummary{}, &domain.StaleProposalError{
			RunID:   runID.String(),
			Base:    *meta.ExpectedVersion,
			Current: current,
		}
	}

	if current > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE report_versions SET is_current = FALSE
			WHERE run_id = $1 AND is_current`, runID); err != nil {
			return domain.ReportVersionSummary{}, fmt.Errorf("retire current version: %w", err)
		}
	}

	summary := domain.ReportVersionSummary{
		RunID:            runID,
		Version:          current + 1,
		IsCurrent:        true,
		CreatedBy:        meta.CreatedBy,
		RefinementPrompt: meta.RefinementPrompt,
		ChangeSummary:    meta.ChangeSummary,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO report_versions (run_id, version, content, is_current, created_by, refinement_prompt, change_summary)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6)
		RETURNING created_at`,
		runID, summary.Version, contentJSON, meta.CreatedBy, meta.RefinementPrompt, meta.ChangeSummary,
	).Scan(&summary.CreatedAt)
	if err != nil {
		return domain.ReportVersionSummary{}, fmt.Errorf("insert report version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ReportVersionSummary{}, fmt.Errorf("commit append transaction: %w", err)
	}

	return summary, nil
}
