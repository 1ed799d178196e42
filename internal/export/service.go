package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

// Format names a supported export serialization.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// Result is one serialized version snapshot.
type Result struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// Service serializes stored versions for download. It is a read-only
// function of the version repository: the same version and format always
// produce the same serialization.
type Service struct {
	versions repository.VersionRepository
}

// NewService creates an export service.
func NewService(versions repository.VersionRepository) *Service {
	return &Service{versions: versions}
}

// Export serializes one stored version in the requested format.
func (s *Service) Export(ctx context.Context, runID uuid.UUID, version int64, format Format) (Result, error) {
	stored, err := s.versions.Get(ctx, runID, version)
	if err != nil {
		return Result{}, err
	}

	base := fmt.Sprintf("report-%s-v%d", runID, version)
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(stored.Content, "", "  ")
		if err != nil {
			return Result{}, fmt.Errorf("marshal report content: %w", err)
		}
		return Result{Bytes: data, ContentType: "application/json", Filename: base + ".json"}, nil

	case FormatMarkdown:
		data, err := renderMarkdown(stored)
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: data, ContentType: "text/markdown; charset=utf-8", Filename: base + ".md"}, nil

	case FormatXLSX:
		data, err := renderWorkbook(stored)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Bytes:       data,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Filename:    base + ".xlsx",
		}, nil

	default:
		return Result{}, fmt.Errorf("%w: unsupported export format %q", domain.ErrValidation, format)
	}
}

func renderMarkdown(version domain.ReportVersion) ([]byte, error) {
	keys, flattened, err := domain.FlattenContent(version.Content)
	if err != nil {
		return nil, fmt.Errorf("flatten report content: %w", err)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "# Report %s (version %d)\n\n", version.RunID, version.Version)
	if version.ChangeSummary != nil {
		fmt.Fprintf(&builder, "_%s_\n\n", *version.ChangeSummary)
	}
	for _, key := range keys {
		fmt.Fprintf(&builder, "## %s\n\n%s\n\n", key, unquoteScalar(flattened[key]))
	}

	return []byte(builder.String()), nil
}

func renderWorkbook(version domain.ReportVersion) ([]byte, error) {
	keys, flattened, err := domain.FlattenContent(version.Content)
	if err != nil {
		return nil, fmt.Errorf("flatten report content: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Section", "Value"}); err != nil {
		return nil, fmt.Errorf("write workbook header: %w", err)
	}
	for i, key := range keys {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{key, unquoteScalar(flattened[key])}); err != nil {
			return nil, fmt.Errorf("write workbook row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// unquoteScalar strips the JSON quoting FlattenContent applies to strings.
func unquoteScalar(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		var text string
		if err := json.Unmarshal([]byte(value), &text); err == nil {
			return text
		}
	}
	return value
}
