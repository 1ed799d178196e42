package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/repository"
)

func seedRun(t *testing.T, repo repository.VersionRepository, contents ...map[string]any) uuid.UUID {
	t.Helper()
	runID := uuid.New()
	for _, content := range contents {
		if _, err := repo.Append(context.Background(), runID, content, repository.AppendMeta{CreatedBy: "pipeline"}); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
	return runID
}

func TestExportJSONRoundTrips(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	content := map[string]any{
		"summary": "Initial",
		"metadata": map[string]any{
			"pages": float64(12),
		},
	}
	runID := seedRun(t, repo, content)

	result, err := service.Export(context.Background(), runID, 1, FormatJSON)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if result.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", result.ContentType)
	}

	var decoded map[string]any
	if err := json.Unmarshal(result.Bytes, &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if decoded["summary"] != "Initial" {
		t.Errorf("exported content differs: %v", decoded["summary"])
	}
}

func TestExportIsDeterministic(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedRun(t, repo, map[string]any{"b": "2", "a": "1", "c": map[string]any{"z": "last", "a": "first"}})

	first, err := service.Export(context.Background(), runID, 1, FormatJSON)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	second, err := service.Export(context.Background(), runID, 1, FormatJSON)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if !bytes.Equal(first.Bytes, second.Bytes) {
		t.Fatalf("JSON export is not byte-deterministic")
	}
}

func TestExportHistoricalVersionIsImmutable(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	original := map[string]any{"summary": "Initial"}
	runID := seedRun(t, repo,
		original,
		map[string]any{"summary": "Expanded"},
		map[string]any{"summary": "Expanded further"},
	)

	result, err := service.Export(context.Background(), runID, 1, FormatJSON)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(result.Bytes, &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if decoded["summary"] != "Initial" {
		t.Errorf("historical version content drifted: %v", decoded["summary"])
	}
}

func TestExportMarkdown(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedRun(t, repo, map[string]any{
		"summary": "Initial",
		"financials": map[string]any{
			"revenue": "10m",
		},
	})

	result, err := service.Export(context.Background(), runID, 1, FormatMarkdown)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	text := string(result.Bytes)
	if !strings.Contains(text, "## summary") || !strings.Contains(text, "Initial") {
		t.Errorf("markdown missing summary section:\n%s", text)
	}
	if !strings.Contains(text, "## financials.revenue") || !strings.Contains(text, "10m") {
		t.Errorf("markdown missing flattened nested section:\n%s", text)
	}
}

func TestExportXLSX(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})

	result, err := service.Export(context.Background(), runID, 1, FormatXLSX)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(result.Bytes) == 0 {
		t.Fatal("empty workbook")
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(result.Bytes, []byte("PK")) {
		t.Errorf("workbook does not look like an xlsx file")
	}
	if !strings.HasSuffix(result.Filename, ".xlsx") {
		t.Errorf("unexpected filename %q", result.Filename)
	}
}

func TestExportUnknownVersion(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})

	if _, err := service.Export(context.Background(), runID, 99, FormatJSON); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	repo := repository.NewMemoryVersionRepository()
	service := NewService(repo)
	runID := seedRun(t, repo, map[string]any{"summary": "Initial"})

	if _, err := service.Export(context.Background(), runID, 1, Format("docx")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
