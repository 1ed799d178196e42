package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportVersion is one immutable snapshot of a run's report.
type ReportVersion struct {
	RunID            uuid.UUID      `json:"run_id"`
	Version          int64          `json:"version"`
	Content          map[string]any `json:"content"`
	CreatedAt        time.Time      `json:"created_at"`
	CreatedBy        string         `json:"created_by"`
	IsCurrent        bool           `json:"is_current"`
	RefinementPrompt *string        `json:"refinement_prompt,omitempty"`
	ChangeSummary    *string        `json:"change_summary,omitempty"`
}

// ReportVersionSummary is the listing view of a version, without content.
type ReportVersionSummary struct {
	RunID            uuid.UUID `json:"run_id"`
	Version          int64     `json:"version"`
	IsCurrent        bool      `json:"is_current"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedBy        string    `json:"created_by"`
	RefinementPrompt *string   `json:"refinement_prompt,omitempty"`
	ChangeSummary    *string   `json:"change_summary,omitempty"`
}

// Summary projects the version down to its listing fields.
func (v ReportVersion) Summary() ReportVersionSummary {
	return ReportVersionSummary{
		RunID:            v.RunID,
		Version:          v.Version,
		IsCurrent:        v.IsCurrent,
		CreatedAt:        v.CreatedAt,
		CreatedBy:        v.CreatedBy,
		RefinementPrompt: v.RefinementPrompt,
		ChangeSummary:    v.ChangeSummary,
	}
}

// GetContentAsJSONB marshals the content tree for JSONB storage.
func (v ReportVersion) GetContentAsJSONB() ([]byte, error) {
	if v.Content == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(v.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal report content: %w", err)
	}
	return data, nil
}

// ContentFromJSONB decodes a stored JSONB content tree.
func ContentFromJSONB(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("unmarshal report content: %w", err)
	}
	if content == nil {
		content = map[string]any{}
	}
	return content, nil
}
