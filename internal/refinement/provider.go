package refinement

import (
	"context"
)

// Draft is the shape the generation provider must return: a single
// candidate edit against one section of the report.
type Draft struct {
	Section      string  `json:"section"`
	ChangeType   string  `json:"change_type"`
	CurrentText  *string `json:"current_text,omitempty"`
	ProposedText string  `json:"proposed_text"`
	Reasoning    string  `json:"reasoning"`
}

// GenerationProvider drafts a proposed edit from the current report
// content and a natural-language refinement prompt. Implementations must
// honor context cancellation; the core never retries a failed call.
type GenerationProvider interface {
	Generate(ctx context.Context, content map[string]any, prompt string) (Draft, error)
}
