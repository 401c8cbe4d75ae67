package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/toolbench/toolbench/api"
)

// JSONRenderer emits the summary verbatim as indented JSON, for downstream
// tooling.
type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Render(w io.Writer, s *api.ComparisonSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

// ParseSummary reads back a summary produced by the JSON renderer.
func ParseSummary(data []byte) (*api.ComparisonSummary, error) {
	s := &api.ComparisonSummary{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return s, nil
}
