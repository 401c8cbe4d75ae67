// Package report turns a comparison summary into human or machine readable
// output. Renderers only format; they never recompute ratios.
package report

import (
	"io"

	"github.com/toolbench/toolbench/api"
)

// Renderer writes one representation of a comparison summary.
type Renderer interface {
	Render(w io.Writer, s *api.ComparisonSummary) error
}
