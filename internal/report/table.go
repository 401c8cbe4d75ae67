package report

import (
	"fmt"
	"io"

	pretty_table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/toolbench/toolbench/api"
)

const missingCell = "missing"

// TableRenderer writes the summary as a set of terminal tables, one per
// result family, with anomalies and data gaps highlighted.
type TableRenderer struct{}

func NewTableRenderer() *TableRenderer {
	return &TableRenderer{}
}

func (r *TableRenderer) Render(w io.Writer, s *api.ComparisonSummary) error {
	fmt.Fprintf(w, "%s (%s, %s) vs %s (%s, %s)\n",
		s.SubjectA, s.RunIDA, s.StateA,
		s.SubjectB, s.RunIDB, s.StateB)

	r.renderPhases(w, s)
	if len(s.Operations) > 0 {
		r.renderOperations(w, s)
	}
	if len(s.Artifacts) > 0 {
		r.renderArtifacts(w, s)
	}
	if len(s.Tallies) > 0 {
		r.renderTallies(w, s)
	}

	for _, flag := range s.NoOpAxes {
		fmt.Fprintf(w, "NOTE: %s produced byte-identical artifacts across axis %q (sha256 %s)\n",
			flag.Subject, flag.Axis, flag.Sha256)
	}
	for _, gap := range s.Gaps {
		fmt.Fprintf(w, "GAP: %s\n", gap)
	}
	return nil
}

func (r *TableRenderer) renderPhases(w io.Writer, s *api.ComparisonSummary) {
	t := newTable(w)
	t.AppendHeader(pretty_table.Row{
		"Phase",
		"Wall ms " + s.SubjectA, "Wall ms " + s.SubjectB, "Wall A/B",
		"RSS KiB " + s.SubjectA, "RSS KiB " + s.SubjectB, "RSS A/B",
	})
	for _, pr := range s.Phases {
		t.AppendRow(pretty_table.Row{
			pr.Phase,
			intCell(pr.WallMillisA), intCell(pr.WallMillisB), ratioCell(pr.DurationRatio),
			intCell(pr.MaxRSSKiBA), intCell(pr.MaxRSSKiBB), ratioCell(pr.MemoryRatio),
		})
	}
	t.Render()
}

func (r *TableRenderer) renderOperations(w io.Writer, s *api.ComparisonSummary) {
	t := newTable(w)
	t.AppendHeader(pretty_table.Row{
		"Op", "Description",
		"Seconds " + s.SubjectA, "Seconds " + s.SubjectB, "A/B", "Note",
	})
	for _, or := range s.Operations {
		note := ""
		if or.AnomalousSlowdown {
			note = "ANOMALY"
		}
		t.AppendRow(pretty_table.Row{
			or.ID, or.Desc,
			floatCell(or.SecondsA), floatCell(or.SecondsB), ratioCell(or.Ratio),
			note,
		})
	}
	t.SetColumnConfigs([]pretty_table.ColumnConfig{
		{
			Name:        "Note",
			Transformer: noteColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}

func (r *TableRenderer) renderArtifacts(w io.Writer, s *api.ComparisonSummary) {
	t := newTable(w)
	t.AppendHeader(pretty_table.Row{
		"Artifact", "Variant",
		"Bytes " + s.SubjectA, "Bytes " + s.SubjectB, "Size A/B",
	})
	for _, ar := range s.Artifacts {
		t.AppendRow(pretty_table.Row{
			ar.Phase, ar.Variant,
			intCell(ar.BytesA), intCell(ar.BytesB), ratioCell(ar.SizeRatio),
		})
	}
	t.Render()
}

func (r *TableRenderer) renderTallies(w io.Writer, s *api.ComparisonSummary) {
	t := newTable(w)
	t.AppendHeader(pretty_table.Row{
		"Tally",
		"Total " + s.SubjectA, "Failed " + s.SubjectA,
		"Total " + s.SubjectB, "Failed " + s.SubjectB,
	})
	for _, tp := range s.Tallies {
		t.AppendRow(pretty_table.Row{
			tp.Phase,
			intCell(tp.TotalA), intCell(tp.FailedA),
			intCell(tp.TotalB), intCell(tp.FailedB),
		})
	}
	t.Render()
}

func newTable(w io.Writer) pretty_table.Writer {
	t := pretty_table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pretty_table.StyleColoredDark)
	return t
}

var noteColor = text.Transformer(func(s interface{}) string {
	if s.(string) == "ANOMALY" {
		return text.FgHiRed.Sprint(s)
	}
	return ""
})

func intCell(v *int64) string {
	if v == nil {
		return missingCell
	}
	return fmt.Sprintf("%d", *v)
}

func floatCell(v *float64) string {
	if v == nil {
		return missingCell
	}
	return fmt.Sprintf("%.3f", *v)
}

func ratioCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3fx", *v)
}
