package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbench/toolbench/api"
)

func sampleSummary() *api.ComparisonSummary {
	wallA, wallB := int64(2000), int64(4000)
	rssA, rssB := int64(512000), int64(256000)
	durRatio, memRatio := 0.5, 2.0
	secA, secB := 0.05, 50.0
	opRatio := 0.001

	return &api.ComparisonSummary{
		SubjectA: "gcc",
		SubjectB: "ccc",
		RunIDA:   "run-a",
		RunIDB:   "run-b",
		StateA:   api.RunCompleted,
		StateB:   api.RunAborted,
		Phases: []api.PhaseRatio{
			{
				Phase:       "compile",
				WallMillisA: &wallA, WallMillisB: &wallB, DurationRatio: &durRatio,
				MaxRSSKiBA: &rssA, MaxRSSKiBB: &rssB, MemoryRatio: &memRatio,
			},
			{Phase: "run", WallMillisA: &wallA, MaxRSSKiBA: &rssA, Missing: api.MissingInB},
		},
		Operations: []api.OperationRatio{
			{
				ID: "1", Desc: "point lookup",
				SecondsA: &secA, SecondsB: &secB, Ratio: &opRatio,
				AnomalousSlowdown: true,
			},
		},
		NoOpAxes: []api.NoOpFlag{{Subject: "ccc", Axis: "opt-level", Sha256: "deadbeef"}},
		Gaps:     []string{"phase run: no result for ccc"},
	}
}

func TestJSONRendererRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	err := NewJSONRenderer().Render(&buf, sampleSummary())
	require.NoError(t, err)

	var got api.ComparisonSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "gcc", got.SubjectA)
	require.Len(t, got.Phases, 2)
	assert.Equal(t, api.MissingInB, got.Phases[1].Missing)
	require.NotNil(t, got.Phases[0].DurationRatio)
	assert.InDelta(t, 0.5, *got.Phases[0].DurationRatio, 1e-9)
}

func TestTableRendererShowsAllSections(t *testing.T) {
	var buf bytes.Buffer
	err := NewTableRenderer().Render(&buf, sampleSummary())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "compile")
	assert.Contains(t, out, "point lookup")
	assert.Contains(t, out, "ANOMALY")
	assert.Contains(t, out, "missing", "absent sides render as explicit markers")
	assert.Contains(t, out, "opt-level")
	assert.Contains(t, out, "GAP: phase run: no result for ccc")
}
