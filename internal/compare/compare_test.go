package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbench/toolbench/api"
)

func run(label string, phases ...api.PhaseResult) *api.RunResult {
	return &api.RunResult{
		RunID:   label + "-run",
		Subject: api.Subject{Label: label, ToolPath: "/usr/bin/" + label},
		State:   api.RunCompleted,
		Phases:  phases,
	}
}

func phase(name string, wallMs, rssKiB int64) api.PhaseResult {
	return api.PhaseResult{Phase: name, WallMillis: wallMs, MaxRSSKiB: rssKiB}
}

func TestComparePhaseRatios(t *testing.T) {
	a := run("gcc", phase("compile", 2000, 512000))
	b := run("ccc", phase("compile", 4000, 256000))

	s := Compare(a, b)

	assert.Equal(t, "gcc", s.SubjectA)
	assert.Equal(t, "ccc", s.SubjectB)
	require.Len(t, s.Phases, 1)
	pr := s.Phases[0]
	require.NotNil(t, pr.DurationRatio)
	assert.InDelta(t, 0.5, *pr.DurationRatio, 1e-9)
	require.NotNil(t, pr.MemoryRatio)
	assert.InDelta(t, 2.0, *pr.MemoryRatio, 1e-9)
	assert.Equal(t, api.MissingNone, pr.Missing)
	assert.Empty(t, s.Gaps)
}

func TestCompareIsSymmetricUnderSwap(t *testing.T) {
	a := run("gcc", phase("compile", 1500, 300000))
	b := run("ccc", phase("compile", 6000, 100000))

	fwd := Compare(a, b)
	rev := Compare(b, a)

	require.NotNil(t, fwd.Phases[0].DurationRatio)
	require.NotNil(t, rev.Phases[0].DurationRatio)
	assert.InDelta(t, 1.0, *fwd.Phases[0].DurationRatio**rev.Phases[0].DurationRatio, 1e-9)
}

func TestCompareMissingPhaseIsMarkedNotZeroed(t *testing.T) {
	a := run("gcc", phase("configure", 100, 1000), phase("compile", 2000, 512000))
	b := run("ccc", phase("configure", 120, 1100))
	b.State = api.RunAborted

	s := Compare(a, b)

	require.Len(t, s.Phases, 2)
	pr := s.Phases[1]
	assert.Equal(t, "compile", pr.Phase)
	assert.Equal(t, api.MissingInB, pr.Missing)
	assert.Nil(t, pr.DurationRatio)
	assert.Nil(t, pr.WallMillisB)
	require.NotNil(t, pr.WallMillisA)
	assert.Equal(t, int64(2000), *pr.WallMillisA)

	require.Len(t, s.Gaps, 1)
	assert.Contains(t, s.Gaps[0], "compile")
	assert.Contains(t, s.Gaps[0], "ccc")
	assert.Equal(t, api.RunAborted, s.StateB)
}

func TestCompareZeroDenominatorYieldsNoRatio(t *testing.T) {
	a := run("gcc", phase("compile", 2000, 512000))
	b := run("ccc", phase("compile", 0, 0))

	s := Compare(a, b)

	assert.Nil(t, s.Phases[0].DurationRatio)
	assert.Nil(t, s.Phases[0].MemoryRatio)
	assert.Equal(t, api.MissingNone, s.Phases[0].Missing)
}

func TestCompareOperationAnomalousSlowdown(t *testing.T) {
	a := run("gcc")
	a.Operations = []api.OperationResult{
		{ID: "1", Desc: "point lookup", Seconds: 0.05},
		{ID: "2", Desc: "full scan", Seconds: 1.0},
	}
	b := run("ccc")
	b.Operations = []api.OperationResult{
		{ID: "1", Desc: "point lookup", Seconds: 50.0},
		{ID: "2", Desc: "full scan", Seconds: 2.0},
	}

	s := Compare(a, b)

	require.Len(t, s.Operations, 2)
	assert.True(t, s.Operations[0].AnomalousSlowdown)
	assert.False(t, s.Operations[1].AnomalousSlowdown)
	require.NotNil(t, s.Operations[1].Ratio)
	assert.InDelta(t, 0.5, *s.Operations[1].Ratio, 1e-9)
}

func TestCompareOperationMissingOnOneSide(t *testing.T) {
	a := run("gcc")
	a.Operations = []api.OperationResult{{ID: "1", Seconds: 0.2}, {ID: "2", Seconds: 0.3}}
	b := run("ccc")
	b.Operations = []api.OperationResult{{ID: "1", Seconds: 0.25}}

	s := Compare(a, b)

	require.Len(t, s.Operations, 2)
	assert.Equal(t, api.MissingInB, s.Operations[1].Missing)
	assert.Nil(t, s.Operations[1].Ratio)
	assert.False(t, s.Operations[1].AnomalousSlowdown)
	require.Len(t, s.Gaps, 1)
}

func TestCompareArtifactSizes(t *testing.T) {
	a := run("gcc")
	a.Artifacts = []api.ArtifactRecord{
		{Phase: "compile", Variant: "O0", Bytes: 1000, Sha256: "aa"},
	}
	b := run("ccc")
	b.Artifacts = []api.ArtifactRecord{
		{Phase: "compile", Variant: "O0", Bytes: 4000, Sha256: "bb"},
		{Phase: "compile", Variant: "O2", Bytes: 4000, Sha256: "bb"},
	}

	s := Compare(a, b)

	require.Len(t, s.Artifacts, 2)
	require.NotNil(t, s.Artifacts[0].SizeRatio)
	assert.InDelta(t, 0.25, *s.Artifacts[0].SizeRatio, 1e-9)
	assert.Equal(t, api.MissingInA, s.Artifacts[1].Missing)
}

func TestNoOpAxisFlaggedOnByteIdenticalVariants(t *testing.T) {
	a := run("gcc")
	a.Artifacts = []api.ArtifactRecord{
		{Phase: "compile-O0", Axis: "opt-level", Variant: "O0", Bytes: 100, Sha256: "samesame"},
		{Phase: "compile-O2", Axis: "opt-level", Variant: "O2", Bytes: 100, Sha256: "samesame"},
	}
	b := run("ccc")
	b.Artifacts = []api.ArtifactRecord{
		{Phase: "compile-O0", Axis: "opt-level", Variant: "O0", Bytes: 100, Sha256: "one"},
		{Phase: "compile-O2", Axis: "opt-level", Variant: "O2", Bytes: 120, Sha256: "two"},
	}

	s := Compare(a, b)

	require.Len(t, s.NoOpAxes, 1)
	flag := s.NoOpAxes[0]
	assert.Equal(t, "gcc", flag.Subject)
	assert.Equal(t, "opt-level", flag.Axis)
	assert.Equal(t, "samesame", flag.Sha256)
}

func TestNoOpAxisNeedsAtLeastTwoVariants(t *testing.T) {
	a := run("gcc")
	a.Artifacts = []api.ArtifactRecord{
		{Phase: "compile", Axis: "opt-level", Variant: "O0", Bytes: 100, Sha256: "solo"},
	}
	s := Compare(a, run("ccc"))
	assert.Empty(t, s.NoOpAxes)
}

func TestCompareTallyPassthrough(t *testing.T) {
	a := run("gcc")
	a.Tallies = []api.Tally{{Phase: "verify", Total: 100, Failed: 0}}
	b := run("ccc")
	b.Tallies = []api.Tally{{Phase: "verify", Total: 100, Failed: 3}}

	s := Compare(a, b)

	require.Len(t, s.Tallies, 1)
	tp := s.Tallies[0]
	require.NotNil(t, tp.FailedA)
	require.NotNil(t, tp.FailedB)
	assert.Equal(t, int64(0), *tp.FailedA)
	assert.Equal(t, int64(3), *tp.FailedB)
	assert.Equal(t, api.MissingNone, tp.Missing)
}

func TestCompareTallyMissingOnOneSide(t *testing.T) {
	a := run("gcc")
	a.Tallies = []api.Tally{{Phase: "verify", Total: 100, Failed: 2}}
	b := run("ccc")

	s := Compare(a, b)

	require.Len(t, s.Tallies, 1)
	assert.Equal(t, api.MissingInB, s.Tallies[0].Missing)
	assert.Nil(t, s.Tallies[0].TotalB)
	require.Len(t, s.Gaps, 1)
}

func TestUnionOrderedKeepsDeclarationOrder(t *testing.T) {
	got := unionOrdered([]string{"configure", "compile"}, []string{"configure", "compile", "run"})
	assert.Equal(t, []string{"configure", "compile", "run"}, got)
}
