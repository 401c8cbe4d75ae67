package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbench/toolbench/api"
	"github.com/toolbench/toolbench/internal/workload"
)

type recordingGatherer struct {
	started  []string
	finished []string
	skipped  []string
	state    api.RunState
	runErr   error
	done     bool
}

func (g *recordingGatherer) StartRun(runID, subject, wl, sysInfo string) {}
func (g *recordingGatherer) StartPhase(phase string)                     { g.started = append(g.started, phase) }
func (g *recordingGatherer) FinishPhase(res *api.PhaseResult, logTail string) {
	g.finished = append(g.finished, res.Phase)
}
func (g *recordingGatherer) SkipPhase(phase string) { g.skipped = append(g.skipped, phase) }
func (g *recordingGatherer) FinishRun(state api.RunState, errIfAny error) {
	g.state = state
	g.runErr = errIfAny
	g.done = true
}

func shPhase(name, script string) workload.Phase {
	return workload.Phase{Name: name, Argv: []string{"${TOOL}", "-c", script}}
}

func testContext(t *testing.T, phases ...workload.Phase) RunContext {
	t.Helper()
	return RunContext{
		RunID:        "test-run",
		Subject:      api.Subject{Label: "sh", ToolPath: "/bin/sh"},
		Workload:     &workload.Workload{SamplerIntervalMs: 20, Phases: phases},
		WorkloadName: "shell",
		BaseDir:      t.TempDir(),
		OutDir:       filepath.Join(t.TempDir(), "out"),
	}
}

func TestRunSubjectCompletes(t *testing.T) {
	rc := testContext(t,
		shPhase("prepare", "echo preparing"),
		shPhase("build", "echo 'elapsed 1.250 seconds'; echo 'elapsed 0.500 seconds'"),
	)
	rc.Workload.Phases[1].OpPattern = `elapsed ([0-9.]+) seconds`
	rc.Workload.Phases[1].OpLabels = []string{"first", "second"}

	gath := &recordingGatherer{}
	run, err := RunSubject(rc, gath)
	require.NoError(t, err)

	assert.Equal(t, api.RunCompleted, run.State)
	require.Len(t, run.Phases, 2)
	assert.Equal(t, "prepare", run.Phases[0].Phase)
	assert.Equal(t, int64(0), run.Phases[0].ExitCode)
	assert.True(t, run.FinishedAt.After(run.StartedAt) || run.FinishedAt.Equal(run.StartedAt))

	require.Len(t, run.Operations, 2)
	assert.Equal(t, "first", run.Operations[0].Desc)
	assert.InDelta(t, 1.25, run.Operations[0].Seconds, 1e-9)
	assert.InDelta(t, 0.5, run.Operations[1].Seconds, 1e-9)

	assert.Equal(t, []string{"prepare", "build"}, gath.started)
	assert.Equal(t, []string{"prepare", "build"}, gath.finished)
	assert.Empty(t, gath.skipped)
	assert.True(t, gath.done)
	assert.Equal(t, api.RunCompleted, gath.state)

	loaded, err := LoadRun(rc.OutDir)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, loaded.RunID)
	assert.Len(t, loaded.Phases, 2)

	ops, err := ReadOperationsTSV(OperationsPath(rc.OutDir))
	require.NoError(t, err)
	assert.Equal(t, run.Operations, ops)

	info, err := LoadSystemInfo(rc.OutDir)
	require.NoError(t, err)
	assert.NotZero(t, info.NumCPU)
}

func TestRunSubjectOperationIDsUniqueAcrossPhases(t *testing.T) {
	rc := testContext(t,
		shPhase("run-O0", "echo 'elapsed 0.100 seconds'; echo 'elapsed 0.200 seconds'"),
		shPhase("run-O2", "echo 'elapsed 0.300 seconds'; echo 'elapsed 0.400 seconds'"),
	)
	for i := range rc.Workload.Phases {
		rc.Workload.Phases[i].OpPattern = `elapsed ([0-9.]+) seconds`
	}

	run, err := RunSubject(rc, &recordingGatherer{})
	require.NoError(t, err)

	require.Len(t, run.Operations, 4)
	seen := map[string]bool{}
	for _, op := range run.Operations {
		assert.False(t, seen[op.ID], "operation ID %q recorded twice in one run", op.ID)
		seen[op.ID] = true
	}
	assert.Equal(t, "run-O0/1", run.Operations[0].ID)
	assert.Equal(t, "run-O2/1", run.Operations[2].ID)
	assert.InDelta(t, 0.1, run.Operations[0].Seconds, 1e-9)
	assert.InDelta(t, 0.3, run.Operations[2].Seconds, 1e-9)
}

func TestRunSubjectAbortsOnFailure(t *testing.T) {
	rc := testContext(t,
		shPhase("first", "true"),
		shPhase("second", "exit 3"),
		shPhase("third", "echo never reached"),
	)
	rc.Workload.Phases[1].AbortOnFailure = true

	gath := &recordingGatherer{}
	run, err := RunSubject(rc, gath)
	require.NoError(t, err)

	assert.Equal(t, api.RunAborted, run.State)
	require.Len(t, run.Phases, 2)
	assert.Equal(t, int64(3), run.Phases[1].ExitCode)
	assert.Nil(t, run.Phase("third"))

	assert.Equal(t, []string{"third"}, gath.skipped)
	assert.Equal(t, api.RunAborted, gath.state)
	assert.NoError(t, gath.runErr)
}

func TestRunSubjectToleratedFailureContinues(t *testing.T) {
	rc := testContext(t,
		shPhase("flaky", "exit 1"),
		shPhase("after", "echo still here"),
	)

	gath := &recordingGatherer{}
	run, err := RunSubject(rc, gath)
	require.NoError(t, err)

	assert.Equal(t, api.RunCompleted, run.State)
	require.Len(t, run.Phases, 2)
	assert.Equal(t, int64(1), run.Phases[0].ExitCode)
	assert.Equal(t, int64(0), run.Phases[1].ExitCode)
}

func TestRunSubjectRecordsArtifacts(t *testing.T) {
	rc := testContext(t,
		shPhase("emit", "printf hello > out.bin"),
	)
	rc.Workload.Phases[0].Artifact = "out.bin"
	rc.Workload.Phases[0].Axis = "opt-level"
	rc.Workload.Phases[0].Variant = "O0"

	run, err := RunSubject(rc, &recordingGatherer{})
	require.NoError(t, err)

	require.Len(t, run.Artifacts, 1)
	rec := run.Artifacts[0]
	assert.Equal(t, "emit", rec.Phase)
	assert.Equal(t, "opt-level", rec.Axis)
	assert.Equal(t, "O0", rec.Variant)
	assert.Equal(t, int64(5), rec.Bytes)
	assert.Len(t, rec.Sha256, 64)
}

func TestRunSubjectRerunReplacesPreviousRun(t *testing.T) {
	rc := testContext(t, shPhase("only", "true"))

	_, err := RunSubject(rc, &recordingGatherer{})
	require.NoError(t, err)

	stale := filepath.Join(rc.OutDir, "logs", "leftover.log")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

	_, err = RunSubject(rc, &recordingGatherer{})
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestRunSubjectHardFailureIsFatal(t *testing.T) {
	rc := testContext(t, shPhase("broken", "true"))
	rc.Subject.ToolPath = "/no/such/tool"

	gath := &recordingGatherer{}
	run, err := RunSubject(rc, gath)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Equal(t, api.RunAborted, gath.state)
	assert.Error(t, gath.runErr)
}

func TestRunSubjectValidation(t *testing.T) {
	rc := testContext(t, shPhase("only", "true"))
	rc.Subject.ToolPath = ""
	_, err := RunSubject(rc, &recordingGatherer{})
	assert.ErrorContains(t, err, "tool path")

	rc = testContext(t)
	_, err = RunSubject(rc, &recordingGatherer{})
	assert.ErrorContains(t, err, "no phases")
}

func TestEnvListIsSortedAndFlattened(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, got)
	assert.Nil(t, envList(nil))
}

func TestExpandArgvReplacesToolPlaceholder(t *testing.T) {
	got := expandArgv([]string{"${TOOL}", "-O2", "-o", "${TOOL}.out"}, "/usr/bin/cc")
	assert.Equal(t, []string{"/usr/bin/cc", "-O2", "-o", "/usr/bin/cc.out"}, got)
}
