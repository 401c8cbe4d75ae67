// Package bench orchestrates a subject's phase sequence: it drives every
// phase through the process runner in declared order, brackets the whole
// sequence with the background resource sampler, and persists all results
// to the subject's output directory.
package bench

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/toolbench/toolbench/api"
	"github.com/toolbench/toolbench/internal/artifact"
	"github.com/toolbench/toolbench/internal/procrun"
	"github.com/toolbench/toolbench/internal/sysinfo"
	"github.com/toolbench/toolbench/internal/sysmon"
	"github.com/toolbench/toolbench/internal/workload"
)

// toolPlaceholder in a phase's argv is replaced with the subject's tool
// path before execution.
const toolPlaceholder = "${TOOL}"

// RunContext carries everything one subject run needs. It replaces ambient
// state: components receive it explicitly and nothing is a singleton.
type RunContext struct {
	RunID        string
	Subject      api.Subject
	Workload     *workload.Workload
	WorkloadName string
	// BaseDir anchors relative phase working directories, normally the
	// directory of the workload input.
	BaseDir string
	OutDir  string
}

// Gatherer receives run progress events as they happen.
type Gatherer interface {
	StartRun(runID, subject, workload, systemInfo string)
	StartPhase(phase string)
	FinishPhase(result *api.PhaseResult, logTail string)
	SkipPhase(phase string)
	FinishRun(state api.RunState, errIfAny error)
}

// RunSubject executes all phases of the workload for one subject. The
// returned error is an orchestration failure; a measured command exiting
// non-zero is recorded data, not an error. Rerunning for the same output
// directory replaces the previous run entirely.
func RunSubject(rc RunContext, gath Gatherer) (*api.RunResult, error) {
	if err := validate(rc); err != nil {
		return nil, err
	}

	if err := initOutDir(rc.OutDir); err != nil {
		return nil, err
	}

	hostInfo := sysinfo.Collect()
	if err := saveSystemInfo(rc.OutDir, hostInfo); err != nil {
		return nil, err
	}

	gath.StartRun(rc.RunID, rc.Subject.Label, rc.WorkloadName, hostInfo.String())

	run := &api.RunResult{
		RunID:     rc.RunID,
		Subject:   rc.Subject,
		State:     api.RunCompleted,
		StartedAt: time.Now(),
	}

	baseline, err := sysmon.MemUsedKiB()
	if err != nil {
		slog.Warn("could not read baseline memory", "error", err)
	}
	run.BaselineMemKiB = baseline

	sampler, err := sysmon.Start(
		rc.Workload.SamplerInterval(),
		rc.Workload.MatchProcs,
		SysmonLogPath(rc.OutDir),
	)
	if err != nil {
		err = fmt.Errorf("failed to start sampler: %w", err)
		gath.FinishRun(api.RunAborted, err)
		return nil, err
	}

	artifacts := artifact.NewStore()

	abortedAt := -1
	for i, phase := range rc.Workload.Phases {
		gath.StartPhase(phase.Name)
		slog.Info("running phase",
			"subject", rc.Subject.Label, "phase", phase.Name)

		logPath := PhaseLogPath(rc.OutDir, phase.Name)
		metrics, err := procrun.Run(procrun.Spec{
			Argv:    expandArgv(phase.Argv, rc.Subject.ToolPath),
			Dir:     resolveDir(rc.BaseDir, phase.Dir),
			Env:     envList(rc.Subject.Env),
			LogPath: logPath,
		})
		if err != nil {
			// Runner hard failure: no result exists for this phase and the
			// comparison cannot be salvaged.
			sampler.Stop()
			err = fmt.Errorf("phase %s: %w", phase.Name, err)
			gath.FinishRun(api.RunAborted, err)
			return nil, err
		}

		res := phaseResult(phase.Name, logPath, metrics)
		run.Phases = append(run.Phases, *res)
		if err := savePhaseResult(rc.OutDir, res); err != nil {
			sampler.Stop()
			gath.FinishRun(api.RunAborted, err)
			return nil, err
		}
		gath.FinishPhase(res, logTail(logPath))

		if phase.Artifact != "" && metrics.ExitCode == 0 {
			rec, err := recordArtifact(artifacts, rc, phase)
			if err != nil {
				slog.Warn("could not record artifact",
					"phase", phase.Name, "error", err)
			} else {
				run.Artifacts = append(run.Artifacts, rec)
			}
		}

		if phase.OpPattern != "" {
			ops, err := ParseOperations(logPath, phase.Name, phase.OpPattern, phase.OpLabels)
			if err != nil {
				slog.Warn("could not parse operations",
					"phase", phase.Name, "error", err)
			} else {
				run.Operations = append(run.Operations, ops...)
			}
		}

		if phase.TallyPattern != "" {
			tally, err := ParseTally(logPath, phase.Name, phase.TallyPattern)
			if err != nil {
				slog.Warn("could not parse tally",
					"phase", phase.Name, "error", err)
			} else if tally != nil {
				run.Tallies = append(run.Tallies, *tally)
			}
		}

		if phase.AbortOnFailure && metrics.ExitCode != 0 {
			slog.Warn("aborting remaining phases",
				"phase", phase.Name, "exit_code", metrics.ExitCode)
			run.State = api.RunAborted
			abortedAt = i
			break
		}
	}

	if abortedAt >= 0 {
		// Skipped phases are simply absent from the results, never recorded
		// as failed.
		for _, phase := range rc.Workload.Phases[abortedAt+1:] {
			gath.SkipPhase(phase.Name)
		}
	}

	sampler.Stop()

	post, err := sysmon.MemUsedKiB()
	if err != nil {
		slog.Warn("could not read post-run memory", "error", err)
	}
	run.PostMemKiB = post
	run.FinishedAt = time.Now()

	if len(run.Operations) > 0 {
		if err := WriteOperationsTSV(OperationsPath(rc.OutDir), run.Operations); err != nil {
			gath.FinishRun(api.RunAborted, err)
			return nil, err
		}
	}
	if err := SaveRun(rc.OutDir, run); err != nil {
		gath.FinishRun(api.RunAborted, err)
		return nil, err
	}

	gath.FinishRun(run.State, nil)
	return run, nil
}

func validate(rc RunContext) error {
	switch {
	case rc.RunID == "":
		return fmt.Errorf("run id is empty")
	case rc.Subject.Label == "":
		return fmt.Errorf("subject label is empty")
	case rc.Subject.ToolPath == "":
		return fmt.Errorf("subject tool path is empty")
	case rc.Workload == nil || len(rc.Workload.Phases) == 0:
		return fmt.Errorf("workload has no phases")
	case rc.OutDir == "":
		return fmt.Errorf("output directory is empty")
	}
	return nil
}

func phaseResult(name, logPath string, m *procrun.Metrics) *api.PhaseResult {
	return &api.PhaseResult{
		Phase:       name,
		ExitCode:    m.ExitCode,
		WallMillis:  m.WallTime.Milliseconds(),
		UserMillis:  m.UserTime.Milliseconds(),
		SysMillis:   m.SysTime.Milliseconds(),
		MaxRSSKiB:   m.MaxRSSKiB,
		MajorFaults: m.MajorFaults,
		MinorFaults: m.MinorFaults,
		CtxSwV:      m.CtxSwV,
		CtxSwF:      m.CtxSwF,
		InBlocks:    m.InBlocks,
		OutBlocks:   m.OutBlocks,
		LogPath:     logPath,
	}
}

func recordArtifact(store *artifact.Store, rc RunContext, phase workload.Phase) (api.ArtifactRecord, error) {
	path := phase.Artifact
	if !filepath.IsAbs(path) {
		path = filepath.Join(resolveDir(rc.BaseDir, phase.Dir), path)
	}
	digest, size, err := store.Hash(path)
	if err != nil {
		return api.ArtifactRecord{}, err
	}
	return api.ArtifactRecord{
		Phase:   phase.Name,
		Axis:    phase.Axis,
		Variant: phase.Variant,
		Path:    path,
		Bytes:   size,
		Sha256:  digest,
	}, nil
}

func expandArgv(argv []string, toolPath string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, toolPlaceholder, toolPath)
	}
	return out
}

func resolveDir(baseDir, dir string) string {
	if dir == "" {
		return baseDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

// envList flattens the subject's environment overrides into KEY=VALUE form,
// sorted so runs are reproducible.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
