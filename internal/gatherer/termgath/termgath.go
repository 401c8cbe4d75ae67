// Package termgath prints run progress to the terminal, for interactive
// use.
package termgath

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/toolbench/toolbench/api"
)

type TerminalGatherer struct {
	StartedAt time.Time
}

func New() *TerminalGatherer { return &TerminalGatherer{StartedAt: time.Now()} }

var (
	headline = color.New(color.Bold)
	okMark   = color.New(color.FgHiGreen)
	failMark = color.New(color.FgHiRed)
	skipMark = color.New(color.FgHiYellow)
)

func (t *TerminalGatherer) StartRun(runID, subject, workload, systemInfo string) {
	headline.Printf("== Run %s: %s on %s ==\n", runID, subject, workload)
	if systemInfo != "" {
		fmt.Println(systemInfo)
	}
}

func (t *TerminalGatherer) StartPhase(phase string) {
	fmt.Printf("-- Phase %s started --\n", phase)
}

func (t *TerminalGatherer) FinishPhase(result *api.PhaseResult, logTail string) {
	if result.ExitCode == 0 {
		okMark.Printf("-- Phase %s finished --\n", result.Phase)
	} else {
		failMark.Printf("-- Phase %s failed (exit %d) --\n", result.Phase, result.ExitCode)
	}
	fmt.Printf("wall=%dms user=%dms sys=%dms maxrss=%dKiB\n",
		result.WallMillis, result.UserMillis, result.SysMillis, result.MaxRSSKiB)
	if result.ExitCode != 0 && logTail != "" {
		fmt.Printf("log tail:\n%s\n", logTail)
	}
}

func (t *TerminalGatherer) SkipPhase(phase string) {
	skipMark.Printf("-> Phase %s skipped\n", phase)
}

func (t *TerminalGatherer) FinishRun(state api.RunState, errIfAny error) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if errIfAny != nil {
		failMark.Printf("== Run aborted after %s: %s ==\n", dur, errIfAny)
		return
	}
	if state == api.RunAborted {
		failMark.Printf("== Run aborted after %s ==\n", dur)
		return
	}
	okMark.Printf("== Run completed in %s ==\n", dur)
}
