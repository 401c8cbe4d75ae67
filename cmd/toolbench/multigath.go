package main

import (
	"github.com/toolbench/toolbench/api"
	"github.com/toolbench/toolbench/internal/bench"
)

// multiGatherer fans every progress event out to all configured gatherers.
type multiGatherer []bench.Gatherer

func (m multiGatherer) StartRun(runID, subject, workload, systemInfo string) {
	for _, g := range m {
		g.StartRun(runID, subject, workload, systemInfo)
	}
}

func (m multiGatherer) StartPhase(phase string) {
	for _, g := range m {
		g.StartPhase(phase)
	}
}

func (m multiGatherer) FinishPhase(result *api.PhaseResult, logTail string) {
	for _, g := range m {
		g.FinishPhase(result, logTail)
	}
}

func (m multiGatherer) SkipPhase(phase string) {
	for _, g := range m {
		g.SkipPhase(phase)
	}
}

func (m multiGatherer) FinishRun(state api.RunState, errIfAny error) {
	for _, g := range m {
		g.FinishRun(state, errIfAny)
	}
}
