package natsgath

import (
	"github.com/nats-io/nats.go"

	"github.com/toolbench/toolbench/api"
)

type natsGatherer struct {
	nc      *nats.Conn
	subject string
	runUuid string
}

func (s *natsGatherer) StartRun(runID, subject, workload, systemInfo string) {
	s.send(api.NewRunStart(s.runUuid, subject, workload, systemInfo))
}

func (s *natsGatherer) StartPhase(phase string) {
	s.send(api.NewPhaseStart(s.runUuid, phase))
}

func (s *natsGatherer) FinishPhase(result *api.PhaseResult, logTail string) {
	excerpt := trimStrToRect(logTail, api.MaxLogExcerptHeight, api.MaxLogExcerptWidth)
	s.send(api.NewPhaseFinish(s.runUuid, result, excerpt))
}

func (s *natsGatherer) SkipPhase(phase string) {
	s.send(api.NewPhaseSkip(s.runUuid, phase))
}

func (s *natsGatherer) FinishRun(state api.RunState, errIfAny error) {
	var errMsg *string
	if errIfAny != nil {
		m := errIfAny.Error()
		errMsg = &m
	}
	s.send(api.NewRunFinish(s.runUuid, state, errMsg))
}
