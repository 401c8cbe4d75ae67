package api

import "time"

// MsgType is a message type for streaming run progress
type MsgType string

// Streaming message type constants
const (
	RunStartMsg    MsgType = "run_start"
	PhaseStartMsg  MsgType = "phase_start"
	PhaseFinishMsg MsgType = "phase_finish"
	PhaseSkipMsg   MsgType = "phase_skip"
	RunFinishMsg   MsgType = "run_finish"
)

// Log excerpt size constraints for streaming
const (
	MaxLogExcerptHeight = 40
	MaxLogExcerptWidth  = 120
)

// Header is the common header for all streaming progress messages
type Header struct {
	RunUuid string  `json:"run_uuid"`
	MsgType MsgType `json:"msg_type"`
}

// RunStart message sent when a subject's run begins
type RunStart struct {
	Header
	Subject     string `json:"subject"`
	Workload    string `json:"workload"`
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

// PhaseStart message sent when a phase begins
type PhaseStart struct {
	Header
	Phase string `json:"phase"`
}

// PhaseFinish message sent when a phase completes
type PhaseFinish struct {
	Header
	Result *PhaseResult `json:"result"`
	// LogExcerpt holds the tail of the captured output, trimmed to the
	// streaming size constraints.
	LogExcerpt string `json:"log_excerpt,omitempty"`
}

// PhaseSkip message sent when a phase is skipped after an abort
type PhaseSkip struct {
	Header
	Phase string `json:"phase"`
}

// RunFinish message sent when the run reaches a terminal state
type RunFinish struct {
	Header
	State        RunState `json:"state"`
	ErrorMessage *string  `json:"error_message"`
}

// Helper function to create a header
func NewHeader(runUuid string, msgType MsgType) Header {
	return Header{
		RunUuid: runUuid,
		MsgType: msgType,
	}
}

// Helper functions to create specific streaming message types
func NewRunStart(runUuid, subject, workload, systemInfo string) RunStart {
	return RunStart{
		Header:      NewHeader(runUuid, RunStartMsg),
		Subject:     subject,
		Workload:    workload,
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewPhaseStart(runUuid, phase string) PhaseStart {
	return PhaseStart{
		Header: NewHeader(runUuid, PhaseStartMsg),
		Phase:  phase,
	}
}

func NewPhaseFinish(runUuid string, result *PhaseResult, logExcerpt string) PhaseFinish {
	return PhaseFinish{
		Header:     NewHeader(runUuid, PhaseFinishMsg),
		Result:     result,
		LogExcerpt: logExcerpt,
	}
}

func NewPhaseSkip(runUuid, phase string) PhaseSkip {
	return PhaseSkip{
		Header: NewHeader(runUuid, PhaseSkipMsg),
		Phase:  phase,
	}
}

func NewRunFinish(runUuid string, state RunState, errorMessage *string) RunFinish {
	return RunFinish{
		Header:       NewHeader(runUuid, RunFinishMsg),
		State:        state,
		ErrorMessage: errorMessage,
	}
}
