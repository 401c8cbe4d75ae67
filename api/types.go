package api

import "time"

// Subject is one toolchain configuration under measurement. It is immutable
// once a benchmark run starts.
type Subject struct {
	Label    string            `json:"label"`
	ToolPath string            `json:"tool_path"`
	Env      map[string]string `json:"env,omitempty"`
}

// PhaseResult is the outcome of running one phase for one subject. Exactly
// one exists per (subject, phase) pair per run; reruns produce a new run
// directory, never a mutation of an old result.
type PhaseResult struct {
	Phase    string `json:"phase"`
	ExitCode int64  `json:"exit_code"`

	WallMillis int64 `json:"wall_ms"`
	UserMillis int64 `json:"user_ms"`
	SysMillis  int64 `json:"sys_ms"`

	MaxRSSKiB   int64 `json:"max_rss_kib"`
	MajorFaults int64 `json:"major_faults"`
	MinorFaults int64 `json:"minor_faults"`
	CtxSwV      int64 `json:"ctx_sw_v"`
	CtxSwF      int64 `json:"ctx_sw_f"`
	InBlocks    int64 `json:"in_blocks"`
	OutBlocks   int64 `json:"out_blocks"`

	LogPath string `json:"log_path"`
}

// SamplerRecord is one timestamped system snapshot taken by the background
// resource sampler.
type SamplerRecord struct {
	UnixMillis  int64   `json:"unix_ms"`
	CPUPct      float64 `json:"cpu_pct"`
	MemUsedKiB  int64   `json:"mem_used_kib"`
	MemTotalKiB int64   `json:"mem_total_kib"`
	MemPct      float64 `json:"mem_pct"`
	SwapUsedKiB int64   `json:"swap_used_kib"`
	Load1       float64 `json:"load1"`
	Load5       float64 `json:"load5"`
	Load15      float64 `json:"load15"`
	Procs       int     `json:"procs"`
}

// OperationResult is the elapsed time of one measurable sub-step inside a
// phase, e.g. a single SQL statement inside a "run" phase.
type OperationResult struct {
	ID      string  `json:"id"`
	Desc    string  `json:"desc,omitempty"`
	Seconds float64 `json:"seconds"`
}

// ArtifactRecord describes one output artifact produced by a phase, hashed
// so that nominally different configurations can be checked for byte
// identity.
type ArtifactRecord struct {
	Phase   string `json:"phase"`
	Axis    string `json:"axis,omitempty"`
	Variant string `json:"variant,omitempty"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Sha256  string `json:"sha256"`
}

// Tally aggregates pass/fail counts reported by one phase, e.g. a crash
// test suite run inside a verify phase.
type Tally struct {
	Phase  string `json:"phase"`
	Total  int64  `json:"total"`
	Failed int64  `json:"failed"`
}

// RunState is the terminal state of a subject's phase sequence.
type RunState string

const (
	RunCompleted RunState = "completed"
	RunAborted   RunState = "aborted"
)

// RunResult is the persisted manifest of one subject's full run.
type RunResult struct {
	RunID   string   `json:"run_id"`
	Subject Subject  `json:"subject"`
	State   RunState `json:"state"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	BaselineMemKiB int64 `json:"baseline_mem_kib"`
	PostMemKiB     int64 `json:"post_mem_kib"`

	Phases     []PhaseResult     `json:"phases"`
	Artifacts  []ArtifactRecord  `json:"artifacts,omitempty"`
	Operations []OperationResult `json:"operations,omitempty"`
	Tallies    []Tally           `json:"tallies,omitempty"`
}

// Phase returns the result for the named phase, or nil when the phase was
// never executed (e.g. skipped after an abort).
func (r *RunResult) Phase(name string) *PhaseResult {
	for i := range r.Phases {
		if r.Phases[i].Phase == name {
			return &r.Phases[i]
		}
	}
	return nil
}
