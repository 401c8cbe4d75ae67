package api

// MissingSide marks which side of a comparison lacks a phase or operation.
type MissingSide string

const (
	MissingNone MissingSide = ""
	MissingInA  MissingSide = "a"
	MissingInB  MissingSide = "b"
)

// PhaseRatio compares one phase across the two subjects. Ratio fields are
// nil when either side is missing or the denominator is zero; a missing
// side is never defaulted to zero or one.
type PhaseRatio struct {
	Phase string `json:"phase"`

	WallMillisA *int64 `json:"wall_ms_a,omitempty"`
	WallMillisB *int64 `json:"wall_ms_b,omitempty"`
	MaxRSSKiBA  *int64 `json:"max_rss_kib_a,omitempty"`
	MaxRSSKiBB  *int64 `json:"max_rss_kib_b,omitempty"`

	DurationRatio *float64 `json:"duration_ratio,omitempty"`
	MemoryRatio   *float64 `json:"memory_ratio,omitempty"`

	Missing MissingSide `json:"missing,omitempty"`
}

// OperationRatio compares one in-phase operation across the two subjects.
type OperationRatio struct {
	ID   string `json:"id"`
	Desc string `json:"desc,omitempty"`

	SecondsA *float64 `json:"seconds_a,omitempty"`
	SecondsB *float64 `json:"seconds_b,omitempty"`
	Ratio    *float64 `json:"ratio,omitempty"`

	// AnomalousSlowdown is set when one side is more than three orders of
	// magnitude slower than the other. A reporting heuristic for manual
	// review, not a correctness check.
	AnomalousSlowdown bool `json:"anomalous_slowdown,omitempty"`

	Missing MissingSide `json:"missing,omitempty"`
}

// ArtifactRatio compares artifact sizes for one (phase, variant) pair.
type ArtifactRatio struct {
	Phase   string `json:"phase"`
	Variant string `json:"variant,omitempty"`

	BytesA *int64 `json:"bytes_a,omitempty"`
	BytesB *int64 `json:"bytes_b,omitempty"`

	SizeRatio *float64 `json:"size_ratio,omitempty"`

	Missing MissingSide `json:"missing,omitempty"`
}

// TallyPair places the two subjects' pass/fail counts for one phase side by
// side.
type TallyPair struct {
	Phase string `json:"phase"`

	TotalA  *int64 `json:"total_a,omitempty"`
	FailedA *int64 `json:"failed_a,omitempty"`
	TotalB  *int64 `json:"total_b,omitempty"`
	FailedB *int64 `json:"failed_b,omitempty"`

	Missing MissingSide `json:"missing,omitempty"`
}

// NoOpFlag marks a configuration axis whose variants produced byte-identical
// artifacts for one subject, implying the differentiating option had no
// effect.
type NoOpFlag struct {
	Subject string `json:"subject"`
	Axis    string `json:"axis"`
	Sha256  string `json:"sha256"`
}

// ComparisonSummary is the derived, read-only aggregate over two subjects'
// run results. Ratios are subject A over subject B throughout.
type ComparisonSummary struct {
	SubjectA string `json:"subject_a"`
	SubjectB string `json:"subject_b"`
	RunIDA   string `json:"run_id_a"`
	RunIDB   string `json:"run_id_b"`

	StateA RunState `json:"state_a"`
	StateB RunState `json:"state_b"`

	Phases     []PhaseRatio     `json:"phases"`
	Operations []OperationRatio `json:"operations,omitempty"`
	Artifacts  []ArtifactRatio  `json:"artifacts,omitempty"`
	Tallies    []TallyPair      `json:"tallies,omitempty"`
	NoOpAxes   []NoOpFlag       `json:"no_op_axes,omitempty"`

	// Gaps lists every phase or operation present on one side only, in
	// human-readable form, so data-quality holes are surfaced rather than
	// silently dropped.
	Gaps []string `json:"gaps,omitempty"`
}
