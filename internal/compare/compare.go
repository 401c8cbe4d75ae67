// Package compare reduces two subjects' run results into a single
// comparison summary. The reduction is pure: it reads persisted results and
// never re-executes anything.
package compare

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/toolbench/toolbench/api"
)

// anomalousFactor is the slowdown ratio beyond which an operation is
// flagged for manual review. Three orders of magnitude almost always means
// a pathological plan or a broken build, not an honest slowdown.
const anomalousFactor = 1000.0

// Compare reduces the two runs into a summary. Ratios are A over B. A
// phase, operation or artifact present on one side only is reported with an
// explicit missing marker instead of a fabricated zero.
func Compare(a, b *api.RunResult) *api.ComparisonSummary {
	s := &api.ComparisonSummary{
		SubjectA: a.Subject.Label,
		SubjectB: b.Subject.Label,
		RunIDA:   a.RunID,
		RunIDB:   b.RunID,
		StateA:   a.State,
		StateB:   b.State,
	}

	s.Phases = comparePhases(a, b, s)
	s.Operations = compareOperations(a, b, s)
	s.Artifacts = compareArtifacts(a, b, s)
	s.Tallies = compareTallies(a, b, s)
	s.NoOpAxes = append(noOpAxes(a), noOpAxes(b)...)

	return s
}

func comparePhases(a, b *api.RunResult, s *api.ComparisonSummary) []api.PhaseRatio {
	var out []api.PhaseRatio
	for _, name := range unionOrdered(phaseNames(a), phaseNames(b)) {
		pa, pb := a.Phase(name), b.Phase(name)
		pr := api.PhaseRatio{Phase: name}
		switch {
		case pa == nil:
			pr.Missing = api.MissingInA
			pr.WallMillisB = i64(pb.WallMillis)
			pr.MaxRSSKiBB = i64(pb.MaxRSSKiB)
			s.Gaps = append(s.Gaps, gap("phase", name, s.SubjectA))
		case pb == nil:
			pr.Missing = api.MissingInB
			pr.WallMillisA = i64(pa.WallMillis)
			pr.MaxRSSKiBA = i64(pa.MaxRSSKiB)
			s.Gaps = append(s.Gaps, gap("phase", name, s.SubjectB))
		default:
			pr.WallMillisA = i64(pa.WallMillis)
			pr.WallMillisB = i64(pb.WallMillis)
			pr.MaxRSSKiBA = i64(pa.MaxRSSKiB)
			pr.MaxRSSKiBB = i64(pb.MaxRSSKiB)
			pr.DurationRatio = ratio(float64(pa.WallMillis), float64(pb.WallMillis))
			pr.MemoryRatio = ratio(float64(pa.MaxRSSKiB), float64(pb.MaxRSSKiB))
		}
		out = append(out, pr)
	}
	return out
}

func compareOperations(a, b *api.RunResult, s *api.ComparisonSummary) []api.OperationRatio {
	opsA := opIndex(a)
	opsB := opIndex(b)

	var out []api.OperationRatio
	for _, id := range unionOrdered(opIDs(a), opIDs(b)) {
		oa, okA := opsA[id]
		ob, okB := opsB[id]
		or := api.OperationRatio{ID: id}
		switch {
		case !okA:
			or.Missing = api.MissingInA
			or.Desc = ob.Desc
			or.SecondsB = f64(ob.Seconds)
			s.Gaps = append(s.Gaps, gap("operation", id, s.SubjectA))
		case !okB:
			or.Missing = api.MissingInB
			or.Desc = oa.Desc
			or.SecondsA = f64(oa.Seconds)
			s.Gaps = append(s.Gaps, gap("operation", id, s.SubjectB))
		default:
			or.Desc = oa.Desc
			or.SecondsA = f64(oa.Seconds)
			or.SecondsB = f64(ob.Seconds)
			or.Ratio = ratio(oa.Seconds, ob.Seconds)
			or.AnomalousSlowdown = anomalous(oa.Seconds, ob.Seconds)
		}
		out = append(out, or)
	}
	return out
}

func compareArtifacts(a, b *api.RunResult, s *api.ComparisonSummary) []api.ArtifactRatio {
	artA := artIndex(a)
	artB := artIndex(b)

	var out []api.ArtifactRatio
	for _, key := range unionOrdered(artKeys(a), artKeys(b)) {
		ra, okA := artA[key]
		rb, okB := artB[key]
		ar := api.ArtifactRatio{}
		switch {
		case !okA:
			ar.Phase, ar.Variant = rb.Phase, rb.Variant
			ar.Missing = api.MissingInA
			ar.BytesB = i64(rb.Bytes)
			s.Gaps = append(s.Gaps, gap("artifact", key, s.SubjectA))
		case !okB:
			ar.Phase, ar.Variant = ra.Phase, ra.Variant
			ar.Missing = api.MissingInB
			ar.BytesA = i64(ra.Bytes)
			s.Gaps = append(s.Gaps, gap("artifact", key, s.SubjectB))
		default:
			ar.Phase, ar.Variant = ra.Phase, ra.Variant
			ar.BytesA = i64(ra.Bytes)
			ar.BytesB = i64(rb.Bytes)
			ar.SizeRatio = ratio(float64(ra.Bytes), float64(rb.Bytes))
		}
		out = append(out, ar)
	}
	return out
}

func compareTallies(a, b *api.RunResult, s *api.ComparisonSummary) []api.TallyPair {
	talA := tallyIndex(a)
	talB := tallyIndex(b)

	var out []api.TallyPair
	for _, phase := range unionOrdered(tallyPhases(a), tallyPhases(b)) {
		ta, okA := talA[phase]
		tb, okB := talB[phase]
		tp := api.TallyPair{Phase: phase}
		switch {
		case !okA:
			tp.Missing = api.MissingInA
			tp.TotalB, tp.FailedB = i64(tb.Total), i64(tb.Failed)
			s.Gaps = append(s.Gaps, gap("tally", phase, s.SubjectA))
		case !okB:
			tp.Missing = api.MissingInB
			tp.TotalA, tp.FailedA = i64(ta.Total), i64(ta.Failed)
			s.Gaps = append(s.Gaps, gap("tally", phase, s.SubjectB))
		default:
			tp.TotalA, tp.FailedA = i64(ta.Total), i64(ta.Failed)
			tp.TotalB, tp.FailedB = i64(tb.Total), i64(tb.Failed)
		}
		out = append(out, tp)
	}
	return out
}

func tallyPhases(run *api.RunResult) []string {
	phases := make([]string, len(run.Tallies))
	for i, t := range run.Tallies {
		phases[i] = t.Phase
	}
	return phases
}

func tallyIndex(run *api.RunResult) map[string]api.Tally {
	idx := make(map[string]api.Tally, len(run.Tallies))
	for _, t := range run.Tallies {
		idx[t.Phase] = t
	}
	return idx
}

// noOpAxes finds configuration axes whose variants all produced byte
// identical artifacts for one subject. Two variants with the same hash mean
// the option that distinguishes them did nothing.
func noOpAxes(run *api.RunResult) []api.NoOpFlag {
	byAxis := map[string][]api.ArtifactRecord{}
	var order []string
	for _, rec := range run.Artifacts {
		if rec.Axis == "" {
			continue
		}
		if _, seen := byAxis[rec.Axis]; !seen {
			order = append(order, rec.Axis)
		}
		byAxis[rec.Axis] = append(byAxis[rec.Axis], rec)
	}

	var flags []api.NoOpFlag
	for _, axis := range order {
		recs := byAxis[axis]
		if len(recs) < 2 {
			continue
		}
		identical := true
		for _, rec := range recs[1:] {
			if rec.Sha256 != recs[0].Sha256 {
				identical = false
				break
			}
		}
		if identical {
			flags = append(flags, api.NoOpFlag{
				Subject: run.Subject.Label,
				Axis:    axis,
				Sha256:  recs[0].Sha256,
			})
		}
	}
	return flags
}

// unionOrdered merges two name sequences, keeping a's order and appending
// names only b has, in b's order.
func unionOrdered(a, b []string) []string {
	seen := mapset.NewThreadUnsafeSet(a...)
	out := append([]string(nil), a...)
	for _, name := range b {
		if seen.Add(name) {
			out = append(out, name)
		}
	}
	return out
}

func phaseNames(run *api.RunResult) []string {
	names := make([]string, len(run.Phases))
	for i, p := range run.Phases {
		names[i] = p.Phase
	}
	return names
}

func opIDs(run *api.RunResult) []string {
	ids := make([]string, len(run.Operations))
	for i, op := range run.Operations {
		ids[i] = op.ID
	}
	return ids
}

func opIndex(run *api.RunResult) map[string]api.OperationResult {
	idx := make(map[string]api.OperationResult, len(run.Operations))
	for _, op := range run.Operations {
		idx[op.ID] = op
	}
	return idx
}

func artKey(rec api.ArtifactRecord) string {
	if rec.Variant == "" {
		return rec.Phase
	}
	return rec.Phase + "/" + rec.Variant
}

func artKeys(run *api.RunResult) []string {
	keys := make([]string, len(run.Artifacts))
	for i, rec := range run.Artifacts {
		keys[i] = artKey(rec)
	}
	return keys
}

func artIndex(run *api.RunResult) map[string]api.ArtifactRecord {
	idx := make(map[string]api.ArtifactRecord, len(run.Artifacts))
	for _, rec := range run.Artifacts {
		idx[artKey(rec)] = rec
	}
	return idx
}

func gap(kind, name, missingFrom string) string {
	return fmt.Sprintf("%s %s: no result for %s", kind, name, missingFrom)
}

// ratio returns a/b, or nil when b is zero. A nil ratio renders as absent,
// never as zero.
func ratio(a, b float64) *float64 {
	if b == 0 {
		return nil
	}
	v := a / b
	return &v
}

// anomalous reports whether either side is more than anomalousFactor times
// slower than the other.
func anomalous(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	return a/b >= anomalousFactor || b/a >= anomalousFactor
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
