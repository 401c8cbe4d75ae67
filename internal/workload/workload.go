// Package workload loads benchmark workload definitions from TOML files. A
// workload is a fixed, ordered list of phases driven identically for every
// subject so the comparison stays fair.
package workload

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Phase is one ordered step of a workload's build/run lifecycle.
type Phase struct {
	Name string   `toml:"name"`
	Argv []string `toml:"argv"`
	// Dir is the working directory for the phase command, relative to the
	// workload input directory when not absolute.
	Dir string `toml:"dir"`
	// AbortOnFailure skips all remaining phases when this phase exits
	// non-zero.
	AbortOnFailure bool `toml:"abort_on_failure"`

	// Artifact optionally names a file produced by the phase, recorded with
	// size and content hash. Axis and Variant tie artifacts of nominally
	// different configurations together (e.g. axis "opt-level", variants
	// "O0"/"O2") for the no-op detection in the reducer.
	Artifact string `toml:"artifact"`
	Axis     string `toml:"axis"`
	Variant  string `toml:"variant"`

	// OpPattern is a regexp with one capture group matching per-operation
	// elapsed seconds inside the phase's captured output. OpLabels gives
	// human labels for the matches in order.
	OpPattern string   `toml:"op_pattern"`
	OpLabels  []string `toml:"op_labels"`

	// TallyPattern is a regexp with two capture groups (total, failed)
	// matching a pass/fail summary line in the phase's output, e.g. from a
	// crash test suite. The last match wins.
	TallyPattern string `toml:"tally_pattern"`
}

// Workload is a parsed workload definition.
type Workload struct {
	Description       string   `toml:"description"`
	MatchProcs        []string `toml:"match_procs"`
	SamplerIntervalMs int64    `toml:"sampler_interval_ms"`
	Phases            []Phase  `toml:"phases"`
}

const defaultSamplerIntervalMs = 5000

// Parse reads and validates a workload TOML file.
func Parse(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload file: %w", err)
	}
	var w Workload
	if err := toml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if w.SamplerIntervalMs == 0 {
		w.SamplerIntervalMs = defaultSamplerIntervalMs
	}
	if w.SamplerIntervalMs < 0 {
		return nil, fmt.Errorf("sampler_interval_ms must be positive, got %d", w.SamplerIntervalMs)
	}
	if len(w.Phases) == 0 {
		return nil, fmt.Errorf("workload defines no phases")
	}

	seen := make(map[string]bool, len(w.Phases))
	for i, p := range w.Phases {
		if p.Name == "" {
			return nil, fmt.Errorf("phase %d is missing a name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate phase name: %s", p.Name)
		}
		seen[p.Name] = true
		if len(p.Argv) == 0 {
			return nil, fmt.Errorf("phase %s has an empty command", p.Name)
		}
		if p.OpPattern != "" {
			re, err := regexp.Compile(p.OpPattern)
			if err != nil {
				return nil, fmt.Errorf("phase %s op_pattern: %w", p.Name, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("phase %s op_pattern needs a capture group for the seconds value", p.Name)
			}
		}
		if p.TallyPattern != "" {
			re, err := regexp.Compile(p.TallyPattern)
			if err != nil {
				return nil, fmt.Errorf("phase %s tally_pattern: %w", p.Name, err)
			}
			if re.NumSubexp() < 2 {
				return nil, fmt.Errorf("phase %s tally_pattern needs capture groups for total and failed", p.Name)
			}
		}
		if p.Artifact != "" && p.Axis != "" && p.Variant == "" {
			return nil, fmt.Errorf("phase %s declares axis %q without a variant", p.Name, p.Axis)
		}
	}

	return &w, nil
}

// SamplerInterval returns the sampling interval as a duration.
func (w *Workload) SamplerInterval() time.Duration {
	return time.Duration(w.SamplerIntervalMs) * time.Millisecond
}

// PhaseNames returns the phase names in declared order.
func (w *Workload) PhaseNames() []string {
	names := make([]string, 0, len(w.Phases))
	for _, p := range w.Phases {
		names = append(names, p.Name)
	}
	return names
}
