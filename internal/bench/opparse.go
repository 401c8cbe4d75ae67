package bench

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/toolbench/toolbench/api"
)

// ParseOperations scans a phase log for the workload's per-operation timing
// pattern. The pattern's first capture group is the duration in seconds.
// Matches are numbered in order of appearance and IDs are scoped by phase
// ("run-O0/1"), so two measured phases in one run never collide; labels,
// when provided, give them descriptive names.
func ParseOperations(logPath, phase, pattern string, labels []string) ([]api.OperationResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid operation pattern: %w", err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var ops []api.OperationResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		n := len(ops)
		op := api.OperationResult{
			ID:      phase + "/" + strconv.Itoa(n+1),
			Seconds: seconds,
		}
		if n < len(labels) {
			op.Desc = labels[n]
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log: %w", err)
	}
	return ops, nil
}

// ParseTally scans a phase log for a pass/fail summary line. The pattern's
// first capture group is the total count, the second the failed count; the
// last matching line wins. Returns nil when no line matches.
func ParseTally(logPath, phase, pattern string) (*api.Tally, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tally pattern: %w", err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var tally *api.Tally
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		total, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		failed, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		tally = &api.Tally{Phase: phase, Total: total, Failed: failed}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log: %w", err)
	}
	return tally, nil
}

// WriteOperationsTSV persists operation timings as tab-separated rows of
// id, description, seconds.
func WriteOperationsTSV(path string, ops []api.OperationResult) error {
	var sb strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&sb, "%s\t%s\t%.6f\n", op.ID, op.Desc, op.Seconds)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write operations file: %w", err)
	}
	return nil
}

// ReadOperationsTSV reads rows written by WriteOperationsTSV.
func ReadOperationsTSV(path string) ([]api.OperationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open operations file: %w", err)
	}
	defer f.Close()

	var ops []api.OperationResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed operations row: %q", line)
		}
		seconds, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed operation duration: %q", parts[2])
		}
		ops = append(ops, api.OperationResult{ID: parts[0], Desc: parts[1], Seconds: seconds})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan operations file: %w", err)
	}
	return ops, nil
}
