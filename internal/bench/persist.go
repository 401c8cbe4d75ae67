package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/toolbench/toolbench/api"
	"github.com/toolbench/toolbench/internal/sysinfo"
)

// Output directory layout for one subject run:
//
//	run.json        complete run result
//	system.json     host descriptor
//	sysmon.log      resource sampler records
//	operations.tsv  per-operation timings, when the workload extracts any
//	phases/         one JSON result per executed phase
//	logs/           combined stdout+stderr per phase

const (
	runFile        = "run.json"
	systemFile     = "system.json"
	sysmonFile     = "sysmon.log"
	operationsFile = "operations.tsv"
	phasesDir      = "phases"
	logsDir        = "logs"
)

// logTailBytes bounds how much of a phase log is forwarded to gatherers.
const logTailBytes = 4096

func SysmonLogPath(outDir string) string {
	return filepath.Join(outDir, sysmonFile)
}

func PhaseLogPath(outDir, phase string) string {
	return filepath.Join(outDir, logsDir, phase+".log")
}

func OperationsPath(outDir string) string {
	return filepath.Join(outDir, operationsFile)
}

// initOutDir wipes any previous run at the same path and recreates the
// layout, so reruns never mix stale results with fresh ones.
func initOutDir(outDir string) error {
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("failed to clear output directory: %w", err)
	}
	for _, dir := range []string{outDir, filepath.Join(outDir, phasesDir), filepath.Join(outDir, logsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveRun writes the complete run result into the output directory.
func SaveRun(outDir string, run *api.RunResult) error {
	return writeJSON(filepath.Join(outDir, runFile), run)
}

// LoadRun reads a previously persisted run result back.
func LoadRun(outDir string) (*api.RunResult, error) {
	run := &api.RunResult{}
	if err := readJSON(filepath.Join(outDir, runFile), run); err != nil {
		return nil, err
	}
	return run, nil
}

func saveSystemInfo(outDir string, info sysinfo.Info) error {
	return writeJSON(filepath.Join(outDir, systemFile), info)
}

// LoadSystemInfo reads the host descriptor persisted alongside a run.
func LoadSystemInfo(outDir string) (sysinfo.Info, error) {
	var info sysinfo.Info
	err := readJSON(filepath.Join(outDir, systemFile), &info)
	return info, err
}

// savePhaseResult persists one phase result as soon as the phase finishes,
// before the next phase begins.
func savePhaseResult(outDir string, res *api.PhaseResult) error {
	return writeJSON(filepath.Join(outDir, phasesDir, res.Phase+".json"), res)
}

// logTail returns up to the last logTailBytes of a phase log, for progress
// reporting. Failures degrade to an empty excerpt.
func logTail(logPath string) string {
	f, err := os.Open(logPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := st.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return string(data)
}
