// Package procrun executes a single external command to completion and
// captures its resource usage from the operating system's process
// accounting. Linux only: peak RSS, faults and context switches come from
// the wait4 rusage of the child and its reaped descendants.
package procrun

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrKind distinguishes hard Runner failures from measured command
// failures. A non-zero exit of the measured command is never a Runner
// failure.
type ErrKind int

const (
	KindOther ErrKind = iota
	KindNotFound
	KindBadWorkdir
	KindPermission
)

// RunError is a hard failure of the runner itself. No metrics are produced
// when one occurs.
type RunError struct {
	Kind ErrKind
	Err  error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("command not found: %v", e.Err)
	case KindBadWorkdir:
		return fmt.Sprintf("working directory: %v", e.Err)
	case KindPermission:
		return fmt.Sprintf("permission denied: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// Spec describes one command execution.
type Spec struct {
	Argv []string
	Dir  string
	// Env entries in KEY=VALUE form, appended to the current process
	// environment so later entries win.
	Env []string
	// LogPath receives stdout and stderr interleaved, in arrival order.
	LogPath string
}

// Metrics is what the OS reported about the finished command.
type Metrics struct {
	ExitCode    int64
	WallTime    time.Duration
	UserTime    time.Duration
	SysTime     time.Duration
	MaxRSSKiB   int64
	MajorFaults int64
	MinorFaults int64
	CtxSwV      int64
	CtxSwF      int64
	InBlocks    int64
	OutBlocks   int64
}

// Run executes the command to completion and returns its metrics. It blocks
// until the child exits; there is deliberately no timeout, because cutting a
// slow command short would invalidate any comparison built on the result.
func Run(spec Spec) (*Metrics, error) {
	if len(spec.Argv) == 0 {
		return nil, &RunError{Kind: KindOther, Err: errors.New("empty command")}
	}

	if spec.Dir != "" {
		info, err := os.Stat(spec.Dir)
		if err != nil {
			return nil, &RunError{Kind: KindBadWorkdir, Err: err}
		}
		if !info.IsDir() {
			return nil, &RunError{Kind: KindBadWorkdir, Err: fmt.Errorf("%s is not a directory", spec.Dir)}
		}
	}

	path, err := exec.LookPath(spec.Argv[0])
	if err != nil {
		return nil, classifyLookupErr(err)
	}

	logFile, err := os.Create(spec.LogPath)
	if err != nil {
		return nil, &RunError{Kind: KindOther, Err: fmt.Errorf("create log file: %w", err)}
	}
	defer logFile.Close()

	cmd := exec.Command(path, spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, classifyStartErr(err)
	}

	err = cmd.Wait()
	wall := time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &RunError{Kind: KindOther, Err: fmt.Errorf("wait: %w", err)}
		}
	}

	state := cmd.ProcessState
	m := &Metrics{
		ExitCode: int64(state.ExitCode()),
		WallTime: wall,
		UserTime: state.UserTime(),
		SysTime:  state.SystemTime(),
	}
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok && ru != nil {
		// ru_maxrss is already KiB on Linux
		m.MaxRSSKiB = ru.Maxrss
		m.MajorFaults = ru.Majflt
		m.MinorFaults = ru.Minflt
		m.CtxSwV = ru.Nvcsw
		m.CtxSwF = ru.Nivcsw
		m.InBlocks = ru.Inblock
		m.OutBlocks = ru.Oublock
	}
	return m, nil
}

func classifyLookupErr(err error) *RunError {
	if errors.Is(err, fs.ErrPermission) {
		return &RunError{Kind: KindPermission, Err: err}
	}
	return &RunError{Kind: KindNotFound, Err: err}
}

func classifyStartErr(err error) *RunError {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return &RunError{Kind: KindNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &RunError{Kind: KindPermission, Err: err}
	}
	return &RunError{Kind: KindOther, Err: err}
}
