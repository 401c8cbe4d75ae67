package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pretty_table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/toolbench/toolbench/internal/environment"
	"github.com/toolbench/toolbench/internal/procrun"
	"github.com/toolbench/toolbench/internal/sysinfo"
	"github.com/toolbench/toolbench/internal/sysmon"
	"github.com/toolbench/toolbench/internal/workload"
	"github.com/toolbench/toolbench/internal/xdg"
)

type feedbackRow struct {
	unit    string
	health  int // 0 - OK, 1 - Warning, 2 - Error
	message string
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check that this host can run and measure benchmarks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tool", Aliases: []string{"t"}, Usage: "also check that this tool resolves and executes"},
			&cli.StringFlag{Name: "workload", Aliases: []string{"w"}, Usage: "also check that this workload file parses"},
		},
		Action: healthAction,
	}
}

func healthAction(ctx context.Context, cmd *cli.Command) error {
	feedback := []feedbackRow{
		ensureSamplerOk(),
		ensureRunnerOk(),
		ensureOutputRootOk(),
		ensureNatsOk(),
	}
	if tool := cmd.String("tool"); tool != "" {
		feedback = append(feedback, ensureToolOk(tool))
	}
	if wlPath := cmd.String("workload"); wlPath != "" {
		feedback = append(feedback, ensureWorkloadOk(wlPath))
	}

	outputFeedback(feedback)

	for _, row := range feedback {
		if row.health == 2 {
			return fmt.Errorf("%s: %s", row.unit, row.message)
		}
	}
	return nil
}

func ensureSamplerOk() feedbackRow {
	if _, err := sysmon.MemUsedKiB(); err != nil {
		return feedbackRow{unit: "Sampler", health: 2, message: err.Error()}
	}

	logPath := filepath.Join(os.TempDir(), "toolbench-health-sysmon.log")
	defer os.Remove(logPath)
	sampler, err := sysmon.Start(20*time.Millisecond, nil, logPath)
	if err != nil {
		return feedbackRow{unit: "Sampler", health: 2, message: err.Error()}
	}
	time.Sleep(60 * time.Millisecond)
	records := sampler.Stop()
	if len(records) == 0 {
		return feedbackRow{unit: "Sampler", health: 1, message: "no samples collected"}
	}
	return feedbackRow{unit: "Sampler", health: 0, message: sysinfo.Collect().String()}
}

func ensureRunnerOk() feedbackRow {
	logPath := filepath.Join(os.TempDir(), "toolbench-health-runner.log")
	defer os.Remove(logPath)

	metrics, err := procrun.Run(procrun.Spec{
		Argv:    []string{"/bin/sh", "-c", "true"},
		Dir:     os.TempDir(),
		LogPath: logPath,
	})
	if err != nil {
		return feedbackRow{unit: "Runner", health: 2, message: err.Error()}
	}
	if metrics.ExitCode != 0 {
		return feedbackRow{unit: "Runner", health: 2,
			message: fmt.Sprintf("trivial command exited with %d", metrics.ExitCode)}
	}
	return feedbackRow{unit: "Runner", health: 0,
		message: fmt.Sprintf("wall=%dms maxrss=%dKiB", metrics.WallTime.Milliseconds(), metrics.MaxRSSKiB)}
}

func ensureToolOk(tool string) feedbackRow {
	logPath := filepath.Join(os.TempDir(), "toolbench-health-tool.log")
	defer os.Remove(logPath)

	metrics, err := procrun.Run(procrun.Spec{
		Argv:    []string{tool, "--version"},
		Dir:     os.TempDir(),
		LogPath: logPath,
	})
	if err != nil {
		return feedbackRow{unit: "Tool", health: 2, message: err.Error()}
	}
	if metrics.ExitCode != 0 {
		return feedbackRow{unit: "Tool", health: 1,
			message: fmt.Sprintf("%s --version exited with %d", tool, metrics.ExitCode)}
	}
	version, _ := os.ReadFile(logPath)
	return feedbackRow{unit: "Tool", health: 0, message: firstLine(string(version))}
}

func ensureWorkloadOk(path string) feedbackRow {
	wl, err := workload.Parse(path)
	if err != nil {
		return feedbackRow{unit: "Workload", health: 2, message: err.Error()}
	}
	return feedbackRow{unit: "Workload", health: 0,
		message: fmt.Sprintf("%d phases: %v", len(wl.Phases), wl.PhaseNames())}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func ensureOutputRootOk() feedbackRow {
	dirs := xdg.NewXDGDirs()
	root := dirs.AppStateDir(appName)
	if err := dirs.EnsureDir(root); err != nil {
		return feedbackRow{unit: "Output root", health: 2, message: err.Error()}
	}
	return feedbackRow{unit: "Output root", health: 0, message: root}
}

func ensureNatsOk() feedbackRow {
	cfg := environment.ReadEnvConfig()
	nc, err := nats.Connect(cfg.NatsURL, nats.Timeout(2*time.Second))
	if err != nil {
		// Streaming is optional, so an unreachable broker is a warning.
		return feedbackRow{unit: "NATS", health: 1, message: err.Error()}
	}
	defer nc.Close()
	return feedbackRow{unit: "NATS", health: 0, message: cfg.NatsURL}
}

func outputFeedback(feedback []feedbackRow) {
	t := pretty_table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(pretty_table.Row{"Unit", "Health", "Message"})
	for _, row := range feedback {
		healthCode := ""
		switch row.health {
		case 0:
			healthCode = "OKAY"
		case 1:
			healthCode = "WARN"
		case 2:
			healthCode = "ERROR"
		}

		t.AppendRow(
			pretty_table.Row{
				row.unit,
				healthCode,
				row.message,
			})
	}
	t.SetStyle(pretty_table.StyleColoredDark)
	textColor := text.Transformer(func(s interface{}) string {
		switch s.(string) {
		case "OKAY":
			return text.FgHiGreen.Sprint(s)
		case "WARN":
			return text.FgHiYellow.Sprint(s)
		case "ERROR":
			return text.FgHiRed.Sprint(s)
		}
		return ""
	})

	t.SetColumnConfigs([]pretty_table.ColumnConfig{
		{
			Name:        "Health",
			Transformer: textColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}
