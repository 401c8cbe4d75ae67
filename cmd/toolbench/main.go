package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/toolbench/toolbench/api"
	"github.com/toolbench/toolbench/internal/bench"
	"github.com/toolbench/toolbench/internal/compare"
	"github.com/toolbench/toolbench/internal/environment"
	"github.com/toolbench/toolbench/internal/gatherer/natsgath"
	"github.com/toolbench/toolbench/internal/gatherer/termgath"
	"github.com/toolbench/toolbench/internal/report"
	"github.com/toolbench/toolbench/internal/s3publ"
	"github.com/toolbench/toolbench/internal/workload"
	"github.com/toolbench/toolbench/internal/xdg"
)

const appName = "toolbench"

func main() {
	cmd := &cli.Command{
		Name:  appName,
		Usage: "benchmark one build tool against another, phase by phase",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			})))
			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			compareCommand(),
			renderCommand(),
			publishCommand(),
			healthCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func defaultOutRoot() string {
	return xdg.NewXDGDirs().AppStateDir(appName)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "execute all workload phases for one subject",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workload", Aliases: []string{"w"}, Usage: "workload TOML file", Required: true},
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "subject label, e.g. gcc", Required: true},
			&cli.StringFlag{Name: "tool", Aliases: []string{"t"}, Usage: "path to the tool under measurement", Required: true},
			&cli.StringSliceFlag{Name: "env", Aliases: []string{"e"}, Usage: "KEY=VALUE environment override, repeatable"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory (default: per-label dir under the state home)"},
			&cli.BoolFlag{Name: "stream", Usage: "stream progress messages to NATS"},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	wlPath := cmd.String("workload")
	wl, err := workload.Parse(wlPath)
	if err != nil {
		return err
	}

	env, err := parseEnvOverrides(cmd.StringSlice("env"))
	if err != nil {
		return err
	}

	label := cmd.String("label")
	outDir := cmd.String("out")
	if outDir == "" {
		outDir = filepath.Join(defaultOutRoot(), label)
	}

	rc := bench.RunContext{
		RunID: uuid.New().String(),
		Subject: api.Subject{
			Label:    label,
			ToolPath: cmd.String("tool"),
			Env:      env,
		},
		Workload:     wl,
		WorkloadName: strings.TrimSuffix(filepath.Base(wlPath), filepath.Ext(wlPath)),
		BaseDir:      filepath.Dir(wlPath),
		OutDir:       outDir,
	}

	gatherers := []bench.Gatherer{termgath.New()}
	if cmd.Bool("stream") {
		cfg := environment.ReadEnvConfig()
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
		}
		defer nc.Close()
		gatherers = append(gatherers, natsgath.New(nc, rc.RunID, cfg.ProgressSubject))
	}

	run, err := bench.RunSubject(rc, multiGatherer(gatherers))
	if err != nil {
		return err
	}

	// An aborted run is measured data, not a tool failure: the exit code
	// stays zero either way.
	slog.Info("run finished",
		"run_id", run.RunID, "state", run.State, "out", outDir)
	return nil
}

func parseEnvOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env override %q, want KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "reduce two run directories into a comparison summary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a", Usage: "run directory of subject A", Required: true},
			&cli.StringFlag{Name: "b", Usage: "run directory of subject B", Required: true},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table or json"},
		},
		Action: compareAction,
	}
}

func compareAction(ctx context.Context, cmd *cli.Command) error {
	var runA, runB *api.RunResult
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		runA, err = bench.LoadRun(cmd.String("a"))
		return err
	})
	g.Go(func() (err error) {
		runB, err = bench.LoadRun(cmd.String("b"))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	summary := compare.Compare(runA, runB)
	renderer, err := rendererFor(cmd.String("format"))
	if err != nil {
		return err
	}
	return renderer.Render(os.Stdout, summary)
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "render a previously saved comparison summary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: "summary JSON file", Required: true},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table or json"},
		},
		Action: renderAction,
	}
}

func renderAction(ctx context.Context, cmd *cli.Command) error {
	data, err := os.ReadFile(cmd.String("summary"))
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}
	summary, err := report.ParseSummary(data)
	if err != nil {
		return err
	}
	renderer, err := rendererFor(cmd.String("format"))
	if err != nil {
		return err
	}
	return renderer.Render(os.Stdout, summary)
}

func rendererFor(format string) (report.Renderer, error) {
	switch format {
	case "json":
		return report.NewJSONRenderer(), nil
	case "table":
		return report.NewTableRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown format %q, want table or json", format)
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "upload a run directory to S3",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "run directory to upload", Required: true},
			&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "key prefix inside the bucket"},
		},
		Action: publishAction,
	}
}

func publishAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	run, err := bench.LoadRun(dir)
	if err != nil {
		return fmt.Errorf("not a run directory: %w", err)
	}

	prefix := cmd.String("prefix")
	if prefix == "" {
		prefix = run.Subject.Label + "/" + run.RunID
	}

	cfg := environment.ReadEnvConfig()
	pub, err := s3publ.New(ctx, cfg.S3Region, cfg.S3Bucket)
	if err != nil {
		return err
	}
	if err := pub.PublishRunDir(ctx, dir, prefix); err != nil {
		return err
	}
	slog.Info("run published", "run_id", run.RunID, "bucket", cfg.S3Bucket, "prefix", prefix)
	return nil
}
