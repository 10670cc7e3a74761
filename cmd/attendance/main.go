// attendance reconciles an attendance export against a gradebook from the
// command line. Runs are recorded in the same history database and output
// directory as the HTTP service.
//
//	attendance process --attendance att.csv --gradebook gb.csv --start 2024-01-01 --end 2024-03-31
//	attendance run --config config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"attendance-reconciler/internal/config"
	"attendance-reconciler/internal/service"
	"attendance-reconciler/internal/store"
	"attendance-reconciler/pkg/utils"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing command")
	}
	switch args[0] {
	case "process":
		return processCommand(ctx, args[1:], out)
	case "run":
		return runCommand(ctx, args[1:], out)
	case "-h", "--help", "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `usage:
  attendance process --attendance FILE [--gradebook FILE] --start YYYY-MM-DD --end YYYY-MM-DD
                     [--out-prefix NAME] [--join auto|id|email|none] [--matrix] [--config FILE]
  attendance run --config FILE`)
}

// job is one resolved CLI invocation.
type job struct {
	attendancePath string
	gradebookPath  string
	start, end     string
	outPrefix      string
	join           string
	matrix         bool
}

func processCommand(ctx context.Context, args []string, out io.Writer) error {
	flagSet := pflag.NewFlagSet("process", pflag.ContinueOnError)
	var j job
	var configPath string
	flagSet.StringVar(&j.attendancePath, "attendance", "", "attendance CSV export")
	flagSet.StringVar(&j.gradebookPath, "gradebook", "", "gradebook CSV export (optional)")
	flagSet.StringVar(&j.start, "start", "", "window start, YYYY-MM-DD")
	flagSet.StringVar(&j.end, "end", "", "window end, YYYY-MM-DD")
	flagSet.StringVar(&j.outPrefix, "out-prefix", "", "artifact name prefix")
	flagSet.StringVar(&j.join, "join", "", "join mode: auto, id, email or none")
	flagSet.BoolVar(&j.matrix, "matrix", false, "also write the presence matrix")
	flagSet.StringVar(&configPath, "config", "", "YAML config for storage and defaults")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if j.outPrefix == "" {
		j.outPrefix = cfg.Output.Prefix
	}
	if j.join == "" {
		j.join = cfg.Join
	}
	if !flagSet.Changed("matrix") {
		j.matrix = cfg.Output.Matrix
	}
	return execute(ctx, cfg, j, out)
}

func runCommand(ctx context.Context, args []string, out io.Writer) error {
	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "YAML config describing the run")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("--config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	return execute(ctx, cfg, job{
		attendancePath: cfg.Local.AttendanceCSV,
		gradebookPath:  cfg.Local.GradebookCSV,
		start:          cfg.Window.Start,
		end:            cfg.Window.End,
		outPrefix:      cfg.Output.Prefix,
		join:           cfg.Join,
		matrix:         cfg.Output.Matrix,
	}, out)
}

func execute(ctx context.Context, cfg *config.Config, j job, out io.Writer) error {
	if j.attendancePath == "" {
		return errors.New("an attendance file is required")
	}
	attendance, err := os.Open(j.attendancePath)
	if err != nil {
		return err
	}
	defer attendance.Close()

	in := service.ProcessInput{
		Attendance: attendance,
		StartDate:  j.start,
		EndDate:    j.end,
		JoinMode:   strings.ToLower(j.join),
		OutPrefix:  j.outPrefix,
		Matrix:     j.matrix,
	}
	if j.gradebookPath != "" {
		gradebook, err := os.Open(j.gradebookPath)
		if err != nil {
			return err
		}
		defer gradebook.Close()
		in.Gradebook = gradebook
	}

	outputs := utils.NewOutputManager(cfg.Storage.OutputDir, cfg.Server.APIPrefix)
	if err := outputs.EnsureOutputDirExists(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return err
	}
	history, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer history.Close()

	svc := service.NewAttendanceService(history, outputs, cfg.Logger())
	resp, err := svc.Process(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s (join: %s)\n", resp.RunID, resp.EffectiveJoinMode)
	fmt.Fprintf(out, "detected %d lecture dates: %s\n", len(resp.Summary.LectureDates), strings.Join(resp.Summary.LectureDates, ", "))
	fmt.Fprintf(out, "students: %d, with attendance: %d, coverage: %.2f%%\n",
		resp.Summary.StudentsTotal, resp.Summary.StudentsWithAttendance, resp.Summary.CoveragePct)
	d := resp.Diagnostics
	fmt.Fprintf(out, "skipped rows: %d, filtered out: %d, ambiguous: %d, unmatched: %d\n",
		d.SkippedRows, d.FilteredOut, d.AmbiguousCount, d.UnmatchedCount)
	fmt.Fprintf(out, "wrote %s\n", filepath.Join(cfg.Storage.OutputDir, filepath.FromSlash(resp.CountsArtifact.RelativePath)))
	if resp.MatrixArtifact != nil {
		fmt.Fprintf(out, "wrote %s\n", filepath.Join(cfg.Storage.OutputDir, filepath.FromSlash(resp.MatrixArtifact.RelativePath)))
	}
	return nil
}
