package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/metrics"
	"github.com/lucasjlepore/form-analyzer/pipeline"
)

var analyzeFlags struct {
	exercise       string
	outDir         string
	format         string
	overwrite      bool
	gestureControl bool
	confirmFrames  int
	cooldown       time.Duration
	metricsFile    string
	parallel       int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <recording.jsonl>...",
	Short: "Replay landmark recordings and write analysis artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVarP(&analyzeFlags.exercise, "exercise", "e", "", "exercise id, see the exercises command")
	flags.StringVarP(&analyzeFlags.outDir, "out", "o", "", "output directory (default from config)")
	flags.StringVar(&analyzeFlags.format, "format", "", "frame table format: parquet|csv (default from config)")
	flags.BoolVar(&analyzeFlags.overwrite, "overwrite", false, "allow writing into non-empty output directories")
	flags.BoolVar(&analyzeFlags.gestureControl, "gesture-control", false, "start and stop the set with thumbs up / thumbs down")
	flags.IntVar(&analyzeFlags.confirmFrames, "confirm-frames", 0, "frames a gesture must be held (default from config)")
	flags.DurationVar(&analyzeFlags.cooldown, "cooldown", 0, "minimum time between gestures (default from config)")
	flags.StringVar(&analyzeFlags.metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	flags.IntVar(&analyzeFlags.parallel, "parallel", runtime.NumCPU(), "recordings replayed at once")
	_ = analyzeCmd.MarkFlagRequired("exercise")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ex, err := formcoach.ParseExercise(analyzeFlags.exercise)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	outDir := cfg.Output.Dir
	if flags.Changed("out") {
		outDir = analyzeFlags.outDir
	}
	format := cfg.Output.Format
	if flags.Changed("format") {
		format = analyzeFlags.format
	}
	overwrite := cfg.Output.Overwrite || analyzeFlags.overwrite
	gestureControl := cfg.Gesture.Enabled || analyzeFlags.gestureControl
	confirm := cfg.Gesture.Confirmations
	if flags.Changed("confirm-frames") {
		confirm = analyzeFlags.confirmFrames
	}
	cooldown := cfg.Gesture.Cooldown.Duration
	if flags.Changed("cooldown") {
		cooldown = analyzeFlags.cooldown
	}
	metricsFile := cfg.Metrics.Textfile
	if flags.Changed("metrics-file") {
		metricsFile = analyzeFlags.metricsFile
	}

	promReg := prometheus.NewRegistry()
	mgr := metrics.NewManager(cfg.Metrics.Namespace, "", promReg)
	arena := formcoach.NewArena(registry, formcoach.WithObserver(mgr))
	start := time.Now()

	results := make([]*pipeline.Result, len(args))
	var g errgroup.Group
	g.SetLimit(max(analyzeFlags.parallel, 1))
	dirs := outputDirs(outDir, args)
	for i, path := range args {
		i, path := i, path
		dir := dirs[i]
		g.Go(func() error {
			res, err := pipeline.Run(pipeline.Options{
				RecordingPath:  path,
				OutDir:         dir,
				Exercise:       ex,
				Format:         format,
				Overwrite:      overwrite,
				GestureControl: gestureControl,
				ConfirmFrames:  confirm,
				Cooldown:       cooldown,
				Arena:          arena,
				StartTime:      start,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}
	runErr := g.Wait()

	out := cmd.OutOrStdout()
	for i, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintf(out, "%s\n", args[i])
		fmt.Fprintf(out, "  output dir:       %s\n", res.OutputDir)
		fmt.Fprintf(out, "  reps:             %d (avg form %d)\n", res.Summary.TotalReps, res.Summary.AverageFormScore)
		if res.Summary.Static {
			fmt.Fprintf(out, "  hold:             %.1fs\n", res.Summary.HoldSeconds)
		}
		fmt.Fprintf(out, "  frame analysis:   %s\n", res.FrameAnalysisPath)
		fmt.Fprintf(out, "  notes:            %s\n", res.NotesPath)
		if res.FitPath != "" {
			fmt.Fprintf(out, "  fit export:       %s\n", res.FitPath)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  warning:          %s\n", w)
		}
	}

	if metricsFile != "" {
		if err := metrics.WriteTextfile(promReg, metricsFile); err != nil {
			logrus.WithError(err).Error("write metrics textfile")
		} else {
			logrus.WithField("path", metricsFile).Info("metrics written")
		}
	}
	return runErr
}

// outputDirs maps each recording to its output directory. A single recording
// writes into outDir itself; several get one subdirectory each, named after
// the file, with a numeric suffix when base names repeat.
func outputDirs(outDir string, paths []string) []string {
	if len(paths) == 1 {
		return []string{outDir}
	}
	dirs := make([]string, len(paths))
	used := make(map[string]bool, len(paths))
	for i, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := stem
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[name] = true
		dirs[i] = filepath.Join(outDir, name)
	}
	return dirs
}
