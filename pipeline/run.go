package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/fitexport"
	"github.com/lucasjlepore/form-analyzer/recording"
)

// settings is the part of Options and BytesOptions the replay needs.
type settings struct {
	source         string
	exercise       formcoach.Exercise
	format         string
	gestureControl bool
	confirmFrames  int
	cooldown       time.Duration
	registry       *formcoach.Registry
	arena          *formcoach.Arena
	startTime      time.Time
}

// Run replays the recording at opts.RecordingPath and writes all artifacts.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.RecordingPath) == "" {
		return nil, fmt.Errorf("recording path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	bundle, err := recording.ReadFile(opts.RecordingPath)
	if err != nil {
		return nil, err
	}
	if err := recording.EnsureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	out, err := build(bundle, settings{
		source:         opts.RecordingPath,
		exercise:       opts.Exercise,
		format:         format,
		gestureControl: opts.GestureControl,
		confirmFrames:  opts.ConfirmFrames,
		cooldown:       opts.Cooldown,
		registry:       opts.Registry,
		arena:          opts.Arena,
		startTime:      opts.StartTime,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Files))
	for name := range out.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(opts.OutDir, name), out.Files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	res := &Result{
		OutputDir:         opts.OutDir,
		ManifestPath:      filepath.Join(opts.OutDir, ManifestFile),
		AnalysisPath:      filepath.Join(opts.OutDir, AnalysisFile),
		FrameAnalysisPath: filepath.Join(opts.OutDir, frameAnalysisName(format)),
		SummaryPath:       filepath.Join(opts.OutDir, SummaryFile),
		NotesPath:         filepath.Join(opts.OutDir, NotesFile),
		Summary:           out.Summary,
		Warnings:          out.Warnings,
	}
	if _, ok := out.Files[FitFile]; ok {
		res.FitPath = filepath.Join(opts.OutDir, FitFile)
	}
	return res, nil
}

// RunBytes replays an in-memory recording and returns artifacts in memory.
func RunBytes(data []byte, opts BytesOptions) (*BytesResult, error) {
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	bundle, err := recording.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return build(bundle, settings{
		source:         opts.SourceName,
		exercise:       opts.Exercise,
		format:         format,
		gestureControl: opts.GestureControl,
		confirmFrames:  opts.ConfirmFrames,
		cooldown:       opts.Cooldown,
		registry:       opts.Registry,
		arena:          opts.Arena,
		startTime:      opts.StartTime,
	})
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func frameAnalysisName(format string) string {
	return FrameAnalysisStem + "." + format
}

// replay is the outcome of running every frame of a recording.
type replay struct {
	cfg       *formcoach.ExerciseConfig
	envelopes []recording.ResultEnvelope
	rows      []FrameRow
	events    []ControlEvent
	summary   formcoach.Summary
	reps      []formcoach.RepRecord
	setStart  *int64
	setEnd    *int64
	counted   bool
	analyzed  int
	gated     int
	rejected  int
	preflight int
}

func replayFrames(frames []formcoach.Frame, s settings) (*replay, error) {
	if s.exercise == formcoach.ExerciseUnknown {
		return nil, fmt.Errorf("exercise is required")
	}
	arena := s.arena
	if arena == nil {
		arena = formcoach.NewArena(s.registry)
	}
	id, err := arena.Open(s.exercise)
	if err != nil {
		return nil, err
	}
	closed := false
	defer func() {
		if !closed {
			_, _ = arena.Close(id)
		}
	}()

	cfg, err := arena.Config(id)
	if err != nil {
		return nil, err
	}
	var ctrl *controller
	if s.gestureControl {
		ctrl = newController(cfg, s.confirmFrames, s.cooldown)
	}

	log := logrus.WithFields(logrus.Fields{"session": id, "exercise": s.exercise})
	rp := &replay{cfg: cfg}
	var last formcoach.FrameResult
	for i, f := range frames {
		env := recording.ResultEnvelope{RecordIndex: i, TimestampMS: f.TimestampMS}
		analyze := true
		if ctrl != nil {
			state, ev, ok := ctrl.step(f)
			env.ControlState = string(state)
			analyze = ok
			if ev != nil {
				ev.RecordIndex = i
				ev.TimestampMS = f.TimestampMS
				env.Event = string(ev.To)
				rp.events = append(rp.events, *ev)
				rp.markControl(*ev)
				log.WithFields(logrus.Fields{
					"from":    ev.From,
					"to":      ev.To,
					"trigger": ev.Trigger,
					"ts_ms":   ev.TimestampMS,
				}).Debug("control state changed")
			}
		}

		var res formcoach.FrameResult
		if analyze {
			res, err = arena.Analyze(id, f)
			if err != nil {
				return nil, fmt.Errorf("analyze frame %d: %w", i, err)
			}
			rp.markAnalyzed(f.TimestampMS)
			switch {
			case !res.Success:
				rp.rejected++
			case !res.Analyzed:
				rp.gated++
			default:
				rp.analyzed++
			}
			last = res
		} else {
			res = preflightResult(f, cfg)
			res.RepCount = last.RepCount
			res.AverageFormScore = last.AverageFormScore
			rp.preflight++
		}
		env.Result = res
		rp.envelopes = append(rp.envelopes, env)
		rp.rows = append(rp.rows, frameRow(env, cfg))
	}

	if rp.reps, err = arena.Reps(id); err != nil {
		return nil, err
	}
	closed = true
	if rp.summary, err = arena.Close(id); err != nil {
		return nil, err
	}
	return rp, nil
}

// markControl anchors the set on the gesture that started or stopped it.
func (rp *replay) markControl(ev ControlEvent) {
	ts := ev.TimestampMS
	switch ev.To {
	case ControlCounting:
		rp.counted = true
		rp.setStart = &ts
	case ControlFinished:
		rp.setEnd = &ts
	}
}

func (rp *replay) markAnalyzed(ts int64) {
	if rp.setStart == nil {
		start := ts
		rp.setStart = &start
	}
	end := ts
	rp.setEnd = &end
}

func preflightResult(f formcoach.Frame, cfg *formcoach.ExerciseConfig) formcoach.FrameResult {
	res := formcoach.FrameResult{
		FrameIndex: -1,
		Gesture:    formcoach.DetectGesture(f),
	}
	if len(f.Pose) < formcoach.PoseLandmarkCount {
		res.Error = fmt.Sprintf("%s: got %d of %d", formcoach.ErrInsufficientLandmarks, len(f.Pose), formcoach.PoseLandmarkCount)
		return res
	}
	res.Success = true
	res.Positioning = formcoach.CheckPositioning(f.Pose, cfg.KeyLandmarks)
	return res
}

func frameRow(env recording.ResultEnvelope, cfg *formcoach.ExerciseConfig) FrameRow {
	res := env.Result
	row := FrameRow{
		RecordIndex:  env.RecordIndex,
		TimestampMS:  env.TimestampMS,
		ControlState: env.ControlState,
		Success:      res.Success,
		Analyzed:     res.Analyzed,
		Ready:        res.Positioning.IsReady,
		Visibility:   res.Positioning.Visibility,
		Confidence:   res.Positioning.Confidence,
		Phase:        string(res.Phase),
		PrimaryAngle: math.NaN(),
		FormScore:    math.NaN(),
		RepCompleted: res.RepCompleted,
		RepCount:     res.RepCount,
		Gesture:      string(res.Gesture),
	}
	if v, ok := res.Angles[cfg.PrimaryAngle]; ok {
		row.PrimaryAngle = v
	}
	if res.Form != nil {
		row.FormScore = float64(res.Form.Score)
		row.IsCorrect = res.Form.IsCorrect
		row.Issues = strings.Join(res.Form.Issues, ";")
	}
	return row
}

func build(bundle *recording.Bundle, s settings) (*BytesResult, error) {
	rp, err := replayFrames(bundle.Frames, s)
	if err != nil {
		return nil, err
	}
	warnings := append([]string(nil), bundle.Warnings...)
	files := make(map[string][]byte, 6)

	analysis, err := recording.MarshalJSONL(rp.envelopes)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", AnalysisFile, err)
	}
	files[AnalysisFile] = analysis

	tableName := frameAnalysisName(s.format)
	var table []byte
	switch s.format {
	case "csv":
		table, err = marshalFrameCSV(rp.rows)
	case "parquet":
		table, err = marshalFrameParquet(rp.rows)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", tableName, err)
	}
	files[tableName] = table

	summaryFile := SessionSummaryFile{
		Exercise:     s.exercise.String(),
		ExerciseName: rp.cfg.Name,
		Summary:      rp.summary,
		TopIssues:    rp.summary.TopIssues(3),
		Reps:         rp.reps,
		SetStartMS:   rp.setStart,
		SetEndMS:     rp.setEnd,
		Events:       rp.events,
	}
	if summaryFile.Reps == nil {
		summaryFile.Reps = []formcoach.RepRecord{}
	}
	if files[SummaryFile], err = recording.MarshalJSON(summaryFile); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", SummaryFile, err)
	}

	files[NotesFile] = []byte(formcoach.BuildSessionNotes(rp.summary, rp.reps))

	if s.gestureControl {
		switch {
		case !rp.counted:
			warnings = append(warnings, "gesture control never reached counting; no frames were analyzed")
		case rp.analyzed+rp.gated+rp.rejected == 0:
			warnings = append(warnings, "no frames followed the start gesture")
		}
	}
	if rp.setStart != nil && rp.setEnd != nil {
		start := s.startTime
		if start.IsZero() {
			start = time.Now()
		}
		fitData, err := fitexport.EncodeSet(fitexport.SetInfo{
			Exercise: s.exercise,
			Start:    start.UTC().Truncate(time.Second),
			BaseMS:   *rp.setStart,
			EndMS:    *rp.setEnd,
			Reps:     rp.reps,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("fit export skipped: %v", err))
		} else {
			files[FitFile] = fitData
		}
	}

	artifacts := make([]string, 0, len(files)+1)
	artifacts = append(artifacts, ManifestFile)
	for name := range files {
		artifacts = append(artifacts, name)
	}
	sort.Strings(artifacts)

	manifest := recording.Manifest{
		FormatVersion:     recording.FormatVersion,
		GeneratedAt:       time.Now().UTC(),
		SourceFile:        s.source,
		SourceSHA256:      bundle.SourceSHA256,
		SourceSizeBytes:   bundle.SourceSizeBytes,
		Exercise:          s.exercise.String(),
		GestureControl:    s.gestureControl,
		FrameCount:        len(bundle.Frames),
		AnalyzedCount:     rp.analyzed,
		GatedCount:        rp.gated,
		RejectedCount:     rp.rejected,
		PreflightCount:    rp.preflight,
		Artifacts:         artifacts,
		Warnings:          warnings,
		SchemaDescription: recording.DefaultSchema(),
	}
	if s.source != "" {
		manifest.SourceFileName = filepath.Base(s.source)
	}
	if files[ManifestFile], err = recording.MarshalJSON(manifest); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ManifestFile, err)
	}

	logrus.WithFields(logrus.Fields{
		"source":   s.source,
		"exercise": s.exercise,
		"frames":   len(bundle.Frames),
		"analyzed": rp.analyzed,
		"reps":     rp.summary.TotalReps,
	}).Info("recording replayed")

	return &BytesResult{
		Files:    files,
		Summary:  rp.summary,
		Warnings: warnings,
	}, nil
}

func marshalFrameCSV(rows []FrameRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"record_index", "ts_ms", "control_state", "success", "analyzed", "ready", "visibility", "confidence",
		"phase", "primary_angle", "form_score", "is_correct", "issues", "rep_completed", "rep_count", "gesture",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.RecordIndex),
			strconv.FormatInt(r.TimestampMS, 10),
			r.ControlState,
			strconv.FormatBool(r.Success),
			strconv.FormatBool(r.Analyzed),
			strconv.FormatBool(r.Ready),
			formatFloat(r.Visibility),
			formatFloat(r.Confidence),
			r.Phase,
			formatFloat(r.PrimaryAngle),
			formatFloat(r.FormScore),
			strconv.FormatBool(r.IsCorrect),
			r.Issues,
			strconv.FormatBool(r.RepCompleted),
			strconv.Itoa(r.RepCount),
			r.Gesture,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatFloat leaves missing values (NaN) empty.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
