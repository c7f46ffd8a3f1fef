package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/fitexport"
	"github.com/lucasjlepore/form-analyzer/posesynth"
	"github.com/lucasjlepore/form-analyzer/recording"
)

var testStart = time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

func squatSet(t *testing.T, reps int, startMS int64) []formcoach.Frame {
	t.Helper()
	frames, err := posesynth.Set(nil, formcoach.Squat, posesynth.SetOptions{
		Reps:         reps,
		FramesPerRep: 4,
		StartMS:      startMS,
		Interval:     300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("synth set: %v", err)
	}
	return frames
}

func encodeFrames(t *testing.T, frames []formcoach.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := recording.WriteFrames(&buf, frames); err != nil {
		t.Fatalf("write frames: %v", err)
	}
	return buf.Bytes()
}

// gestureSession is: one ready frame, three thumbs up, a three-rep squat set,
// three thumbs down and one trailing frame.
func gestureSession(t *testing.T) []formcoach.Frame {
	t.Helper()
	frames := []formcoach.Frame{posesynth.Frame(posesynth.Standing(), 0)}
	for _, ts := range []int64{300, 600, 900} {
		frames = append(frames, posesynth.GestureFrame(formcoach.GestureThumbsUp, ts))
	}
	frames = append(frames, squatSet(t, 3, 1200)...)
	for _, ts := range []int64{5100, 5400, 5700} {
		frames = append(frames, posesynth.GestureFrame(formcoach.GestureThumbsDown, ts))
	}
	return append(frames, posesynth.Frame(posesynth.Standing(), 6000))
}

func TestRunWritesArtifacts(t *testing.T) {
	frames := squatSet(t, 3, 0)
	dir := t.TempDir()
	recPath := filepath.Join(dir, "squat.jsonl")
	if err := os.WriteFile(recPath, encodeFrames(t, frames), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	res, err := Run(Options{
		RecordingPath: recPath,
		OutDir:        outDir,
		Exercise:      formcoach.Squat,
		Format:        "csv",
		StartTime:     testStart,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Summary.TotalReps != 3 {
		t.Fatalf("expected 3 reps, got %d", res.Summary.TotalReps)
	}

	f, err := os.Open(res.FrameAnalysisPath)
	if err != nil {
		t.Fatalf("open frame analysis: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read frame csv: %v", err)
	}
	if len(rows) != len(frames)+1 {
		t.Fatalf("expected %d rows, got %d", len(frames)+1, len(rows))
	}
	if rows[0][0] != "record_index" || rows[0][len(rows[0])-1] != "gesture" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	var manifest recording.Manifest
	data, err := os.ReadFile(res.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.FrameCount != len(frames) || manifest.SourceFileName != "squat.jsonl" {
		t.Fatalf("manifest: %+v", manifest)
	}
	if manifest.AnalyzedCount+manifest.GatedCount+manifest.RejectedCount != len(frames) || manifest.PreflightCount != 0 {
		t.Fatalf("manifest counts: %+v", manifest)
	}
	wantArtifacts := []string{AnalysisFile, FrameAnalysisStem + ".csv", ManifestFile, SummaryFile, NotesFile, FitFile}
	for _, name := range wantArtifacts {
		if !slices.Contains(manifest.Artifacts, name) {
			t.Fatalf("manifest missing %s: %v", name, manifest.Artifacts)
		}
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("artifact %s not written: %v", name, err)
		}
	}

	analysis, err := os.ReadFile(res.AnalysisPath)
	if err != nil {
		t.Fatalf("read analysis: %v", err)
	}
	if got := bytes.Count(analysis, []byte("\n")); got != len(frames) {
		t.Fatalf("analysis lines: got %d want %d", got, len(frames))
	}

	fitData, err := os.ReadFile(res.FitPath)
	if err != nil {
		t.Fatalf("read set.fit: %v", err)
	}
	set, err := fitexport.DecodeSet(fitData)
	if err != nil {
		t.Fatalf("decode set.fit: %v", err)
	}
	if set.LapCount != 3 || !set.StartTime.Equal(testStart) {
		t.Fatalf("fit set: %+v", set)
	}

	notes, err := os.ReadFile(res.NotesPath)
	if err != nil {
		t.Fatalf("read notes: %v", err)
	}
	if !strings.Contains(string(notes), "Reps 3") {
		t.Fatalf("notes missing rep count:\n%s", notes)
	}

	if _, err := Run(Options{RecordingPath: recPath, OutDir: outDir, Exercise: formcoach.Squat}); err == nil {
		t.Fatal("expected error for non-empty output directory")
	}
}

func TestRunBytesParquet(t *testing.T) {
	frames := squatSet(t, 2, 0)
	out, err := RunBytes(encodeFrames(t, frames), BytesOptions{
		SourceName: "mem.jsonl",
		Exercise:   formcoach.Squat,
		StartTime:  testStart,
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	table := out.Files[FrameAnalysisStem+".parquet"]
	if len(table) < 8 || string(table[:4]) != "PAR1" || string(table[len(table)-4:]) != "PAR1" {
		t.Fatalf("frame analysis is not parquet (%d bytes)", len(table))
	}
	if out.Summary.TotalReps != 2 {
		t.Fatalf("expected 2 reps, got %d", out.Summary.TotalReps)
	}

	var summary SessionSummaryFile
	if err := json.Unmarshal(out.Files[SummaryFile], &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Exercise != "squat" || len(summary.Reps) != 2 || summary.SetStartMS == nil || *summary.SetStartMS != 0 {
		t.Fatalf("summary: %+v", summary)
	}
}

func TestGestureControlledRun(t *testing.T) {
	frames := gestureSession(t)
	out, err := RunBytes(encodeFrames(t, frames), BytesOptions{
		Exercise:       formcoach.Squat,
		Format:         "csv",
		GestureControl: true,
		StartTime:      testStart,
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	if out.Summary.TotalReps != 3 {
		t.Fatalf("expected 3 reps, got %d", out.Summary.TotalReps)
	}

	var summary SessionSummaryFile
	if err := json.Unmarshal(out.Files[SummaryFile], &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	wantEvents := []ControlEvent{
		{RecordIndex: 0, TimestampMS: 0, From: ControlPositioning, To: ControlWaitingGesture, Trigger: "ready"},
		{RecordIndex: 3, TimestampMS: 900, From: ControlWaitingGesture, To: ControlCounting, Trigger: "thumbs_up"},
		{RecordIndex: len(frames) - 2, TimestampMS: 5700, From: ControlCounting, To: ControlFinished, Trigger: "thumbs_down"},
	}
	if len(summary.Events) != len(wantEvents) {
		t.Fatalf("events: %+v", summary.Events)
	}
	for i, want := range wantEvents {
		if summary.Events[i] != want {
			t.Fatalf("event %d: got %+v want %+v", i, summary.Events[i], want)
		}
	}

	var manifest recording.Manifest
	if err := json.Unmarshal(out.Files[ManifestFile], &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.PreflightCount != 6 {
		t.Fatalf("preflight count: got %d want 6", manifest.PreflightCount)
	}
	if got := manifest.AnalyzedCount + manifest.GatedCount + manifest.RejectedCount; got != len(frames)-6 {
		t.Fatalf("session frames: got %d want %d", got, len(frames)-6)
	}

	set, err := fitexport.DecodeSet(out.Files[FitFile])
	if err != nil {
		t.Fatalf("decode set.fit: %v", err)
	}
	if math.Abs(set.DurationSeconds-4.8) > 1e-6 {
		t.Fatalf("set duration: got %.3f want 4.8", set.DurationSeconds)
	}

	lines := strings.Split(strings.TrimSpace(string(out.Files[AnalysisFile])), "\n")
	var first recording.ResultEnvelope
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first envelope: %v", err)
	}
	if first.ControlState != string(ControlPositioning) || first.Event != string(ControlWaitingGesture) || first.Result.FrameIndex != -1 {
		t.Fatalf("first envelope: %+v", first)
	}
}

func TestGestureControlNeverStarts(t *testing.T) {
	frames := []formcoach.Frame{
		posesynth.Frame(posesynth.Standing(), 0),
		posesynth.Frame(posesynth.Standing(), 300),
	}
	out, err := RunBytes(encodeFrames(t, frames), BytesOptions{
		Exercise:       formcoach.Squat,
		GestureControl: true,
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	if _, ok := out.Files[FitFile]; ok {
		t.Fatal("set.fit written for a set that never started")
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "never reached counting") {
		t.Fatalf("warnings: %v", out.Warnings)
	}
}

func TestRunSharedArenaClosesSession(t *testing.T) {
	arena := formcoach.NewArena(nil)
	_, err := RunBytes(encodeFrames(t, squatSet(t, 1, 0)), BytesOptions{
		Exercise: formcoach.Squat,
		Arena:    arena,
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	if arena.Len() != 0 {
		t.Fatalf("arena still holds %d sessions", arena.Len())
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	if _, err := Run(Options{OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for missing recording path")
	}
	data := encodeFrames(t, squatSet(t, 1, 0))
	if _, err := RunBytes(data, BytesOptions{Exercise: formcoach.Squat, Format: "xlsx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := RunBytes(data, BytesOptions{}); err == nil {
		t.Fatal("expected error for missing exercise")
	}
}

func TestGestureControlStartsOnLastFrame(t *testing.T) {
	frames := []formcoach.Frame{posesynth.Frame(posesynth.Standing(), 0)}
	for _, ts := range []int64{300, 600, 900} {
		frames = append(frames, posesynth.GestureFrame(formcoach.GestureThumbsUp, ts))
	}
	out, err := RunBytes(encodeFrames(t, frames), BytesOptions{
		Exercise:       formcoach.Squat,
		GestureControl: true,
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "no frames followed the start gesture") {
		t.Fatalf("warnings: %v", out.Warnings)
	}
	if _, ok := out.Files[FitFile]; ok {
		t.Fatal("set.fit written for a set with no analyzed frames")
	}
}
