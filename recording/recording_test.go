package recording

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/posesynth"
)

func TestWriteAndReadFrames(t *testing.T) {
	frames, err := posesynth.Set(nil, formcoach.Squat, posesynth.SetOptions{Reps: 2, FramesPerRep: 4})
	if err != nil {
		t.Fatalf("synth: %v", err)
	}
	frames[0].Hand = posesynth.Hand(formcoach.GestureThumbsUp)

	var buf bytes.Buffer
	if err := WriteFrames(&buf, frames); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != len(frames) {
		t.Fatalf("expected %d lines, got %d", len(frames), got)
	}

	bundle, err := ParseBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if len(bundle.Frames) != len(frames) {
		t.Fatalf("frame count: got %d want %d", len(bundle.Frames), len(frames))
	}
	if len(bundle.Frames[0].Pose) != formcoach.PoseLandmarkCount || len(bundle.Frames[0].Hand) != formcoach.HandLandmarkCount {
		t.Fatalf("landmarks lost: pose=%d hand=%d", len(bundle.Frames[0].Pose), len(bundle.Frames[0].Hand))
	}
	if len(bundle.SourceSHA256) != 64 || bundle.SourceSizeBytes != int64(buf.Len()) {
		t.Fatalf("checksum metadata: %+v", bundle)
	}
	if len(bundle.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", bundle.Warnings)
	}
}

func TestReadFramesReportsLine(t *testing.T) {
	input := "{\"ts_ms\":0,\"pose\":[]}\n\n{not json}\n"
	_, err := ReadFrames(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 error, got %v", err)
	}
}

func TestParseBytesWarnsOnTimestampOrder(t *testing.T) {
	input := "{\"ts_ms\":500}\n{\"ts_ms\":200}\n"
	bundle, err := ParseBytes([]byte(input))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if len(bundle.Warnings) != 1 {
		t.Fatalf("warnings: %v", bundle.Warnings)
	}
}

func TestEnsureOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := EnsureOutputDir(dir, false); err != nil {
		t.Fatalf("fresh dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureOutputDir(dir, false); err == nil {
		t.Fatal("expected error for non-empty dir")
	}
	if err := EnsureOutputDir(dir, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestReadFileRequiresPath(t *testing.T) {
	if _, err := ReadFile(" "); err == nil {
		t.Fatal("expected error")
	}
}
