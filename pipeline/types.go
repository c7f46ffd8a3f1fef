package pipeline

import (
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// Artifact file names written by Run and keyed in BytesResult.Files.
const (
	ManifestFile      = "manifest.json"
	AnalysisFile      = "analysis.jsonl"
	FrameAnalysisStem = "frame_analysis"
	SummaryFile       = "session_summary.json"
	NotesFile         = "session_notes.md"
	FitFile           = "set.fit"
)

// Options configures a replay of one landmark recording.
type Options struct {
	RecordingPath string
	OutDir        string
	Exercise      formcoach.Exercise
	Format        string // parquet|csv
	Overwrite     bool

	// GestureControl runs the thumbs-up/thumbs-down start/stop flow instead
	// of analyzing every frame.
	GestureControl bool
	ConfirmFrames  int
	Cooldown       time.Duration

	// Registry is used when Arena is nil. A shared Arena carries its own.
	Registry *formcoach.Registry
	Arena    *formcoach.Arena

	// StartTime anchors the FIT export. Defaults to now.
	StartTime time.Time
}

// BytesOptions configures RunBytes, which works fully in memory.
type BytesOptions struct {
	SourceName     string
	Exercise       formcoach.Exercise
	Format         string
	GestureControl bool
	ConfirmFrames  int
	Cooldown       time.Duration
	Registry       *formcoach.Registry
	Arena          *formcoach.Arena
	StartTime      time.Time
}

// Result returns generated output paths.
type Result struct {
	OutputDir         string            `json:"output_dir"`
	ManifestPath      string            `json:"manifest_path"`
	AnalysisPath      string            `json:"analysis_path"`
	FrameAnalysisPath string            `json:"frame_analysis_path"`
	SummaryPath       string            `json:"summary_path"`
	NotesPath         string            `json:"notes_path"`
	FitPath           string            `json:"fit_path,omitempty"`
	Summary           formcoach.Summary `json:"summary"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// BytesResult carries every artifact keyed by file name.
type BytesResult struct {
	Files    map[string][]byte `json:"-"`
	Summary  formcoach.Summary `json:"summary"`
	Warnings []string          `json:"warnings,omitempty"`
}

// FrameRow is one row of frame_analysis.(parquet|csv).
type FrameRow struct {
	RecordIndex  int     `json:"record_index"`
	TimestampMS  int64   `json:"ts_ms"`
	ControlState string  `json:"control_state,omitempty"`
	Success      bool    `json:"success"`
	Analyzed     bool    `json:"analyzed"`
	Ready        bool    `json:"ready"`
	Visibility   float64 `json:"visibility"`
	Confidence   float64 `json:"confidence"`
	Phase        string  `json:"phase,omitempty"`
	PrimaryAngle float64 `json:"primary_angle"`
	FormScore    float64 `json:"form_score"`
	IsCorrect    bool    `json:"is_correct"`
	Issues       string  `json:"issues,omitempty"`
	RepCompleted bool    `json:"rep_completed"`
	RepCount     int     `json:"rep_count"`
	Gesture      string  `json:"gesture,omitempty"`
}

// ControlEvent records one gesture-control state change.
type ControlEvent struct {
	RecordIndex int          `json:"record_index"`
	TimestampMS int64        `json:"ts_ms"`
	From        ControlState `json:"from"`
	To          ControlState `json:"to"`
	Trigger     string       `json:"trigger"`
}

// SessionSummaryFile is the content of session_summary.json.
type SessionSummaryFile struct {
	Exercise     string                `json:"exercise"`
	ExerciseName string                `json:"exercise_name"`
	Summary      formcoach.Summary     `json:"summary"`
	TopIssues    []string              `json:"top_issues,omitempty"`
	Reps         []formcoach.RepRecord `json:"reps"`
	SetStartMS   *int64                `json:"set_start_ms,omitempty"`
	SetEndMS     *int64                `json:"set_end_ms,omitempty"`
	Events       []ControlEvent        `json:"control_events,omitempty"`
}
