package recording

import (
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

const (
	// FormatVersion identifies the on-disk schema of analysis bundles.
	FormatVersion = "formcoach_jsonl_v1"
)

// Bundle is a parsed landmark recording.
type Bundle struct {
	Frames          []formcoach.Frame
	SourceSHA256    string
	SourceSizeBytes int64
	// Warnings holds non-fatal ingest notes (for example frames out of
	// timestamp order).
	Warnings []string
}

// ResultEnvelope is one line of analysis.jsonl.
type ResultEnvelope struct {
	RecordIndex  int                   `json:"record_index"`
	TimestampMS  int64                 `json:"ts_ms"`
	ControlState string                `json:"control_state,omitempty"`
	Event        string                `json:"event,omitempty"`
	Result       formcoach.FrameResult `json:"result"`
}

// Manifest captures run metadata and pointers to the written artifacts.
type Manifest struct {
	FormatVersion     string        `json:"format_version"`
	GeneratedAt       time.Time     `json:"generated_at"`
	SourceFile        string        `json:"source_file,omitempty"`
	SourceFileName    string        `json:"source_file_name,omitempty"`
	SourceSHA256      string        `json:"source_sha256"`
	SourceSizeBytes   int64         `json:"source_size_bytes"`
	Exercise          string        `json:"exercise"`
	GestureControl    bool          `json:"gesture_control"`
	FrameCount        int           `json:"frame_count"`
	AnalyzedCount     int           `json:"analyzed_count"`
	GatedCount        int           `json:"gated_count"`
	RejectedCount     int           `json:"rejected_count"`
	PreflightCount    int           `json:"preflight_count,omitempty"`
	Artifacts         []string      `json:"artifacts"`
	Warnings          []string      `json:"warnings,omitempty"`
	SchemaDescription SchemaDetails `json:"schema_description"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

// DefaultSchema describes analysis.jsonl.
func DefaultSchema() SchemaDetails {
	return SchemaDetails{
		RecordType: "JSONL line-per-input-frame preserving recording order",
		Notes: []string{
			"record_index is the zero-based line of the frame in the source recording.",
			"result.analyzed is false when the positioning gate held the frame back.",
			"result.success is false when the frame carried fewer than 33 pose landmarks.",
			"control_state is present only for gesture-controlled runs.",
			"result.frame_index is -1 for frames handled before counting started or after it finished.",
		},
	}
}
