// Package recording reads landmark recordings and writes analysis bundles.
//
// A recording is JSONL with one formcoach.Frame per line:
//
//	{"ts_ms":0,"pose":[{"x":0.5,"y":0.2,"z":0,"visibility":0.9}, ...],"hand":[...]}
package recording

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// ReadFrames decodes a JSONL frame stream. Blank lines are skipped; a
// malformed line fails the whole read with its line number.
func ReadFrames(r io.Reader) ([]formcoach.Frame, error) {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	sc.Buffer(buf, 16*1024*1024)

	frames := make([]formcoach.Frame, 0, 1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f formcoach.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("line %d: unmarshal frame: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// ParseBytes decodes a recording held in memory.
func ParseBytes(data []byte) (*Bundle, error) {
	frames, err := ReadFrames(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse recording: %w", err)
	}
	sum := sha256.Sum256(data)
	return &Bundle{
		Frames:          frames,
		SourceSHA256:    hex.EncodeToString(sum[:]),
		SourceSizeBytes: int64(len(data)),
		Warnings:        timestampWarnings(frames),
	}, nil
}

// ReadFile decodes the recording at path.
func ReadFile(path string) (*Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("recording path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return ParseBytes(data)
}

func timestampWarnings(frames []formcoach.Frame) []string {
	var warnings []string
	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampMS < frames[i-1].TimestampMS {
			warnings = append(warnings, fmt.Sprintf("frame %d timestamp %d is earlier than frame %d", i, frames[i].TimestampMS, i-1))
		}
	}
	return warnings
}

// WriteFrames encodes frames as JSONL.
func WriteFrames(w io.Writer, frames []formcoach.Frame) error {
	buf := bufio.NewWriterSize(w, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// MarshalJSON renders indented JSON followed by a newline.
func MarshalJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	return out, nil
}

// MarshalJSONL renders result envelopes as JSONL bytes.
func MarshalJSONL(records []ResultEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriterSize(&buf, 1<<20)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnsureOutputDir creates path and refuses a non-empty directory unless
// overwrite is set.
func EnsureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}
