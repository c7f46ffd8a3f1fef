//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/pipeline"
)

func main() {
	js.Global().Set("analyzeRecording", js.FuncOf(analyzeRecording))
	select {}
}

func analyzeRecording(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: recordingBytes(Uint8Array), options(object)")
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("recording bytes are required")
	}

	data := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(data, fileArg); n == 0 {
		return failure("failed to read recording bytes from JS input")
	}

	ex, err := formcoach.ParseExercise(getString(optsArg, "exercise", ""))
	if err != nil {
		return failure(err.Error())
	}
	result, err := pipeline.RunBytes(data, pipeline.BytesOptions{
		SourceName:     getString(optsArg, "source_file_name", "recording.jsonl"),
		Exercise:       ex,
		Format:         getString(optsArg, "format", "parquet"),
		GestureControl: getBool(optsArg, "gesture_control"),
		ConfirmFrames:  getInt(optsArg, "confirm_frames"),
		Cooldown:       time.Duration(getInt(optsArg, "cooldown_ms")) * time.Millisecond,
	})
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(result.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(result.Files))
	for name := range result.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":                 true,
		"zip":                payload,
		"warnings":           stringsToAny(result.Warnings),
		"files":              stringsToAny(fileNames),
		"total_reps":         result.Summary.TotalReps,
		"average_form_score": result.Summary.AverageFormScore,
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func field(v js.Value, key string) (js.Value, bool) {
	if v.IsUndefined() || v.IsNull() {
		return js.Value{}, false
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return js.Value{}, false
	}
	return out, true
}

func getString(v js.Value, key, fallback string) string {
	out, ok := field(v, key)
	if !ok || out.Type() != js.TypeString || out.String() == "" {
		return fallback
	}
	return out.String()
}

func getInt(v js.Value, key string) int {
	out, ok := field(v, key)
	if !ok || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Int()
}

func getBool(v js.Value, key string) bool {
	out, ok := field(v, key)
	return ok && out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
