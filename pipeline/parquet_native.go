package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type frameParquetRow struct {
	RecordIndex  int64   `parquet:"name=record_index, type=INT64"`
	TimestampMS  int64   `parquet:"name=ts_ms, type=INT64"`
	ControlState string  `parquet:"name=control_state, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Success      bool    `parquet:"name=success, type=BOOLEAN"`
	Analyzed     bool    `parquet:"name=analyzed, type=BOOLEAN"`
	Ready        bool    `parquet:"name=ready, type=BOOLEAN"`
	Visibility   float64 `parquet:"name=visibility, type=DOUBLE"`
	Confidence   float64 `parquet:"name=confidence, type=DOUBLE"`
	Phase        string  `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PrimaryAngle float64 `parquet:"name=primary_angle, type=DOUBLE"`
	FormScore    float64 `parquet:"name=form_score, type=DOUBLE"`
	IsCorrect    bool    `parquet:"name=is_correct, type=BOOLEAN"`
	Issues       string  `parquet:"name=issues, type=BYTE_ARRAY, convertedtype=UTF8"`
	RepCompleted bool    `parquet:"name=rep_completed, type=BOOLEAN"`
	RepCount     int64   `parquet:"name=rep_count, type=INT64"`
	Gesture      string  `parquet:"name=gesture, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

func marshalFrameParquet(rows []FrameRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(frameParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := frameParquetRow{
			RecordIndex:  int64(r.RecordIndex),
			TimestampMS:  r.TimestampMS,
			ControlState: r.ControlState,
			Success:      r.Success,
			Analyzed:     r.Analyzed,
			Ready:        r.Ready,
			Visibility:   r.Visibility,
			Confidence:   r.Confidence,
			Phase:        r.Phase,
			PrimaryAngle: r.PrimaryAngle,
			FormScore:    r.FormScore,
			IsCorrect:    r.IsCorrect,
			Issues:       r.Issues,
			RepCompleted: r.RepCompleted,
			RepCount:     int64(r.RepCount),
			Gesture:      r.Gesture,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
