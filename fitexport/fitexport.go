// Package fitexport writes a finished set as a FIT activity so it can be
// imported by training platforms that read Garmin FIT files.
package fitexport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tormoder/fit"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// SetInfo is the input to EncodeSet. Frame timestamps are milliseconds on the
// recording clock; BaseMS is the recording time that maps to Start.
type SetInfo struct {
	Exercise formcoach.Exercise
	Start    time.Time
	BaseMS   int64
	EndMS    int64
	Reps     []formcoach.RepRecord
}

// DecodedSet is what DecodeSet recovers from a FIT file.
type DecodedSet struct {
	Sport           string    `json:"sport"`
	SubSport        string    `json:"sub_sport"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	LapCount        int       `json:"lap_count"`
	LapSeconds      []float64 `json:"lap_seconds"`
}

func (s SetInfo) at(ms int64) time.Time {
	return s.Start.Add(time.Duration(ms-s.BaseMS) * time.Millisecond)
}

func scaledSeconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}

// EncodeSet renders the set as a strength-training FIT activity with one lap
// per completed rep.
func EncodeSet(info SetInfo) ([]byte, error) {
	if info.Start.IsZero() {
		return nil, fmt.Errorf("set start time is required")
	}
	end := info.at(info.EndMS)
	if end.Before(info.Start) {
		return nil, fmt.Errorf("set ends before it starts")
	}

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		return nil, fmt.Errorf("new fit file: %w", err)
	}
	file.FileId.TimeCreated = info.Start
	file.FileId.Manufacturer = fit.ManufacturerDevelopment

	activity, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity accessor: %w", err)
	}

	startEvent := fit.NewEventMsg()
	startEvent.Timestamp = info.Start
	startEvent.Event = fit.EventTimer
	startEvent.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, startEvent)

	lapStart := info.Start
	for i, rep := range info.Reps {
		lapEnd := info.at(rep.TimestampMS)
		if lapEnd.Before(lapStart) {
			return nil, fmt.Errorf("rep %d ends before the previous rep", rep.Number)
		}
		lap := fit.NewLapMsg()
		lap.MessageIndex = fit.MessageIndex(i)
		lap.StartTime = lapStart
		lap.Timestamp = lapEnd
		lap.TotalElapsedTime = scaledSeconds(lapEnd.Sub(lapStart))
		lap.TotalTimerTime = lap.TotalElapsedTime
		lap.Event = fit.EventLap
		lap.EventType = fit.EventTypeStop
		lap.Sport = fit.SportTraining
		lap.SubSport = fit.SubSportStrengthTraining
		activity.Laps = append(activity.Laps, lap)
		lapStart = lapEnd
	}

	stopEvent := fit.NewEventMsg()
	stopEvent.Timestamp = end
	stopEvent.Event = fit.EventTimer
	stopEvent.EventType = fit.EventTypeStop
	activity.Events = append(activity.Events, stopEvent)

	total := scaledSeconds(end.Sub(info.Start))
	session := fit.NewSessionMsg()
	session.Timestamp = end
	session.StartTime = info.Start
	session.TotalElapsedTime = total
	session.TotalTimerTime = total
	session.Sport = fit.SportTraining
	session.SubSport = fit.SubSportStrengthTraining
	session.FirstLapIndex = 0
	session.NumLaps = uint16(len(activity.Laps))
	session.Event = fit.EventSession
	session.EventType = fit.EventTypeStop
	activity.Sessions = append(activity.Sessions, session)

	act := fit.NewActivityMsg()
	act.Timestamp = end
	act.TotalTimerTime = total
	act.NumSessions = 1
	act.Type = fit.ActivityModeManual
	act.Event = fit.EventActivity
	act.EventType = fit.EventTypeStop
	activity.Activity = act

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode fit: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSet reads back a file written by EncodeSet.
func DecodeSet(data []byte) (*DecodedSet, error) {
	decoded, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity accessor: %w", err)
	}
	if len(activity.Sessions) == 0 {
		return nil, fmt.Errorf("no session message in fit file")
	}
	session := activity.Sessions[0]
	out := &DecodedSet{
		Sport:           fmt.Sprint(session.Sport),
		SubSport:        fmt.Sprint(session.SubSport),
		StartTime:       session.StartTime.UTC(),
		DurationSeconds: session.GetTotalElapsedTimeScaled(),
		LapCount:        len(activity.Laps),
		LapSeconds:      make([]float64, 0, len(activity.Laps)),
	}
	for _, lap := range activity.Laps {
		if lap == nil {
			continue
		}
		out.LapSeconds = append(out.LapSeconds, lap.GetTotalElapsedTimeScaled())
	}
	return out, nil
}
