package formcoach

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInsufficientLandmarks marks frames with fewer body points than required.
var ErrInsufficientLandmarks = errors.New("insufficient landmarks detected")

// Rating thresholds for completed reps.
const (
	PerfectRepScore = 90
	GoodRepScore    = 70
)

// SessionState is the mutable record of one continuous set.
type SessionState struct {
	CurrentPhase Phase       `json:"current_phase"`
	LastPhase    Phase       `json:"last_phase"`
	RepCount     int         `json:"rep_count"`
	PhaseHistory []Phase     `json:"phase_history"`
	FormScores   []int       `json:"form_scores"`
	Reps         []RepRecord `json:"reps"`
}

// RepRecord describes one completed rep.
type RepRecord struct {
	Number      int      `json:"number"`
	FrameIndex  int      `json:"frame_index"`
	TimestampMS int64    `json:"ts_ms"`
	FormScore   int      `json:"form_score"`
	Issues      []string `json:"issues"`
}

// FrameResult is the analysis output for one frame.
//
// Success is false only when the frame was rejected as input. Analyzed is
// false when the positioning gate held the frame back; in that case only
// Positioning and Gesture are meaningful and the session was not touched.
type FrameResult struct {
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
	Analyzed         bool              `json:"analyzed"`
	FrameIndex       int               `json:"frame_index"`
	Positioning      PositioningResult `json:"positioning"`
	Angles           Angles            `json:"angles,omitempty"`
	Phase            Phase             `json:"phase,omitempty"`
	Form             *FormResult       `json:"form,omitempty"`
	RepCompleted     bool              `json:"rep_completed"`
	RepCount         int               `json:"rep_count"`
	Gesture          Gesture           `json:"gesture,omitempty"`
	AverageFormScore float64           `json:"average_form_score"`
}

// Summary aggregates a set.
type Summary struct {
	Exercise         Exercise       `json:"exercise"`
	Static           bool           `json:"static,omitempty"`
	TotalReps        int            `json:"total_reps"`
	AverageFormScore int            `json:"average_form_score"`
	PerfectReps      int            `json:"perfect_reps"`
	GoodReps         int            `json:"good_reps"`
	NeedsWork        int            `json:"needs_work"`
	CorrectReps      int            `json:"correct_reps"`
	IncorrectReps    int            `json:"incorrect_reps"`
	FramesAnalyzed   int            `json:"frames_analyzed"`
	FramesRejected   int            `json:"frames_rejected"`
	FramesGated      int            `json:"frames_gated"`
	HoldSeconds      float64        `json:"hold_seconds,omitempty"`
	IssueCounts      map[string]int `json:"issue_counts"`
}

// Session tracks one set of one exercise. Calls must be serialized by the
// caller; Arena does this for concurrent use.
type Session struct {
	cfg   *ExerciseConfig
	state SessionState

	frames     int
	rejected   int
	gated      int
	holdMS     int64
	lastHoldTS int64
	holding    bool
}

// NewSession starts a session for ex using the registry's configuration.
func NewSession(reg *Registry, ex Exercise) (*Session, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	cfg, err := reg.Lookup(ex)
	if err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg}
	s.Reset()
	return s, nil
}

// Exercise returns the exercise this session tracks.
func (s *Session) Exercise() Exercise {
	return s.cfg.Exercise
}

// Config returns the exercise configuration in use.
func (s *Session) Config() *ExerciseConfig {
	return s.cfg
}

// Analyze runs one frame through the gate, the classifiers and the rep counter.
func (s *Session) Analyze(f Frame) FrameResult {
	idx := s.frames
	s.frames++

	res := FrameResult{
		FrameIndex:       idx,
		Gesture:          DetectGesture(f),
		RepCount:         s.state.RepCount,
		AverageFormScore: s.runningAverage(),
	}

	if len(f.Pose) < PoseLandmarkCount {
		s.rejected++
		s.holding = false
		res.Error = fmt.Sprintf("%s: got %d of %d", ErrInsufficientLandmarks, len(f.Pose), PoseLandmarkCount)
		return res
	}
	res.Success = true

	res.Positioning = CheckPositioning(f.Pose, s.cfg.KeyLandmarks)
	if !res.Positioning.IsReady {
		s.gated++
		s.holding = false
		return res
	}
	res.Analyzed = true

	angles := s.cfg.ComputeAngles(f.Pose)
	phase := ClassifyPhase(angles, s.cfg)
	form := CheckForm(f.Pose, angles, phase, s.cfg)

	completed := !s.cfg.Static && s.state.CurrentPhase == PhaseDown && phase == PhaseUp
	if completed {
		s.state.RepCount++
		s.state.FormScores = append(s.state.FormScores, form.Score)
		s.state.Reps = append(s.state.Reps, RepRecord{
			Number:      s.state.RepCount,
			FrameIndex:  idx,
			TimestampMS: f.TimestampMS,
			FormScore:   form.Score,
			Issues:      append([]string{}, form.Issues...),
		})
	}

	if s.cfg.Static {
		s.trackHold(f.TimestampMS, phase == PhaseHold && form.IsCorrect)
	}

	s.state.LastPhase = s.state.CurrentPhase
	s.state.CurrentPhase = phase
	s.state.PhaseHistory = append(s.state.PhaseHistory, phase)

	res.Angles = angles
	res.Phase = phase
	res.Form = &form
	res.RepCompleted = completed
	res.RepCount = s.state.RepCount
	res.AverageFormScore = s.runningAverage()
	return res
}

func (s *Session) trackHold(ts int64, good bool) {
	if !good {
		s.holding = false
		return
	}
	if s.holding && ts > s.lastHoldTS {
		s.holdMS += ts - s.lastHoldTS
	}
	s.holding = true
	s.lastHoldTS = ts
}

func (s *Session) runningAverage() float64 {
	if len(s.state.FormScores) == 0 {
		return 100
	}
	var sum int
	for _, v := range s.state.FormScores {
		sum += v
	}
	return float64(sum) / float64(len(s.state.FormScores))
}

// Summary reports the set so far.
func (s *Session) Summary() Summary {
	out := Summary{
		Exercise:         s.cfg.Exercise,
		Static:           s.cfg.Static,
		TotalReps:        s.state.RepCount,
		AverageFormScore: int(math.Round(s.runningAverage())),
		FramesAnalyzed:   len(s.state.PhaseHistory),
		FramesRejected:   s.rejected,
		FramesGated:      s.gated,
		HoldSeconds:      float64(s.holdMS) / 1000.0,
		IssueCounts:      map[string]int{},
	}
	for _, score := range s.state.FormScores {
		switch {
		case score >= PerfectRepScore:
			out.PerfectReps++
		case score >= GoodRepScore:
			out.GoodReps++
		default:
			out.NeedsWork++
		}
	}
	for _, rep := range s.state.Reps {
		if len(rep.Issues) == 0 {
			out.CorrectReps++
		} else {
			out.IncorrectReps++
		}
		for _, issue := range rep.Issues {
			out.IssueCounts[issue]++
		}
	}
	return out
}

// State returns a copy of the session state.
func (s *Session) State() SessionState {
	cp := s.state
	cp.PhaseHistory = append([]Phase{}, s.state.PhaseHistory...)
	cp.FormScores = append([]int{}, s.state.FormScores...)
	cp.Reps = make([]RepRecord, len(s.state.Reps))
	for i, rep := range s.state.Reps {
		rep.Issues = append([]string{}, rep.Issues...)
		cp.Reps[i] = rep
	}
	return cp
}

// Reps returns a copy of the completed rep records.
func (s *Session) Reps() []RepRecord {
	return s.State().Reps
}

// Reset returns the session to its initial state. Use it between sets only.
func (s *Session) Reset() {
	s.state = SessionState{
		CurrentPhase: PhaseReady,
		LastPhase:    PhaseNone,
		PhaseHistory: []Phase{},
		FormScores:   []int{},
		Reps:         []RepRecord{},
	}
	s.frames = 0
	s.rejected = 0
	s.gated = 0
	s.holdMS = 0
	s.lastHoldTS = 0
	s.holding = false
}

// TopIssues returns issue messages ordered by count, then text.
func (s Summary) TopIssues(n int) []string {
	keys := make([]string, 0, len(s.IssueCounts))
	for k := range s.IssueCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := s.IssueCounts[keys[i]], s.IssueCounts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
