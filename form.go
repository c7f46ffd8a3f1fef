package formcoach

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// RuleKind selects how a Rule's predicate is evaluated.
type RuleKind string

const (
	// RuleAngleBelow fires when Angle < Threshold.
	RuleAngleBelow RuleKind = "angle_below"
	// RuleAngleAbove fires when Angle > Threshold.
	RuleAngleAbove RuleKind = "angle_above"
	// RuleAngleOutside fires when Angle is outside Range.
	RuleAngleOutside RuleKind = "angle_outside"
	// RuleForwardOffset fires when pose[Landmarks[0]].x > pose[Landmarks[1]].x + Threshold.
	RuleForwardOffset RuleKind = "forward_offset"
	// RuleHorizontalDrift fires when |pose[Landmarks[0]].x - pose[Landmarks[1]].x| > Threshold.
	RuleHorizontalDrift RuleKind = "horizontal_drift"
)

// Rule is one form check. A rule whose inputs are not visible never fires.
type Rule struct {
	ID        string   `json:"id"`
	Kind      RuleKind `json:"kind"`
	Angle     string   `json:"angle,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Range     Window   `json:"range"`
	Landmarks [2]int   `json:"landmarks"`
	// Phase limits the rule to frames classified in that phase. Empty means always.
	Phase   Phase  `json:"phase,omitempty"`
	Message string `json:"message"`
	Penalty int    `json:"penalty"`
}

func (r Rule) violated(pose []Landmark, angles Angles, phase Phase) bool {
	if r.Phase != PhaseNone && r.Phase != phase {
		return false
	}
	switch r.Kind {
	case RuleAngleBelow, RuleAngleAbove, RuleAngleOutside:
		v, ok := angles[r.Angle]
		if !ok || math.IsNaN(v) {
			return false
		}
		switch r.Kind {
		case RuleAngleBelow:
			return v < r.Threshold
		case RuleAngleAbove:
			return v > r.Threshold
		default:
			return !r.Range.Contains(v)
		}
	case RuleForwardOffset, RuleHorizontalDrift:
		a, okA := landmarkAt(pose, r.Landmarks[0])
		b, okB := landmarkAt(pose, r.Landmarks[1])
		if !okA || !okB {
			return false
		}
		if r.Kind == RuleForwardOffset {
			return a.X > b.X+r.Threshold
		}
		return math.Abs(a.X-b.X) > r.Threshold
	}
	return false
}

func (r Rule) validate(cfg *ExerciseConfig) error {
	var err error
	if r.ID == "" {
		err = multierr.Append(err, errors.New("missing id"))
	}
	if r.Penalty < 0 || r.Penalty > 100 {
		err = multierr.Append(err, fmt.Errorf("penalty %d outside [0, 100]", r.Penalty))
	}
	switch r.Kind {
	case RuleAngleBelow, RuleAngleAbove:
		if !cfg.hasAngle(r.Angle) {
			err = multierr.Append(err, fmt.Errorf("angle %q is not declared", r.Angle))
		}
	case RuleAngleOutside:
		if !cfg.hasAngle(r.Angle) {
			err = multierr.Append(err, fmt.Errorf("angle %q is not declared", r.Angle))
		}
		err = multierr.Append(err, r.Range.validate("range"))
	case RuleForwardOffset, RuleHorizontalDrift:
		for _, idx := range r.Landmarks {
			if idx < 0 || idx >= PoseLandmarkCount {
				err = multierr.Append(err, fmt.Errorf("landmark index %d out of range", idx))
			}
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown kind %q", r.Kind))
	}
	return err
}

// FormResult is the outcome of evaluating every rule on one frame.
type FormResult struct {
	Score     int      `json:"score"`
	IsCorrect bool     `json:"is_correct"`
	Issues    []string `json:"issues"`
}

// CheckForm evaluates every rule of the exercise independently. All violated
// rules report their message and their penalties stack; the score is clamped
// to [0, 100].
func CheckForm(pose []Landmark, angles Angles, phase Phase, cfg *ExerciseConfig) FormResult {
	score := 100
	issues := make([]string, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if !r.violated(pose, angles, phase) {
			continue
		}
		issues = append(issues, r.Message)
		score -= r.Penalty
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return FormResult{
		Score:     score,
		IsCorrect: len(issues) == 0,
		Issues:    issues,
	}
}
