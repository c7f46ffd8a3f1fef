package formcoach

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// ErrUnknownExercise is returned for exercise ids the registry does not know.
var ErrUnknownExercise = errors.New("unknown exercise")

// Exercise identifies one supported movement.
type Exercise int

const (
	ExerciseUnknown Exercise = iota
	Squat
	PushUp
	Lunge
	BicepCurl
	Plank
	Deadlift
)

var exerciseIDs = map[Exercise]string{
	Squat:     "squat",
	PushUp:    "pushup",
	Lunge:     "lunge",
	BicepCurl: "bicepCurl",
	Plank:     "plank",
	Deadlift:  "deadlift",
}

// AllExercises lists the supported exercises in registry order.
func AllExercises() []Exercise {
	return []Exercise{Squat, PushUp, Lunge, BicepCurl, Plank, Deadlift}
}

func (e Exercise) String() string {
	if id, ok := exerciseIDs[e]; ok {
		return id
	}
	return "unknown"
}

// ParseExercise maps an exercise id to its Exercise. Matching ignores case and
// surrounding whitespace; there is no fallback for unknown ids.
func ParseExercise(id string) (Exercise, error) {
	needle := strings.ToLower(strings.TrimSpace(id))
	for ex, name := range exerciseIDs {
		if strings.ToLower(name) == needle {
			return ex, nil
		}
	}
	return ExerciseUnknown, fmt.Errorf("%w: %q", ErrUnknownExercise, id)
}

func (e Exercise) MarshalText() ([]byte, error) {
	if _, ok := exerciseIDs[e]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownExercise, int(e))
	}
	return []byte(e.String()), nil
}

func (e *Exercise) UnmarshalText(text []byte) error {
	parsed, err := ParseExercise(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Window is an inclusive angle range in degrees.
type Window struct {
	Min float64 `json:"min" yaml:"min" toml:"min"`
	Max float64 `json:"max" yaml:"max" toml:"max"`
}

// Contains reports whether v lies inside the window, bounds included.
func (w Window) Contains(v float64) bool {
	return v >= w.Min && v <= w.Max
}

func (w Window) validate(name string) error {
	if math.IsNaN(w.Min) || math.IsNaN(w.Max) {
		return fmt.Errorf("%s: window bounds must be numbers", name)
	}
	if w.Min > w.Max {
		return fmt.Errorf("%s: min %.1f exceeds max %.1f", name, w.Min, w.Max)
	}
	if w.Min < 0 || w.Max > 180 {
		return fmt.Errorf("%s: window [%.1f, %.1f] outside [0, 180]", name, w.Min, w.Max)
	}
	return nil
}

// AngleSpec names a joint angle and the landmark triplets (a, vertex, c) it is
// measured on. When several triplets are listed the angle is their mean over
// the triplets whose landmarks are all present.
type AngleSpec struct {
	Name   string   `json:"name"`
	Joints [][3]int `json:"joints"`
}

// Angles maps angle names to degrees. An absent key means the joints were not
// visible in the frame.
type Angles map[string]float64

// ExerciseConfig is the static description of one exercise.
type ExerciseConfig struct {
	Exercise     Exercise    `json:"exercise"`
	Name         string      `json:"name"`
	KeyLandmarks []int       `json:"key_landmarks"`
	Angles       []AngleSpec `json:"angles"`
	PrimaryAngle string      `json:"primary_angle"`
	Up           Window      `json:"up"`
	Down         Window      `json:"down"`
	Static       bool        `json:"static"`
	Target       Window      `json:"target"`
	Rules        []Rule      `json:"rules"`
}

// ComputeAngles measures every angle the config declares.
func (c *ExerciseConfig) ComputeAngles(pose []Landmark) Angles {
	out := make(Angles, len(c.Angles))
	for _, spec := range c.Angles {
		var sum float64
		var n int
		for _, j := range spec.Joints {
			a, okA := landmarkAt(pose, j[0])
			b, okB := landmarkAt(pose, j[1])
			cc, okC := landmarkAt(pose, j[2])
			if !okA || !okB || !okC {
				continue
			}
			sum += AngleBetween(a, b, cc)
			n++
		}
		if n > 0 {
			out[spec.Name] = sum / float64(n)
		}
	}
	return out
}

func (c *ExerciseConfig) hasAngle(name string) bool {
	for _, spec := range c.Angles {
		if spec.Name == name {
			return true
		}
	}
	return false
}

func (c *ExerciseConfig) clone() *ExerciseConfig {
	cp := *c
	cp.KeyLandmarks = append([]int(nil), c.KeyLandmarks...)
	cp.Angles = make([]AngleSpec, len(c.Angles))
	for i, spec := range c.Angles {
		cp.Angles[i] = AngleSpec{Name: spec.Name, Joints: append([][3]int(nil), spec.Joints...)}
	}
	cp.Rules = append([]Rule(nil), c.Rules...)
	return &cp
}

// Validate checks the config for internal consistency.
func (c *ExerciseConfig) Validate() error {
	var errs error
	prefix := c.Exercise.String()
	if _, ok := exerciseIDs[c.Exercise]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", prefix, ErrUnknownExercise))
	}
	for _, spec := range c.Angles {
		for _, j := range spec.Joints {
			for _, idx := range j {
				if idx < 0 || idx >= PoseLandmarkCount {
					errs = multierr.Append(errs, fmt.Errorf("%s: angle %s: landmark index %d out of range", prefix, spec.Name, idx))
				}
			}
		}
	}
	if c.Static {
		errs = multierr.Append(errs, c.Target.validate(prefix+" target"))
	} else {
		errs = multierr.Append(errs, c.Up.validate(prefix+" up"))
		errs = multierr.Append(errs, c.Down.validate(prefix+" down"))
	}
	if !c.hasAngle(c.PrimaryAngle) {
		errs = multierr.Append(errs, fmt.Errorf("%s: primary angle %q is not declared", prefix, c.PrimaryAngle))
	}
	seen := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if _, dup := seen[r.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicate rule id %q", prefix, r.ID))
		}
		seen[r.ID] = struct{}{}
		if err := r.validate(c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: rule %s: %w", prefix, r.ID, err))
		}
	}
	return errs
}

// Registry maps every exercise to its configuration. It is read-only once
// built; overrides produce a new registry.
type Registry struct {
	configs map[Exercise]*ExerciseConfig
}

// Lookup returns the configuration for an exercise.
func (r *Registry) Lookup(ex Exercise) (*ExerciseConfig, error) {
	cfg, ok := r.configs[ex]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, ex)
	}
	return cfg, nil
}

// Exercises returns the registered exercises in stable order.
func (r *Registry) Exercises() []Exercise {
	out := make([]Exercise, 0, len(r.configs))
	for ex := range r.configs {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks every registered configuration and reports all problems.
func (r *Registry) Validate() error {
	var errs error
	for _, ex := range r.Exercises() {
		errs = multierr.Append(errs, r.configs[ex].Validate())
	}
	return errs
}

// RuleOverride adjusts one rule of an exercise.
type RuleOverride struct {
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold" toml:"threshold"`
	Range     *Window  `json:"range,omitempty" yaml:"range" toml:"range"`
	Penalty   *int     `json:"penalty,omitempty" yaml:"penalty" toml:"penalty"`
	Disabled  bool     `json:"disabled,omitempty" yaml:"disabled" toml:"disabled"`
}

// ExerciseOverride adjusts the windows and rules of one exercise.
type ExerciseOverride struct {
	Up     *Window                 `json:"up,omitempty" yaml:"up" toml:"up"`
	Down   *Window                 `json:"down,omitempty" yaml:"down" toml:"down"`
	Target *Window                 `json:"target,omitempty" yaml:"target" toml:"target"`
	Rules  map[string]RuleOverride `json:"rules,omitempty" yaml:"rules" toml:"rules"`
}

// WithOverrides returns a validated copy of the registry with the overrides
// applied. The receiver is left untouched.
func (r *Registry) WithOverrides(overrides map[Exercise]ExerciseOverride) (*Registry, error) {
	out := &Registry{configs: make(map[Exercise]*ExerciseConfig, len(r.configs))}
	for ex, cfg := range r.configs {
		out.configs[ex] = cfg.clone()
	}

	var errs error
	for ex, ov := range overrides {
		cfg, ok := out.configs[ex]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("override: %w: %s", ErrUnknownExercise, ex))
			continue
		}
		if ov.Up != nil {
			cfg.Up = *ov.Up
		}
		if ov.Down != nil {
			cfg.Down = *ov.Down
		}
		if ov.Target != nil {
			cfg.Target = *ov.Target
			cfg.syncTargetRules()
		}
		if (ov.Up != nil || ov.Down != nil) && cfg.Static {
			errs = multierr.Append(errs, fmt.Errorf("override %s: static exercise has no up/down windows", ex))
		}
		if ov.Target != nil && !cfg.Static {
			errs = multierr.Append(errs, fmt.Errorf("override %s: only static exercises have a target window", ex))
		}

		ids := make([]string, 0, len(ov.Rules))
		for id := range ov.Rules {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := applyRuleOverride(cfg, id, ov.Rules[id]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("override %s: %w", ex, err))
			}
		}
	}
	if errs != nil {
		return nil, errs
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// syncTargetRules points the static hold check at the target window: every
// angle_outside rule on the primary angle takes Target as its range.
func (c *ExerciseConfig) syncTargetRules() {
	if !c.Static {
		return
	}
	for i := range c.Rules {
		if c.Rules[i].Kind == RuleAngleOutside && c.Rules[i].Angle == c.PrimaryAngle {
			c.Rules[i].Range = c.Target
		}
	}
}

func applyRuleOverride(cfg *ExerciseConfig, id string, ov RuleOverride) error {
	for i := range cfg.Rules {
		if cfg.Rules[i].ID != id {
			continue
		}
		if ov.Disabled {
			cfg.Rules = append(cfg.Rules[:i:i], cfg.Rules[i+1:]...)
			return nil
		}
		if ov.Threshold != nil {
			cfg.Rules[i].Threshold = *ov.Threshold
		}
		if ov.Range != nil {
			cfg.Rules[i].Range = *ov.Range
		}
		if ov.Penalty != nil {
			cfg.Rules[i].Penalty = *ov.Penalty
		}
		return nil
	}
	return fmt.Errorf("unknown rule %q", id)
}

// DefaultRegistry returns the built-in exercise table.
func DefaultRegistry() *Registry {
	leftKnee := [3]int{LeftHip, LeftKnee, LeftAnkle}
	rightKnee := [3]int{RightHip, RightKnee, RightAnkle}
	leftElbow := [3]int{LeftShoulder, LeftElbow, LeftWrist}
	rightElbow := [3]int{RightShoulder, RightElbow, RightWrist}
	leftHip := [3]int{LeftShoulder, LeftHip, LeftKnee}
	bodyLine := [3]int{LeftShoulder, LeftHip, LeftAnkle}

	configs := []*ExerciseConfig{
		{
			Exercise:     Squat,
			Name:         "Squat",
			KeyLandmarks: []int{LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle},
			Angles: []AngleSpec{
				{Name: "leftKnee", Joints: [][3]int{leftKnee}},
				{Name: "rightKnee", Joints: [][3]int{rightKnee}},
				{Name: "leftHip", Joints: [][3]int{leftHip}},
				{Name: "kneeAngle", Joints: [][3]int{leftKnee, rightKnee}},
			},
			PrimaryAngle: "kneeAngle",
			Up:           Window{Min: 160, Max: 180},
			Down:         Window{Min: 70, Max: 110},
			Rules: []Rule{
				{
					ID:        "knee_over_toe",
					Kind:      RuleForwardOffset,
					Landmarks: [2]int{LeftKnee, LeftFootIndex},
					Threshold: 0.05,
					Message:   "Knees going too far forward",
					Penalty:   15,
				},
				{
					ID:        "depth",
					Kind:      RuleAngleAbove,
					Angle:     "kneeAngle",
					Threshold: 100,
					Phase:     PhaseDown,
					Message:   "Go deeper for full range of motion",
					Penalty:   10,
				},
				{
					ID:        "back_angle",
					Kind:      RuleAngleBelow,
					Angle:     "leftHip",
					Threshold: 45,
					Message:   "Keep your back more upright",
					Penalty:   15,
				},
			},
		},
		{
			Exercise:     PushUp,
			Name:         "Push-up",
			KeyLandmarks: []int{LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist, LeftAnkle},
			Angles: []AngleSpec{
				{Name: "leftElbow", Joints: [][3]int{leftElbow}},
				{Name: "rightElbow", Joints: [][3]int{rightElbow}},
				{Name: "bodyLine", Joints: [][3]int{bodyLine}},
				{Name: "elbowAngle", Joints: [][3]int{leftElbow, rightElbow}},
			},
			PrimaryAngle: "elbowAngle",
			Up:           Window{Min: 160, Max: 180},
			Down:         Window{Min: 70, Max: 100},
			Rules: []Rule{
				{
					ID:        "body_line",
					Kind:      RuleAngleBelow,
					Angle:     "bodyLine",
					Threshold: 160,
					Message:   "Keep your body in a straight line",
					Penalty:   20,
				},
			},
		},
		{
			Exercise:     Lunge,
			Name:         "Lunge",
			KeyLandmarks: []int{LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle},
			Angles: []AngleSpec{
				{Name: "frontKnee", Joints: [][3]int{leftKnee}},
				{Name: "backKnee", Joints: [][3]int{rightKnee}},
				{Name: "frontKneeAngle", Joints: [][3]int{leftKnee}},
			},
			PrimaryAngle: "frontKneeAngle",
			Up:           Window{Min: 160, Max: 180},
			Down:         Window{Min: 80, Max: 100},
			Rules: []Rule{
				{
					ID:        "knee_over_toe",
					Kind:      RuleForwardOffset,
					Landmarks: [2]int{LeftKnee, LeftFootIndex},
					Threshold: 0.05,
					Message:   "Front knee going past toes",
					Penalty:   15,
				},
				{
					ID:        "back_knee_depth",
					Kind:      RuleAngleAbove,
					Angle:     "backKnee",
					Threshold: 110,
					Phase:     PhaseDown,
					Message:   "Lower your back knee toward the floor",
					Penalty:   10,
				},
			},
		},
		{
			Exercise:     BicepCurl,
			Name:         "Bicep curl",
			KeyLandmarks: []int{LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist},
			Angles: []AngleSpec{
				{Name: "leftElbow", Joints: [][3]int{leftElbow}},
				{Name: "rightElbow", Joints: [][3]int{rightElbow}},
				{Name: "elbowAngle", Joints: [][3]int{leftElbow, rightElbow}},
			},
			PrimaryAngle: "elbowAngle",
			Up:           Window{Min: 30, Max: 60},
			Down:         Window{Min: 150, Max: 180},
			Rules: []Rule{
				{
					ID:        "elbow_drift",
					Kind:      RuleHorizontalDrift,
					Landmarks: [2]int{LeftShoulder, LeftElbow},
					Threshold: 0.1,
					Message:   "Keep elbows close to your body",
					Penalty:   15,
				},
			},
		},
		{
			Exercise:     Plank,
			Name:         "Plank",
			KeyLandmarks: []int{LeftShoulder, LeftElbow, LeftHip, LeftAnkle},
			Angles: []AngleSpec{
				{Name: "bodyLine", Joints: [][3]int{bodyLine}},
				{Name: "shoulderAngle", Joints: [][3]int{{LeftElbow, LeftShoulder, LeftHip}}},
			},
			PrimaryAngle: "bodyLine",
			Static:       true,
			Target:       Window{Min: 165, Max: 180},
			Rules: []Rule{
				{
					ID:      "body_line",
					Kind:    RuleAngleOutside,
					Angle:   "bodyLine",
					Range:   Window{Min: 165, Max: 180},
					Message: "Keep your body straight",
					Penalty: 20,
				},
			},
		},
		{
			Exercise:     Deadlift,
			Name:         "Deadlift",
			KeyLandmarks: []int{LeftShoulder, LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle},
			Angles: []AngleSpec{
				{Name: "hipAngle", Joints: [][3]int{leftHip}},
				{Name: "kneeAngle", Joints: [][3]int{leftKnee}},
			},
			PrimaryAngle: "hipAngle",
			Up:           Window{Min: 160, Max: 180},
			Down:         Window{Min: 80, Max: 110},
			Rules: []Rule{
				{
					ID:        "squatting",
					Kind:      RuleAngleBelow,
					Angle:     "kneeAngle",
					Threshold: 90,
					Phase:     PhaseDown,
					Message:   "Hinge at the hips instead of squatting the weight",
					Penalty:   10,
				},
			},
		},
	}

	reg := &Registry{configs: make(map[Exercise]*ExerciseConfig, len(configs))}
	for _, cfg := range configs {
		reg.configs[cfg.Exercise] = cfg
	}
	return reg
}
