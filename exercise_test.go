package formcoach

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseExercise(t *testing.T) {
	for _, ex := range AllExercises() {
		got, err := ParseExercise(ex.String())
		if err != nil || got != ex {
			t.Fatalf("ParseExercise(%q) = %v, %v", ex.String(), got, err)
		}
	}
	if got, err := ParseExercise("  BicepCurl "); err != nil || got != BicepCurl {
		t.Fatalf("case-insensitive parse: %v, %v", got, err)
	}
	if _, err := ParseExercise("burpee"); !errors.Is(err, ErrUnknownExercise) {
		t.Fatalf("unknown exercise: got %v", err)
	}
}

func TestExerciseJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Exercise{"exercise": BicepCurl})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"exercise":"bicepCurl"}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var out struct {
		Exercise Exercise `json:"exercise"`
	}
	if err := json.Unmarshal([]byte(`{"exercise":"squatz"}`), &out); !errors.Is(err, ErrUnknownExercise) {
		t.Fatalf("expected unknown exercise error, got %v", err)
	}
}

func TestDefaultRegistryIsValid(t *testing.T) {
	reg := DefaultRegistry()
	if err := reg.Validate(); err != nil {
		t.Fatalf("default registry invalid: %v", err)
	}
	if got := len(reg.Exercises()); got != 6 {
		t.Fatalf("expected 6 exercises, got %d", got)
	}
	for _, ex := range reg.Exercises() {
		cfg, _ := reg.Lookup(ex)
		if len(cfg.KeyLandmarks) == 0 || len(cfg.Rules) == 0 {
			t.Fatalf("%s: incomplete config", ex)
		}
	}
	if _, err := reg.Lookup(ExerciseUnknown); !errors.Is(err, ErrUnknownExercise) {
		t.Fatalf("lookup unknown: %v", err)
	}
}

func TestComputeAnglesAveragesVisibleJoints(t *testing.T) {
	cfg := mustLookup(t, Squat)
	pose := flatPose(map[int]Landmark{
		LeftHip:    {X: 0.4, Y: 0.5, Visibility: 0.9},
		LeftKnee:   {X: 0.5, Y: 0.5, Visibility: 0.9},
		LeftAnkle:  {X: 0.5, Y: 0.7, Visibility: 0.9},
		RightHip:   {X: 0.5, Y: 0.3, Visibility: 0.9},
		RightKnee:  {X: 0.5, Y: 0.5, Visibility: 0.9},
		RightAnkle: {X: 0.5, Y: 0.7, Visibility: 0.9},
	})
	angles := cfg.ComputeAngles(pose)
	if !approx(angles["leftKnee"], 90) || !approx(angles["rightKnee"], 180) || !approx(angles["kneeAngle"], 135) {
		t.Fatalf("angles: %v", angles)
	}

	pose[RightAnkle].Visibility = 0.1
	angles = cfg.ComputeAngles(pose)
	if _, ok := angles["rightKnee"]; ok {
		t.Fatal("hidden joint must leave the angle absent")
	}
	if !approx(angles["kneeAngle"], 90) {
		t.Fatalf("average over visible joints: %v", angles["kneeAngle"])
	}
}

func TestWithOverrides(t *testing.T) {
	base := DefaultRegistry()
	down := Window{Min: 60, Max: 100}
	threshold := 0.08
	reg, err := base.WithOverrides(map[Exercise]ExerciseOverride{
		Squat: {
			Down: &down,
			Rules: map[string]RuleOverride{
				"knee_over_toe": {Threshold: &threshold},
				"back_angle":    {Disabled: true},
			},
		},
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}

	cfg, _ := reg.Lookup(Squat)
	if cfg.Down != down {
		t.Fatalf("down window not applied: %+v", cfg.Down)
	}
	if len(cfg.Rules) != 2 || cfg.Rules[0].Threshold != 0.08 {
		t.Fatalf("rules not applied: %+v", cfg.Rules)
	}

	orig, _ := base.Lookup(Squat)
	if orig.Down.Min != 70 || len(orig.Rules) != 3 || orig.Rules[0].Threshold != 0.05 {
		t.Fatalf("base registry mutated: %+v", orig)
	}
}

func TestWithOverridesRejectsBadInput(t *testing.T) {
	bad := Window{Min: 120, Max: 90}
	target := Window{Min: 150, Max: 180}
	_, err := DefaultRegistry().WithOverrides(map[Exercise]ExerciseOverride{
		Squat:  {Rules: map[string]RuleOverride{"nope": {Disabled: true}}},
		PushUp: {Target: &target},
		Lunge:  {Up: &bad},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown rule", "target window"} {
		if !containsErr(err, want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}

	_, err = DefaultRegistry().WithOverrides(map[Exercise]ExerciseOverride{Lunge: {Up: &bad}})
	if err == nil || !containsErr(err, "exceeds max") {
		t.Fatalf("inverted window: %v", err)
	}
}

func containsErr(err error, sub string) bool {
	return err != nil && strings.Contains(err.Error(), sub)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTargetOverrideUpdatesHoldRule(t *testing.T) {
	target := Window{Min: 150, Max: 180}
	reg, err := DefaultRegistry().WithOverrides(map[Exercise]ExerciseOverride{
		Plank: {Target: &target},
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	cfg, _ := reg.Lookup(Plank)
	if cfg.Target != target || cfg.Rules[0].Range != target {
		t.Fatalf("target %+v rule range %+v", cfg.Target, cfg.Rules[0].Range)
	}

	// An explicit rule range still wins over the target.
	narrow := Window{Min: 170, Max: 180}
	reg, err = DefaultRegistry().WithOverrides(map[Exercise]ExerciseOverride{
		Plank: {Target: &target, Rules: map[string]RuleOverride{"body_line": {Range: &narrow}}},
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	cfg, _ = reg.Lookup(Plank)
	if cfg.Rules[0].Range != narrow {
		t.Fatalf("rule range %+v", cfg.Rules[0].Range)
	}
}
