package formcoach

import "math"

// Phase is the classified stage of a rep cycle.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseReady      Phase = "ready"
	PhaseUp         Phase = "up"
	PhaseDown       Phase = "down"
	PhaseTransition Phase = "transition"
	PhaseHold       Phase = "hold"
	PhaseUnknown    Phase = "unknown"
)

// ClassifyPhase maps the exercise's primary angle onto its phase windows.
// The up window wins when the windows overlap.
func ClassifyPhase(angles Angles, cfg *ExerciseConfig) Phase {
	if cfg.Static {
		return PhaseHold
	}
	v, ok := angles[cfg.PrimaryAngle]
	if !ok || math.IsNaN(v) {
		return PhaseUnknown
	}
	switch {
	case cfg.Up.Contains(v):
		return PhaseUp
	case cfg.Down.Contains(v):
		return PhaseDown
	default:
		return PhaseTransition
	}
}
