package pipeline

import (
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// ControlState is the hands-free set state for gesture-controlled runs.
type ControlState string

const (
	ControlPositioning    ControlState = "positioning"
	ControlWaitingGesture ControlState = "waiting_gesture"
	ControlCounting       ControlState = "counting"
	ControlFinished       ControlState = "finished"
)

// controller walks positioning -> waiting_gesture -> counting -> finished.
// Only frames seen while counting are handed to the session.
type controller struct {
	state     ControlState
	keyPoints []int
	debouncer *formcoach.GestureDebouncer
}

func newController(cfg *formcoach.ExerciseConfig, confirm int, cooldown time.Duration) *controller {
	return &controller{
		state:     ControlPositioning,
		keyPoints: cfg.KeyLandmarks,
		debouncer: formcoach.NewGestureDebouncer(confirm, cooldown),
	}
}

// step advances on one frame. It returns the state the frame belongs to, the
// transition it caused (nil when none) and whether the session should see it.
func (c *controller) step(f formcoach.Frame) (ControlState, *ControlEvent, bool) {
	at := c.state
	switch c.state {
	case ControlPositioning:
		if len(f.Pose) < formcoach.PoseLandmarkCount {
			return at, nil, false
		}
		if formcoach.CheckPositioning(f.Pose, c.keyPoints).IsReady {
			return at, c.move(ControlWaitingGesture, "ready"), false
		}
		return at, nil, false

	case ControlWaitingGesture:
		g, ok := c.debouncer.Observe(formcoach.DetectGesture(f), time.UnixMilli(f.TimestampMS))
		if ok && g == formcoach.GestureThumbsUp {
			return at, c.move(ControlCounting, string(g)), false
		}
		return at, nil, false

	case ControlCounting:
		g, ok := c.debouncer.Observe(formcoach.DetectGesture(f), time.UnixMilli(f.TimestampMS))
		if ok && g == formcoach.GestureThumbsDown {
			return at, c.move(ControlFinished, string(g)), false
		}
		return at, nil, true
	}
	return c.state, nil, false
}

func (c *controller) move(to ControlState, trigger string) *ControlEvent {
	ev := &ControlEvent{From: c.state, To: to, Trigger: trigger}
	c.state = to
	return ev
}
