package formcoach

import (
	"math"
	"time"
)

// Gesture is a recognized hand signal. The empty gesture means none.
type Gesture string

const (
	GestureNone       Gesture = ""
	GestureThumbsUp   Gesture = "thumbs_up"
	GestureThumbsDown Gesture = "thumbs_down"
)

const (
	thumbOffsetThreshold = 0.08
	closedFingerSpread   = 0.05
)

// Debouncer defaults.
const (
	DefaultGestureConfirmations = 3
	DefaultGestureCooldown      = time.Second
)

func classifyThumb(wrist, thumb, index, pinky Landmark) Gesture {
	if math.Abs(index.Y-pinky.Y) >= closedFingerSpread {
		return GestureNone
	}
	offset := wrist.Y - thumb.Y
	switch {
	case offset > thumbOffsetThreshold:
		return GestureThumbsUp
	case offset < -thumbOffsetThreshold:
		return GestureThumbsDown
	default:
		return GestureNone
	}
}

// DetectHandGesture classifies a 21-point hand skeleton. Hand models do not
// report per-point visibility, so only the point count is checked.
func DetectHandGesture(hand []Landmark) Gesture {
	if len(hand) < HandLandmarkCount {
		return GestureNone
	}
	return classifyThumb(hand[HandWrist], hand[HandThumbTip], hand[HandIndexTip], hand[HandPinkyTip])
}

// DetectPoseGesture classifies the hand points of the body skeleton, using
// whichever wrist is more visible.
func DetectPoseGesture(pose []Landmark) Gesture {
	if len(pose) < PoseLandmarkCount {
		return GestureNone
	}
	sides := [2][4]int{
		{LeftWrist, LeftThumb, LeftIndex, LeftPinky},
		{RightWrist, RightThumb, RightIndex, RightPinky},
	}
	side := sides[0]
	if pose[RightWrist].Visibility > pose[LeftWrist].Visibility {
		side = sides[1]
	}
	for _, idx := range side {
		if !pose[idx].Present() {
			return GestureNone
		}
	}
	return classifyThumb(pose[side[0]], pose[side[1]], pose[side[2]], pose[side[3]])
}

// DetectGesture prefers the dedicated hand skeleton when the frame carries one.
func DetectGesture(f Frame) Gesture {
	if len(f.Hand) >= HandLandmarkCount {
		return DetectHandGesture(f.Hand)
	}
	return DetectPoseGesture(f.Pose)
}

// GestureDebouncer turns per-frame detections into discrete gesture events.
// A gesture fires after it is seen on confirm consecutive observations; the
// count then resets and further input is ignored until cooldown has elapsed.
// It is not safe for concurrent use.
type GestureDebouncer struct {
	confirm   int
	cooldown  time.Duration
	candidate Gesture
	count     int
	lastFired time.Time
	fired     bool
}

// NewGestureDebouncer returns a debouncer. A non-positive confirm or a
// negative cooldown falls back to the default; a zero cooldown disables it.
func NewGestureDebouncer(confirm int, cooldown time.Duration) *GestureDebouncer {
	if confirm <= 0 {
		confirm = DefaultGestureConfirmations
	}
	if cooldown < 0 {
		cooldown = DefaultGestureCooldown
	}
	return &GestureDebouncer{confirm: confirm, cooldown: cooldown}
}

// Observe feeds one detection taken at now and reports a confirmed gesture.
func (d *GestureDebouncer) Observe(g Gesture, now time.Time) (Gesture, bool) {
	if d.fired && now.Sub(d.lastFired) < d.cooldown {
		return GestureNone, false
	}
	if g == GestureNone {
		d.candidate = GestureNone
		d.count = 0
		return GestureNone, false
	}
	if g == d.candidate {
		d.count++
	} else {
		d.candidate = g
		d.count = 1
	}
	if d.count < d.confirm {
		return GestureNone, false
	}
	d.candidate = GestureNone
	d.count = 0
	d.lastFired = now
	d.fired = true
	return g, true
}

// Pending returns the gesture being confirmed and how many times it was seen.
func (d *GestureDebouncer) Pending() (Gesture, int) {
	return d.candidate, d.count
}

// Reset clears the count and the cooldown.
func (d *GestureDebouncer) Reset() {
	d.candidate = GestureNone
	d.count = 0
	d.lastFired = time.Time{}
	d.fired = false
}
