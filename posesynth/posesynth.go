// Package posesynth builds deterministic landmark frames with known joint
// angles. The skeleton is a side view facing +x in image coordinates (y grows
// downward). Push-ups and planks are rendered upright: the engine scores joint
// angles and framing only, so body orientation does not matter.
package posesynth

import (
	"math"
	"time"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

const (
	shinLength     = 0.2
	thighLength    = 0.2
	torsoLength    = 0.25
	upperArmLength = 0.15
	forearmLength  = 0.15
	sideOffsetX    = 0.02
)

// Pose holds the target joint angles in degrees. Zero values mean "straight"
// (180) except BackKneeAngle, which defaults to KneeAngle.
type Pose struct {
	KneeAngle     float64
	BackKneeAngle float64
	HipAngle      float64
	ElbowAngle    float64
	// KneeForward moves both knees forward of the toes by this many units.
	KneeForward float64
	// ElbowDrift moves both elbows forward of the shoulders by this many units.
	ElbowDrift float64
	Visibility float64
}

// Standing is an upright pose with straight joints.
func Standing() Pose {
	return Pose{KneeAngle: 180, HipAngle: 180, ElbowAngle: 180, Visibility: 0.9}
}

func (p Pose) withDefaults() Pose {
	if p.KneeAngle == 0 {
		p.KneeAngle = 180
	}
	if p.BackKneeAngle == 0 {
		p.BackKneeAngle = p.KneeAngle
	}
	if p.HipAngle == 0 {
		p.HipAngle = 180
	}
	if p.ElbowAngle == 0 {
		p.ElbowAngle = 180
	}
	if p.Visibility == 0 {
		p.Visibility = 0.9
	}
	return p
}

type vec struct{ x, y float64 }

func (v vec) add(o vec) vec       { return vec{v.x + o.x, v.y + o.y} }
func (v vec) sub(o vec) vec       { return vec{v.x - o.x, v.y - o.y} }
func (v vec) scale(k float64) vec { return vec{v.x * k, v.y * k} }
func (v vec) unit() vec           { return v.scale(1 / math.Hypot(v.x, v.y)) }

func rotate(v vec, deg float64) vec {
	s, c := math.Sincos(deg * math.Pi / 180)
	return vec{v.x*c - v.y*s, v.x*s + v.y*c}
}

type side struct {
	shoulder, elbow, wrist, hip, knee, ankle, heel, toe vec
}

func buildSide(knee vec, kneeAngle, hipAngle, elbowAngle, kneeForward, elbowDrift float64) side {
	var s side
	s.knee = knee.add(vec{kneeForward, 0})
	s.ankle = knee.add(vec{0, shinLength})
	s.heel = s.ankle.add(vec{-0.02, 0.02})
	s.toe = s.ankle.add(vec{0.02, 0.02})

	// Rebuild the shin from the displaced knee so the knee angle stays exact.
	shin := s.ankle.sub(s.knee).unit()
	s.hip = s.knee.add(rotate(shin, kneeAngle).scale(thighLength))

	thigh := s.knee.sub(s.hip).unit()
	s.shoulder = s.hip.add(rotate(thigh, -hipAngle).scale(torsoLength))

	torso := s.hip.sub(s.shoulder).unit()
	s.elbow = s.shoulder.add(torso.scale(upperArmLength)).add(vec{elbowDrift, 0})
	upper := s.shoulder.sub(s.elbow).unit()
	s.wrist = s.elbow.add(rotate(upper, elbowAngle).scale(forearmLength))
	return s
}

// Build renders the pose as 33 landmarks.
func Build(p Pose) []formcoach.Landmark {
	p = p.withDefaults()
	left := buildSide(vec{0.5, 0.65}, p.KneeAngle, p.HipAngle, p.ElbowAngle, p.KneeForward, p.ElbowDrift)
	right := buildSide(vec{0.5 + sideOffsetX, 0.65}, p.BackKneeAngle, p.HipAngle, p.ElbowAngle, p.KneeForward, p.ElbowDrift)

	out := make([]formcoach.Landmark, formcoach.PoseLandmarkCount)
	set := func(idx int, v vec) {
		out[idx] = formcoach.Landmark{X: v.x, Y: v.y, Visibility: p.Visibility}
	}

	head := left.shoulder.add(vec{0.03, -0.1})
	for idx := formcoach.Nose; idx <= formcoach.MouthRight; idx++ {
		set(idx, head.add(vec{float64(idx%3) * 0.005, float64(idx%2) * 0.005}))
	}

	for _, pair := range []struct {
		s    side
		idxs [10]int
	}{
		{left, [10]int{formcoach.LeftShoulder, formcoach.LeftElbow, formcoach.LeftWrist, formcoach.LeftHip, formcoach.LeftKnee, formcoach.LeftAnkle, formcoach.LeftHeel, formcoach.LeftFootIndex, formcoach.LeftIndex, formcoach.LeftPinky}},
		{right, [10]int{formcoach.RightShoulder, formcoach.RightElbow, formcoach.RightWrist, formcoach.RightHip, formcoach.RightKnee, formcoach.RightAnkle, formcoach.RightHeel, formcoach.RightFootIndex, formcoach.RightIndex, formcoach.RightPinky}},
	} {
		s := pair.s
		set(pair.idxs[0], s.shoulder)
		set(pair.idxs[1], s.elbow)
		set(pair.idxs[2], s.wrist)
		set(pair.idxs[3], s.hip)
		set(pair.idxs[4], s.knee)
		set(pair.idxs[5], s.ankle)
		set(pair.idxs[6], s.heel)
		set(pair.idxs[7], s.toe)
		// Open hand: index and pinky spread apart so no thumb gesture is read.
		set(pair.idxs[8], s.wrist.add(vec{0.02, -0.04}))
		set(pair.idxs[9], s.wrist.add(vec{0.02, 0.04}))
	}
	set(formcoach.LeftThumb, left.wrist.add(vec{0.01, 0}))
	set(formcoach.RightThumb, right.wrist.add(vec{0.01, 0}))
	return out
}

// Frame wraps the pose into a frame at ts.
func Frame(p Pose, tsMS int64) formcoach.Frame {
	return formcoach.Frame{TimestampMS: tsMS, Pose: Build(p)}
}

// Hand renders a 21-point hand skeleton showing g.
func Hand(g formcoach.Gesture) []formcoach.Landmark {
	wrist := vec{0.7, 0.5}
	thumb := wrist.add(vec{-0.03, 0})
	index := wrist.add(vec{0.02, -0.02})
	pinky := wrist.add(vec{0.02, 0})
	switch g {
	case formcoach.GestureThumbsUp:
		thumb = wrist.add(vec{-0.01, -0.1})
	case formcoach.GestureThumbsDown:
		thumb = wrist.add(vec{-0.01, 0.1})
	default:
		index = wrist.add(vec{0.02, -0.1})
	}

	out := make([]formcoach.Landmark, formcoach.HandLandmarkCount)
	for i := range out {
		// Fill intermediate joints between the wrist and the fingertip of
		// their finger so the skeleton is plausible.
		finger := (i - 1) / 4
		tip := index
		switch finger {
		case 0:
			tip = thumb
		case 4:
			tip = pinky
		}
		k := float64((i-1)%4+1) / 4
		p := wrist.add(tip.sub(wrist).scale(k))
		out[i] = formcoach.Landmark{X: p.x, Y: p.y, Visibility: 1}
	}
	out[formcoach.HandWrist] = formcoach.Landmark{X: wrist.x, Y: wrist.y, Visibility: 1}
	out[formcoach.HandThumbTip] = formcoach.Landmark{X: thumb.x, Y: thumb.y, Visibility: 1}
	out[formcoach.HandIndexTip] = formcoach.Landmark{X: index.x, Y: index.y, Visibility: 1}
	out[formcoach.HandPinkyTip] = formcoach.Landmark{X: pinky.x, Y: pinky.y, Visibility: 1}
	return out
}

// GestureFrame is a standing pose with a hand showing g.
func GestureFrame(g formcoach.Gesture, tsMS int64) formcoach.Frame {
	f := Frame(Standing(), tsMS)
	f.Hand = Hand(g)
	return f
}

// PoseFor returns a pose whose primary angle for ex is angle. Static
// exercises ignore angle and return a straight body.
func PoseFor(ex formcoach.Exercise, angle float64) Pose {
	p := Standing()
	switch ex {
	case formcoach.Squat, formcoach.Lunge:
		p.KneeAngle = angle
		p.BackKneeAngle = angle
		if angle < 160 {
			// Lean the torso forward a little the way a real squat does.
			p.HipAngle = math.Max(angle-10, 60)
		}
	case formcoach.PushUp, formcoach.BicepCurl:
		p.ElbowAngle = angle
	case formcoach.Deadlift:
		p.HipAngle = angle
		if angle < 160 {
			p.KneeAngle = 150
		}
	}
	return p
}

// SetOptions shapes a synthetic set.
type SetOptions struct {
	Reps         int
	FramesPerRep int
	StartMS      int64
	Interval     time.Duration
}

// Set renders a clean set of ex using the registry's phase windows. Each rep
// is half a cycle in the up window, one transition frame on the way down and
// the rest in the down window; the set ends with one up frame so the last rep
// completes. Static exercises render Reps*FramesPerRep hold frames.
func Set(reg *formcoach.Registry, ex formcoach.Exercise, opts SetOptions) ([]formcoach.Frame, error) {
	if reg == nil {
		reg = formcoach.DefaultRegistry()
	}
	cfg, err := reg.Lookup(ex)
	if err != nil {
		return nil, err
	}
	if opts.FramesPerRep < 3 {
		opts.FramesPerRep = 3
	}
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Millisecond
	}
	step := opts.Interval.Milliseconds()

	frames := make([]formcoach.Frame, 0, opts.Reps*opts.FramesPerRep+1)
	ts := opts.StartMS
	emit := func(p Pose) {
		frames = append(frames, Frame(p, ts))
		ts += step
	}

	if cfg.Static {
		for i := 0; i < opts.Reps*opts.FramesPerRep; i++ {
			emit(Standing())
		}
		return frames, nil
	}

	up := mid(cfg.Up)
	down := mid(cfg.Down)
	transition := (up + down) / 2
	upFrames := opts.FramesPerRep / 2
	for r := 0; r < opts.Reps; r++ {
		for i := 0; i < upFrames; i++ {
			emit(PoseFor(ex, up))
		}
		emit(PoseFor(ex, transition))
		for i := upFrames + 1; i < opts.FramesPerRep; i++ {
			emit(PoseFor(ex, down))
		}
	}
	if opts.Reps > 0 {
		emit(PoseFor(ex, up))
	}
	return frames, nil
}

func mid(w formcoach.Window) float64 {
	return (w.Min + w.Max) / 2
}

// ControlledSet wraps Set in the hands-free flow: a ready frame, a confirmed
// thumbs up, the set, then a confirmed thumbs down once the gesture cooldown
// has passed.
func ControlledSet(reg *formcoach.Registry, ex formcoach.Exercise, opts SetOptions) ([]formcoach.Frame, error) {
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Millisecond
	}
	step := opts.Interval.Milliseconds()
	ts := opts.StartMS

	frames := []formcoach.Frame{Frame(Standing(), ts)}
	var lastUp int64
	for i := 0; i < formcoach.DefaultGestureConfirmations; i++ {
		ts += step
		lastUp = ts
		frames = append(frames, GestureFrame(formcoach.GestureThumbsUp, ts))
	}

	opts.StartMS = ts + step
	set, err := Set(reg, ex, opts)
	if err != nil {
		return nil, err
	}
	frames = append(frames, set...)
	if len(set) > 0 {
		ts = set[len(set)-1].TimestampMS
	}

	ts += step
	if earliest := lastUp + formcoach.DefaultGestureCooldown.Milliseconds(); ts < earliest {
		ts = earliest
	}
	for i := 0; i < formcoach.DefaultGestureConfirmations; i++ {
		frames = append(frames, GestureFrame(formcoach.GestureThumbsDown, ts))
		ts += step
	}
	return frames, nil
}
