package formcoach

import "math"

// RequiredLandmarks is the subset every frame must show before analysis runs.
var RequiredLandmarks = []int{LeftShoulder, RightShoulder, LeftHip, RightHip, LeftKnee, RightKnee}

const (
	readyVisibility  = 0.8
	readyConfidence  = 0.6
	frameMinX        = 0.1
	frameMaxX        = 0.9
	torsoSpanTooFar  = 0.2
	torsoSpanTooNear = 0.6
)

const (
	TipFullBody  = "Make sure your full body is visible"
	TipCenter    = "Move to the center of the frame"
	TipMoveClose = "Move closer to the camera"
	TipMoveBack  = "Move back from the camera"
)

// PositioningResult describes whether the user is framed well enough to analyze.
type PositioningResult struct {
	IsReady    bool     `json:"is_ready"`
	Visibility float64  `json:"visibility"`
	Confidence float64  `json:"confidence"`
	Framed     bool     `json:"framed"`
	TorsoSpan  float64  `json:"torso_span"`
	Tips       []string `json:"tips"`
}

// CheckPositioning scores the required landmark subset and the framing of
// the pose. keyLandmarks are the exercise-specific points that must also be
// visible; a hidden one only adds a tip. Distance from the camera is advisory
// and never affects IsReady.
func CheckPositioning(pose []Landmark, keyLandmarks []int) PositioningResult {
	res := PositioningResult{Tips: []string{}}
	addTip := func(tip string) {
		for _, t := range res.Tips {
			if t == tip {
				return
			}
		}
		res.Tips = append(res.Tips, tip)
	}

	var present int
	var confSum float64
	for _, idx := range RequiredLandmarks {
		lm, ok := landmarkAt(pose, idx)
		if !ok {
			continue
		}
		present++
		confSum += lm.Visibility
	}
	res.Visibility = float64(present) / float64(len(RequiredLandmarks))
	if present > 0 {
		res.Confidence = confSum / float64(present)
	}
	if present < len(RequiredLandmarks) {
		addTip(TipFullBody)
	}
	for _, idx := range keyLandmarks {
		if _, ok := landmarkAt(pose, idx); !ok {
			addTip(TipFullBody)
			break
		}
	}

	shoulders := 0
	res.Framed = true
	for _, idx := range []int{LeftShoulder, RightShoulder} {
		lm, ok := landmarkAt(pose, idx)
		if !ok {
			continue
		}
		shoulders++
		if lm.X < frameMinX || lm.X > frameMaxX {
			res.Framed = false
		}
	}
	if shoulders == 0 {
		res.Framed = false
	}
	if !res.Framed {
		addTip(TipCenter)
	}

	if span, ok := torsoSpan(pose); ok {
		res.TorsoSpan = span
		switch {
		case span < torsoSpanTooFar:
			addTip(TipMoveClose)
		case span > torsoSpanTooNear:
			addTip(TipMoveBack)
		}
	}

	res.IsReady = res.Visibility >= readyVisibility && res.Framed && res.Confidence > readyConfidence
	return res
}

// torsoSpan is the vertical shoulder-to-hip distance on the first side with
// both points visible.
func torsoSpan(pose []Landmark) (float64, bool) {
	for _, side := range [][2]int{{LeftShoulder, LeftHip}, {RightShoulder, RightHip}} {
		s, okS := landmarkAt(pose, side[0])
		h, okH := landmarkAt(pose, side[1])
		if okS && okH {
			return math.Abs(h.Y - s.Y), true
		}
	}
	return 0, false
}
