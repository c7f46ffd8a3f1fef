package formcoach

// Landmark is one tracked point in normalized image space.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Present reports whether the landmark is confident enough to be used.
func (l Landmark) Present() bool {
	return l.Visibility >= MinLandmarkVisibility
}

// Frame is one upstream pose-estimation result.
type Frame struct {
	TimestampMS int64      `json:"ts_ms"`
	Pose        []Landmark `json:"pose"`
	Hand        []Landmark `json:"hand,omitempty"`
}

// MinLandmarkVisibility is the visibility at which a landmark counts as present.
const MinLandmarkVisibility = 0.5

// Pose landmark indices (MediaPipe BlazePose order).
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	PoseLandmarkCount
)

// Hand landmark indices.
const (
	HandWrist = iota
	HandThumbCMC
	HandThumbMCP
	HandThumbIP
	HandThumbTip
	HandIndexMCP
	HandIndexPIP
	HandIndexDIP
	HandIndexTip
	HandMiddleMCP
	HandMiddlePIP
	HandMiddleDIP
	HandMiddleTip
	HandRingMCP
	HandRingPIP
	HandRingDIP
	HandRingTip
	HandPinkyMCP
	HandPinkyPIP
	HandPinkyDIP
	HandPinkyTip

	HandLandmarkCount
)

var poseLandmarkNames = [PoseLandmarkCount]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer", "left_ear", "right_ear",
	"mouth_left", "mouth_right", "left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow", "left_wrist", "right_wrist",
	"left_pinky", "right_pinky", "left_index", "right_index",
	"left_thumb", "right_thumb", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
	"left_heel", "right_heel", "left_foot_index", "right_foot_index",
}

// LandmarkName returns the snake_case name of a pose landmark index.
func LandmarkName(idx int) string {
	if idx < 0 || idx >= PoseLandmarkCount {
		return "unknown"
	}
	return poseLandmarkNames[idx]
}

// landmarkAt returns the landmark at idx and whether it exists and is present.
func landmarkAt(points []Landmark, idx int) (Landmark, bool) {
	if idx < 0 || idx >= len(points) {
		return Landmark{}, false
	}
	lm := points[idx]
	return lm, lm.Present()
}
