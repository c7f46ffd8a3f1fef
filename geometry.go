package formcoach

import "math"

// AngleBetween returns the interior angle at b, in degrees within [0, 180],
// between the rays b->a and b->c.
//
// Coincident points are not an error: atan2(0, 0) is 0, so a degenerate ray
// contributes a zero heading and the result is still a finite angle
// (0 when all three points coincide).
func AngleBetween(a, b, c Landmark) float64 {
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(rad * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360.0 - angle
	}
	return angle
}

// Distance is the Euclidean distance between two landmarks in the image plane.
func Distance(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
