package formcoach

import (
	"math"
	"testing"
)

func pt(x, y float64) Landmark {
	return Landmark{X: x, Y: y, Visibility: 1}
}

func TestAngleBetween(t *testing.T) {
	cases := []struct {
		name    string
		a, b, c Landmark
		want    float64
	}{
		{"right angle", pt(1, 0), pt(0, 0), pt(0, 1), 90},
		{"straight line", pt(0, 0), pt(1, 0), pt(2, 0), 180},
		{"reflex folds back under 180", pt(-1, 0.1), pt(0, 0), pt(-1, -0.1), 2 * math.Atan(0.1) * 180 / math.Pi},
		{"order does not matter", pt(0, 1), pt(0, 0), pt(1, 0), 90},
	}
	for _, tc := range cases {
		got := AngleBetween(tc.a, tc.b, tc.c)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: got %.6f want %.6f", tc.name, got, tc.want)
		}
		if got < 0 || got > 180 {
			t.Fatalf("%s: angle %.3f outside [0, 180]", tc.name, got)
		}
	}
}

func TestAngleBetweenCoincidentPointsIsZero(t *testing.T) {
	p := pt(0.5, 0.5)
	if got := AngleBetween(p, p, p); got != 0 {
		t.Fatalf("all coincident: got %v want 0", got)
	}
	if got := AngleBetween(p, p, pt(1, 0.5)); got != 0 || math.IsNaN(got) {
		t.Fatalf("a equals vertex: got %v want 0", got)
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(pt(0, 0), pt(0.3, 0.4)); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("distance: got %v want 0.5", got)
	}
	if got := Distance(pt(0.2, 0.2), pt(0.2, 0.2)); got != 0 {
		t.Fatalf("distance to self: got %v", got)
	}
}
