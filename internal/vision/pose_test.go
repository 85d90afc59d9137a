package vision

import (
	"math"
	"testing"
)

func TestSolvePnPRecoversKnownTranslation(t *testing.T) {
	intr := DefaultIntrinsics
	R := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	tTrue := [3]float64{0.01, -0.02, 0.8}

	var imgPts [4]Point2D
	for i, P := range targetPoints3D {
		u, v := project(R, tTrue, P, intr)
		imgPts[i] = Point2D{X: float32(u), Y: float32(v)}
	}

	_, translation, err := SolvePnP(imgPts, intr)
	if err != nil {
		t.Fatalf("SolvePnP: %v", err)
	}

	for i := range tTrue {
		if math.Abs(translation[i]-tTrue[i]) > 1e-3 {
			t.Fatalf("translation[%d] = %v, want ~%v", i, translation[i], tTrue[i])
		}
	}
}

func TestKeypointsForPnPSkipsIndexTwo(t *testing.T) {
	d := Detection{}
	for i := range d.Keypoints {
		d.Keypoints[i] = Point2D{X: float32(i), Y: float32(i)}
	}
	pts := keypointsForPnP(d)
	want := []float32{0, 1, 3, 4}
	for i, p := range pts {
		if p.X != want[i] {
			t.Fatalf("keypointsForPnP[%d].X = %v, want %v (index 2 should be skipped)", i, p.X, want[i])
		}
	}
}
