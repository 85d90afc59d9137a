package vision

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Intrinsics are the fixed pinhole camera parameters SPEC_FULL.md §9
// declares for the Analysis stage's PnP solve: fx=800, fy=800, cx=320,
// cy=240, zero distortion.
type Intrinsics struct {
	FX, FY, CX, CY float64
}

// DefaultIntrinsics matches the only values ever used in the original
// source, per spec.md §9's Open Questions resolution.
var DefaultIntrinsics = Intrinsics{FX: 800, FY: 800, CX: 320, CY: 240}

// Fixed dimensions of the power-rune target panel the four retained
// keypoints are solved against, matching analysis_thread.rs's
// POWER_RUNE_WIDTH/POWER_RUNE_HEIGHT constants.
const (
	powerRuneWidth  = 32.0
	powerRuneHeight = 10.26
)

// targetPoints3D are the fixed 3-D target points the four retained
// keypoints (index 2 is skipped, per SPEC_FULL.md §4.3) are solved
// against: the corners of the power-rune panel, in the same order as
// analysis_thread.rs's POWER_RUNE_POINTS.
var targetPoints3D = [4][3]float64{
	{powerRuneWidth / 2, -powerRuneHeight / 2, 0},
	{powerRuneWidth / 2, powerRuneHeight / 2, 0},
	{-powerRuneWidth / 2, powerRuneHeight / 2, 0},
	{-powerRuneWidth / 2, -powerRuneHeight / 2, 0},
}

// SolvePnP implements the "external PnP solver (iterative method)" of
// SPEC_FULL.md §4.3 as a Gauss-Newton refinement over a 6-parameter
// (angle-axis rotation + translation) pose, minimizing reprojection
// error against targetPoints3D. imagePoints must have exactly 4 entries,
// one per target point, in matching order.
func SolvePnP(imagePoints [4]Point2D, intr Intrinsics) (rotation [3][3]float64, translation [3]float64, err error) {
	x := mat.NewVecDense(6, []float64{0, 0, 0, 0, 0, 1.0})

	const iterations = 30
	const lambda = 1e-6 // Levenberg damping to keep J^T J well conditioned

	for iter := 0; iter < iterations; iter++ {
		r := residuals(x, imagePoints, intr)
		J := numericJacobian(x, imagePoints, intr)

		var JT, JTJ mat.Dense
		JT.CloneFrom(J.T())
		JTJ.Mul(&JT, J)
		for i := 0; i < 6; i++ {
			JTJ.Set(i, i, JTJ.At(i, i)+lambda)
		}

		var JTr mat.VecDense
		JTr.MulVec(&JT, r)

		var delta mat.VecDense
		if solveErr := delta.SolveVec(&JTJ, &JTr); solveErr != nil {
			return rotation, translation, solveErr
		}

		converged := true
		for i := 0; i < 6; i++ {
			d := delta.AtVec(i)
			x.SetVec(i, x.AtVec(i)-d)
			if math.Abs(d) > 1e-9 {
				converged = false
			}
		}
		if converged {
			break
		}
	}

	rotation = rodrigues(x.AtVec(0), x.AtVec(1), x.AtVec(2))
	translation = [3]float64{x.AtVec(3), x.AtVec(4), x.AtVec(5)}
	return rotation, translation, nil
}

// residuals returns the 8-vector of (observed - projected) for the 4
// point correspondences, x, y interleaved.
func residuals(x *mat.VecDense, imagePoints [4]Point2D, intr Intrinsics) *mat.VecDense {
	r := mat.NewVecDense(8, nil)
	R := rodrigues(x.AtVec(0), x.AtVec(1), x.AtVec(2))
	t := [3]float64{x.AtVec(3), x.AtVec(4), x.AtVec(5)}
	for i, P := range targetPoints3D {
		u, v := project(R, t, P, intr)
		r.SetVec(2*i, float64(imagePoints[i].X)-u)
		r.SetVec(2*i+1, float64(imagePoints[i].Y)-v)
	}
	return r
}

// numericJacobian computes the 8x6 Jacobian of residuals w.r.t. x by
// central differences; avoids hand-deriving the analytic Rodrigues
// Jacobian while keeping the solve itself exact Gauss-Newton.
func numericJacobian(x *mat.VecDense, imagePoints [4]Point2D, intr Intrinsics) *mat.Dense {
	const h = 1e-6
	J := mat.NewDense(8, 6, nil)
	for p := 0; p < 6; p++ {
		xp := cloneVec(x)
		xm := cloneVec(x)
		xp.SetVec(p, xp.AtVec(p)+h)
		xm.SetVec(p, xm.AtVec(p)-h)
		rp := residuals(xp, imagePoints, intr)
		rm := residuals(xm, imagePoints, intr)
		for row := 0; row < 8; row++ {
			J.Set(row, p, (rp.AtVec(row)-rm.AtVec(row))/(2*h))
		}
	}
	return J
}

// cloneVec returns an independent copy of x for finite-difference
// perturbation.
func cloneVec(x *mat.VecDense) *mat.VecDense {
	data := make([]float64, x.Len())
	for i := range data {
		data[i] = x.AtVec(i)
	}
	return mat.NewVecDense(len(data), data)
}

// project applies R, t, then the pinhole intrinsics to a 3-D point.
func project(R [3][3]float64, t [3]float64, P [3]float64, intr Intrinsics) (u, v float64) {
	cx := R[0][0]*P[0] + R[0][1]*P[1] + R[0][2]*P[2] + t[0]
	cy := R[1][0]*P[0] + R[1][1]*P[1] + R[1][2]*P[2] + t[1]
	cz := R[2][0]*P[0] + R[2][1]*P[1] + R[2][2]*P[2] + t[2]
	if cz == 0 {
		cz = 1e-9
	}
	u = intr.FX*(cx/cz) + intr.CX
	v = intr.FY*(cy/cz) + intr.CY
	return u, v
}

// rodrigues converts an angle-axis rotation vector (rx,ry,rz) into a
// rotation matrix via Rodrigues' formula.
func rodrigues(rx, ry, rz float64) [3][3]float64 {
	theta := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if theta < 1e-12 {
		return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	kx, ky, kz := rx/theta, ry/theta, rz/theta
	c, s := math.Cos(theta), math.Sin(theta)
	ic := 1 - c

	return [3][3]float64{
		{c + kx*kx*ic, kx*ky*ic - kz*s, kx*kz*ic + ky*s},
		{ky*kx*ic + kz*s, c + ky*ky*ic, ky*kz*ic - kx*s},
		{kz*kx*ic - ky*s, kz*ky*ic + kx*s, c + kz*kz*ic},
	}
}

// keypointYOffset matches analysis_thread.rs's "(y - 80.0)" adjustment
// applied to every retained image point before the PnP solve.
const keypointYOffset = 80.0

// keypointsForPnP extracts the four image-plane keypoints a Detection
// contributes to the PnP solve, skipping index 2, per SPEC_FULL.md
// §4.3, offsetting y the same way analysis_thread.rs does.
func keypointsForPnP(d Detection) [4]Point2D {
	var pts [4]Point2D
	j := 0
	for i, kp := range d.Keypoints {
		if i == 2 {
			continue
		}
		pts[j] = Point2D{X: kp.X, Y: kp.Y - keypointYOffset}
		j++
	}
	return pts
}
