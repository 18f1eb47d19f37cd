package flip

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/backflip/internal/detector"
)

// minRayLength is the shortest ray treated as having a direction.
const minRayLength = 1e-12

// Angle returns the interior angle at vertex b, in degrees within [0, 180],
// between the rays b->a and b->c. Only the X and Y components are used.
//
// If either ray has zero length the angle is undefined and
// ErrDegenerateGeometry is returned.
func Angle(a, b, c detector.Point2D) (float64, error) {
	vb := r2.Vec{X: b.X, Y: b.Y}
	ba := r2.Sub(r2.Vec{X: a.X, Y: a.Y}, vb)
	bc := r2.Sub(r2.Vec{X: c.X, Y: c.Y}, vb)

	na, nc := r2.Norm(ba), r2.Norm(bc)
	if na < minRayLength || nc < minRayLength {
		return math.NaN(), ErrDegenerateGeometry
	}

	// atan2 of cross and dot stays accurate near 0 and 180 degrees.
	rad := math.Atan2(math.Abs(r2.Cross(ba, bc)), r2.Dot(ba, bc))
	return rad * 180 / math.Pi, nil
}
