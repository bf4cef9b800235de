package capture

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// nearPlaneEpsilon is the minimum camera-space depth (metres along the
	// viewing axis) for a corner to participate in projection. Corners at or
	// behind this depth are culled.
	nearPlaneEpsilon = 1e-4

	// minBoxPixels is the smallest clipped box edge considered non-degenerate.
	// Zero-area boxes break downstream trainers, so anything under one pixel
	// is treated as invisible.
	minBoxPixels = 1.0
)

// RotateVec rotates v by the unit quaternion q.
func RotateVec(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// BoxCorners returns the eight world-space corners of an object's bounding
// volume given its centre position, orientation and full local extents
// (axis-aligned edge lengths in the object's local frame).
func BoxCorners(position r3.Vec, orientation quat.Number, extents r3.Vec) [8]r3.Vec {
	hx, hy, hz := extents.X/2, extents.Y/2, extents.Z/2

	var corners [8]r3.Vec
	i := 0
	for _, sx := range []float64{-hx, hx} {
		for _, sy := range []float64{-hy, hy} {
			for _, sz := range []float64{-hz, hz} {
				local := r3.Vec{X: sx, Y: sy, Z: sz}
				corners[i] = r3.Add(position, RotateVec(orientation, local))
				i++
			}
		}
	}
	return corners
}

// ProjectBox maps a set of world-space corner points through the camera model
// to an axis-aligned 2D bounding box, clipped to the image and normalized by
// image dimensions. The second return value is false when the projection is
// unusable: every corner behind the near plane, or the clipped box degenerate.
//
// All math is double precision. Corners behind the near plane are simply
// skipped; the box is the min/max of the surviving projections.
func ProjectBox(corners []r3.Vec, cam CameraModel) (BoundingBox2D, bool) {
	w := float64(cam.ImageWidth)
	h := float64(cam.ImageHeight)
	if w <= 0 || h <= 0 {
		return BoundingBox2D{}, false
	}

	cx := cam.PrincipalPoint[0]
	cy := cam.PrincipalPoint[1]
	invOrient := quat.Conj(cam.Orientation)

	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	inFront := 0

	for _, c := range corners {
		vc := RotateVec(invOrient, r3.Sub(c, cam.Position))

		// Camera looks along -Z, so depth is the negated Z component.
		depth := -vc.Z
		if depth <= nearPlaneEpsilon {
			continue
		}
		inFront++

		u := cx + cam.FocalLengthPx*(vc.X/depth)
		v := cy - cam.FocalLengthPx*(vc.Y/depth) // image Y grows downward

		minX = math.Min(minX, u)
		maxX = math.Max(maxX, u)
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}

	if inFront == 0 {
		return BoundingBox2D{}, false
	}

	// Clip to the image rectangle.
	minX = clamp(minX, 0, w)
	maxX = clamp(maxX, 0, w)
	minY = clamp(minY, 0, h)
	maxY = clamp(maxY, 0, h)

	boxW := maxX - minX
	boxH := maxY - minY
	if boxW < minBoxPixels || boxH < minBoxPixels {
		return BoundingBox2D{}, false
	}

	return BoundingBox2D{
		XMinPx:     minX,
		YMinPx:     minY,
		WidthPx:    boxW,
		HeightPx:   boxH,
		XMinNorm:   minX / w,
		YMinNorm:   minY / h,
		WidthNorm:  boxW / w,
		HeightNorm: boxH / h,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
