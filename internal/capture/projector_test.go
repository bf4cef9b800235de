package capture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// testCamera sits at (0,1,5) with identity orientation, looking along -Z
// over the origin region.
func testCamera() CameraModel {
	return CameraModel{
		FocalLengthPx:  800,
		PrincipalPoint: [2]float64{320, 240},
		ImageWidth:     640,
		ImageHeight:    480,
		Position:       r3.Vec{Y: 1, Z: 5},
		Orientation:    quat.Number{Real: 1},
	}
}

func identityQuat() quat.Number { return quat.Number{Real: 1} }

func TestProjectBoxCenteredObject(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	corners := BoxCorners(r3.Vec{Y: 1}, identityQuat(), r3.Vec{X: 1, Y: 1, Z: 1})

	box, visible := ProjectBox(corners[:], cam)
	require.True(t, visible)

	// An object dead ahead at depth 5 projects symmetrically around the
	// principal point.
	centerX := box.XMinPx + box.WidthPx/2
	centerY := box.YMinPx + box.HeightPx/2
	assert.InDelta(t, 320, centerX, 1e-6)
	assert.InDelta(t, 240, centerY, 1e-6)

	// A 1m cube spanning depths 4.5..5.5 projects its near face largest:
	// half-extent 0.5m at depth 4.5 is 0.5/4.5*800 ≈ 88.9px.
	assert.InDelta(t, 2*0.5/4.5*800, box.WidthPx, 1e-6)

	// Strictly inside the image.
	assert.Greater(t, box.XMinPx, 0.0)
	assert.Greater(t, box.YMinPx, 0.0)
	assert.Less(t, box.XMinPx+box.WidthPx, float64(cam.ImageWidth))
	assert.Less(t, box.YMinPx+box.HeightPx, float64(cam.ImageHeight))
}

func TestProjectBoxNormalizedBounds(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	positions := []r3.Vec{
		{Y: 1},               // centered
		{X: 1.5, Y: 1},       // off to the right
		{X: -4, Y: 1, Z: -2}, // partially outside the left edge
		{Y: 4.5, Z: -1},      // partially above
	}
	for _, pos := range positions {
		corners := BoxCorners(pos, identityQuat(), r3.Vec{X: 1, Y: 1, Z: 1})
		box, visible := ProjectBox(corners[:], cam)
		if !visible {
			continue
		}
		assert.GreaterOrEqual(t, box.XMinNorm, 0.0)
		assert.GreaterOrEqual(t, box.YMinNorm, 0.0)
		assert.LessOrEqual(t, box.XMinNorm+box.WidthNorm, 1.0+1e-12)
		assert.LessOrEqual(t, box.YMinNorm+box.HeightNorm, 1.0+1e-12)
		assert.GreaterOrEqual(t, box.WidthPx, 0.0)
		assert.GreaterOrEqual(t, box.HeightPx, 0.0)
	}
}

func TestProjectBoxBehindCamera(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	// Far behind the camera (+Z side).
	corners := BoxCorners(r3.Vec{Y: 1, Z: 50}, identityQuat(), r3.Vec{X: 1, Y: 1, Z: 1})

	_, visible := ProjectBox(corners[:], cam)
	assert.False(t, visible)
}

func TestProjectBoxStraddlingNearPlane(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	// Box spans depths -0.4..0.6: corners behind the camera are skipped and
	// the rest still produce a usable (clipped) box.
	corners := BoxCorners(r3.Vec{Y: 1, Z: 4.9}, identityQuat(), r3.Vec{X: 1, Y: 1, Z: 1})

	box, visible := ProjectBox(corners[:], cam)
	require.True(t, visible)
	assert.GreaterOrEqual(t, box.XMinPx, 0.0)
	assert.LessOrEqual(t, box.XMinPx+box.WidthPx, float64(cam.ImageWidth))
}

func TestProjectBoxDegenerate(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	// Sub-millimetre object: projects to well under one pixel.
	corners := BoxCorners(r3.Vec{Y: 1}, identityQuat(), r3.Vec{X: 1e-4, Y: 1e-4, Z: 1e-4})

	_, visible := ProjectBox(corners[:], cam)
	assert.False(t, visible)
}

func TestProjectBoxFullyOffscreen(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	// In front of the camera but far outside the frustum to the right: the
	// clipped box collapses to zero width.
	corners := BoxCorners(r3.Vec{X: 100, Y: 1}, identityQuat(), r3.Vec{X: 1, Y: 1, Z: 1})

	_, visible := ProjectBox(corners[:], cam)
	assert.False(t, visible)
}

func TestBoxCornersRotation(t *testing.T) {
	t.Parallel()

	// 90° yaw about +Y swaps the X and Z extents.
	angle := math.Pi / 2
	q := quat.Number{Real: math.Cos(angle / 2), Jmag: math.Sin(angle / 2)}
	corners := BoxCorners(r3.Vec{}, q, r3.Vec{X: 2, Y: 1, Z: 4})

	minX, maxX := math.MaxFloat64, -math.MaxFloat64
	minZ, maxZ := math.MaxFloat64, -math.MaxFloat64
	for _, c := range corners {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minZ, maxZ = math.Min(minZ, c.Z), math.Max(maxZ, c.Z)
	}
	assert.InDelta(t, 4, maxX-minX, 1e-9)
	assert.InDelta(t, 2, maxZ-minZ, 1e-9)
}
