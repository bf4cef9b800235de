// Package capture implements the ground-truth capture pipeline: sampling
// per-object pose and kinematic state from a live scene, projecting 3D
// extents into 2D image-space bounding boxes, and accumulating the results
// into an ordered, immutable frame buffer that the export package consumes.
package capture

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CameraModel holds the intrinsic and extrinsic camera parameters valid at
// one capture instant. The camera is right-handed and looks along its local
// -Z axis (the renderer's convention); +X is image right, +Y is up.
type CameraModel struct {
	// Intrinsics
	FocalLengthPx  float64 // focal length in pixels (square pixels assumed)
	PrincipalPoint [2]float64
	ImageWidth     int
	ImageHeight    int

	// Extrinsics
	Position    r3.Vec
	Orientation quat.Number // unit quaternion, camera-local to world
}

// BoundingBox2D is an axis-aligned image-space box in both pixel and
// normalized coordinates. Normalized values divide by image width/height and
// lie in [0,1] whenever the owning annotation is visible.
type BoundingBox2D struct {
	XMinPx   float64
	YMinPx   float64
	WidthPx  float64
	HeightPx float64

	XMinNorm   float64
	YMinNorm   float64
	WidthNorm  float64
	HeightNorm float64
}

// CenterNorm returns the normalized box center, the representation YOLO
// label files use.
func (b BoundingBox2D) CenterNorm() (cx, cy float64) {
	return b.XMinNorm + b.WidthNorm/2, b.YMinNorm + b.HeightNorm/2
}

// ObjectAnnotation is one object's ground truth within a Frame: 3D pose and
// kinematics plus the projected 2D box. Visible is false when the box falls
// entirely behind the near plane or clips to a degenerate area; the pose
// fields remain valid either way so pose-only consumers can still use the row.
type ObjectAnnotation struct {
	ObjectID       string
	CategoryLabel  string
	Position       r3.Vec
	Quaternion     quat.Number
	LinearVelocity r3.Vec
	Box            BoundingBox2D
	Visible        bool
}

// Speed returns the magnitude of the linear velocity in m/s.
func (a ObjectAnnotation) Speed() float64 {
	return r3.Norm(a.LinearVelocity)
}

// Frame is one timestamped snapshot of every tracked object's ground-truth
// state. Frames are value types; once appended to a session buffer they are
// never mutated.
type Frame struct {
	FrameIndex  int
	Timestamp   float64 // seconds, simulation or wall clock
	Camera      CameraModel
	Annotations []ObjectAnnotation
}

// VisibleCount returns the number of annotations with a usable 2D box.
func (f Frame) VisibleCount() int {
	n := 0
	for _, a := range f.Annotations {
		if a.Visible {
			n++
		}
	}
	return n
}
