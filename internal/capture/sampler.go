package capture

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// TrackedObject is the per-object state a PoseSource reports each query:
// stable identity, semantic class, pose, kinematics and the axis-aligned
// extents of the object's local bounding volume.
type TrackedObject struct {
	ObjectID       string
	CategoryLabel  string
	Position       r3.Vec
	Quaternion     quat.Number
	LinearVelocity r3.Vec
	LocalExtents   r3.Vec
}

// PoseSource supplies the live scene state on demand. The physics/rendering
// engine implements this in production; the scene package provides a
// deterministic simulator implementation for dataset mode and tests.
//
// Objects may appear and disappear between calls (spawned or destroyed
// bodies); the sampler takes whatever the source reports, so a vanished
// object is simply absent from later frames.
type PoseSource interface {
	Objects() []TrackedObject
	Camera() CameraModel
}

// FrameSampler produces one immutable Frame per Sample call by pulling the
// full object set from its PoseSource and projecting each object's bounding
// volume through the current camera model.
type FrameSampler struct {
	source PoseSource
	clock  func() float64
}

// NewFrameSampler returns a sampler reading from source, timestamping frames
// with wall-clock seconds.
func NewFrameSampler(source PoseSource) *FrameSampler {
	return &FrameSampler{
		source: source,
		clock: func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		},
	}
}

// SetClock replaces the timestamp source, e.g. with simulation time in
// dataset mode. A nil clock is ignored.
func (s *FrameSampler) SetClock(clock func() float64) {
	if clock != nil {
		s.clock = clock
	}
}

// Sample captures the current scene state into a Frame. FrameIndex is left
// zero; the recording session assigns it at append time. Sample never fails:
// objects that project degenerately are kept with Visible=false.
func (s *FrameSampler) Sample() Frame {
	cam := s.source.Camera()
	objects := s.source.Objects()

	annotations := make([]ObjectAnnotation, 0, len(objects))
	for _, obj := range objects {
		corners := BoxCorners(obj.Position, obj.Quaternion, obj.LocalExtents)
		box, visible := ProjectBox(corners[:], cam)

		annotations = append(annotations, ObjectAnnotation{
			ObjectID:       obj.ObjectID,
			CategoryLabel:  obj.CategoryLabel,
			Position:       obj.Position,
			Quaternion:     obj.Quaternion,
			LinearVelocity: obj.LinearVelocity,
			Box:            box,
			Visible:        visible,
		})
	}

	return Frame{
		Timestamp:   s.clock(),
		Camera:      cam,
		Annotations: annotations,
	}
}
