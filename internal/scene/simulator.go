package scene

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gretchenboria/snaplock/internal/capture"
)

const (
	gravityY = -9.81
	// groundDamping bleeds a little horizontal speed on each bounce so
	// scenes settle instead of sliding forever.
	groundDamping = 0.98
	// restSpeedThreshold is the vertical speed below which a bouncing body
	// is considered at rest on the ground.
	restSpeedThreshold = 0.05
)

type simBody struct {
	object      capture.TrackedObject
	angularVel  r3.Vec // rad/s, world frame
	restitution float64
	isStatic    bool
	atRest      bool
}

// Simulator steps a scene's rigid bodies with ballistic gravity, a ground
// plane at y=0 and a fixed-axis spin per object. It is deterministic: the
// same spec and step sequence always produce the same poses. Simulator
// implements capture.PoseSource.
type Simulator struct {
	mu     sync.Mutex
	name   string
	bodies []simBody
	camera capture.CameraModel
	timeS  float64
}

// NewSimulator builds a simulator from a validated scene spec.
func NewSimulator(spec *Spec) (*Simulator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	sim := &Simulator{
		name:   spec.Name,
		camera: spec.Camera.CameraModel(),
		bodies: make([]simBody, 0, len(spec.Objects)),
	}
	for _, obj := range spec.Objects {
		sim.bodies = append(sim.bodies, simBody{
			object: capture.TrackedObject{
				ObjectID:       obj.ID,
				CategoryLabel:  obj.Category,
				Position:       r3.Vec{X: obj.Position[0], Y: obj.Position[1], Z: obj.Position[2]},
				Quaternion:     quat.Number{Real: 1},
				LinearVelocity: r3.Vec{X: obj.InitialVelocity[0], Y: obj.InitialVelocity[1], Z: obj.InitialVelocity[2]},
				LocalExtents:   r3.Vec{X: obj.Extents[0], Y: obj.Extents[1], Z: obj.Extents[2]},
			},
			angularVel: r3.Vec{
				X: obj.AngularVelocityDeg[0] * math.Pi / 180,
				Y: obj.AngularVelocityDeg[1] * math.Pi / 180,
				Z: obj.AngularVelocityDeg[2] * math.Pi / 180,
			},
			restitution: obj.Restitution,
			isStatic:    obj.Static,
		})
	}
	return sim, nil
}

// Name returns the scene name.
func (s *Simulator) Name() string { return s.name }

// Time returns the accumulated simulation time in seconds, suitable as a
// frame sampler clock.
func (s *Simulator) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeS
}

// Step advances the simulation by dt seconds.
func (s *Simulator) Step(dt float64) {
	if dt <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeS += dt
	for i := range s.bodies {
		b := &s.bodies[i]

		// Static bodies hold position but may still spin in place.
		if !b.isStatic && !b.atRest {
			b.object.LinearVelocity.Y += gravityY * dt
			b.object.Position = r3.Add(b.object.Position, r3.Scale(dt, b.object.LinearVelocity))

			// Ground plane at y=0: bounce when the box bottom penetrates.
			halfHeight := b.object.LocalExtents.Y / 2
			if b.object.Position.Y < halfHeight && b.object.LinearVelocity.Y < 0 {
				b.object.Position.Y = halfHeight
				vy := -b.object.LinearVelocity.Y * b.restitution
				if vy < restSpeedThreshold {
					vy = 0
					b.atRest = true
					b.object.LinearVelocity = r3.Vec{}
				} else {
					b.object.LinearVelocity.Y = vy
					b.object.LinearVelocity.X *= groundDamping
					b.object.LinearVelocity.Z *= groundDamping
				}
			}
		}

		b.object.Quaternion = integrateOrientation(b.object.Quaternion, b.angularVel, dt)
	}
}

// integrateOrientation advances q by the world-frame angular velocity w over
// dt and renormalizes: dq/dt = 0.5 * w ⊗ q.
func integrateOrientation(q quat.Number, w r3.Vec, dt float64) quat.Number {
	if w.X == 0 && w.Y == 0 && w.Z == 0 {
		return q
	}
	wq := quat.Number{Imag: w.X, Jmag: w.Y, Kmag: w.Z}
	dq := quat.Scale(0.5*dt, quat.Mul(wq, q))
	q = quat.Add(q, dq)
	return quat.Scale(1/quat.Abs(q), q)
}

// Objects implements capture.PoseSource, returning a copy of the current
// body states.
func (s *Simulator) Objects() []capture.TrackedObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]capture.TrackedObject, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = b.object
	}
	return out
}

// Camera implements capture.PoseSource.
func (s *Simulator) Camera() capture.CameraModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}
