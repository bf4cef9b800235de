// Package scene provides procedural scene descriptions and a deterministic
// kinematic simulator that implements capture.PoseSource. In production the
// live physics engine is the pose source; the simulator stands in for it in
// dataset mode, dev mode and tests.
package scene

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gretchenboria/snaplock/internal/capture"
)

// maxSceneFileSize bounds scene file reads to keep a bad path from loading
// something huge.
const maxSceneFileSize = 1 * 1024 * 1024

// CameraSpec describes the scene camera. Orientation is derived from
// LookAt with +Y up; the camera views along its local -Z.
type CameraSpec struct {
	FocalLengthPx float64    `yaml:"focal_length_px"`
	ImageWidth    int        `yaml:"image_width"`
	ImageHeight   int        `yaml:"image_height"`
	Position      [3]float64 `yaml:"position"`
	LookAt        [3]float64 `yaml:"look_at"`
}

// ObjectSpec describes one rigid body in the scene.
type ObjectSpec struct {
	ID              string     `yaml:"id"`
	Category        string     `yaml:"category"`
	Position        [3]float64 `yaml:"position"`
	Extents         [3]float64 `yaml:"extents"` // full edge lengths, metres
	InitialVelocity [3]float64 `yaml:"initial_velocity,omitempty"`
	// AngularVelocityDeg is the spin rate around each world axis in deg/s.
	AngularVelocityDeg [3]float64 `yaml:"angular_velocity_deg,omitempty"`
	// Restitution is the ground-bounce energy retention in [0,1].
	Restitution float64 `yaml:"restitution,omitempty"`
	// Static bodies ignore gravity and hold their position; they may still
	// spin in place.
	Static bool `yaml:"static,omitempty"`
}

// Spec is a complete scene description, loadable from YAML. This is the
// object graph the generation service produces; the presets in this package
// provide built-in equivalents so dataset mode works offline.
type Spec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Camera      CameraSpec   `yaml:"camera"`
	Objects     []ObjectSpec `yaml:"objects"`
}

// Validate checks the spec for values the simulator and projector cannot
// work with.
func (s *Spec) Validate() error {
	if s.Camera.FocalLengthPx <= 0 {
		return fmt.Errorf("scene %q: focal length must be positive, got %v", s.Name, s.Camera.FocalLengthPx)
	}
	if s.Camera.ImageWidth <= 0 || s.Camera.ImageHeight <= 0 {
		return fmt.Errorf("scene %q: image dimensions must be positive, got %dx%d",
			s.Name, s.Camera.ImageWidth, s.Camera.ImageHeight)
	}
	seen := make(map[string]struct{}, len(s.Objects))
	for _, obj := range s.Objects {
		if obj.ID == "" {
			return fmt.Errorf("scene %q: object with empty id", s.Name)
		}
		if _, dup := seen[obj.ID]; dup {
			return fmt.Errorf("scene %q: duplicate object id %q", s.Name, obj.ID)
		}
		seen[obj.ID] = struct{}{}
		if obj.Category == "" {
			return fmt.Errorf("scene %q: object %q has no category", s.Name, obj.ID)
		}
		for _, e := range obj.Extents {
			if e <= 0 {
				return fmt.Errorf("scene %q: object %q has non-positive extent", s.Name, obj.ID)
			}
		}
		if obj.Restitution < 0 || obj.Restitution > 1 {
			return fmt.Errorf("scene %q: object %q restitution %v outside [0,1]", s.Name, obj.ID, obj.Restitution)
		}
	}
	return nil
}

// Parse decodes a YAML scene description and validates it.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse scene yaml: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Load reads and parses a scene description file. Only .yaml/.yml files
// under 1MB are accepted.
func Load(path string) (*Spec, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("scene file must have .yaml or .yml extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat scene file: %w", err)
	}
	if info.Size() > maxSceneFileSize {
		return nil, fmt.Errorf("scene file too large: %d bytes (max %d)", info.Size(), maxSceneFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	return Parse(data)
}

// CameraModel converts the camera spec into the capture package's model,
// centring the principal point and orienting the camera toward LookAt.
func (c CameraSpec) CameraModel() capture.CameraModel {
	pos := r3.Vec{X: c.Position[0], Y: c.Position[1], Z: c.Position[2]}
	target := r3.Vec{X: c.LookAt[0], Y: c.LookAt[1], Z: c.LookAt[2]}
	return capture.CameraModel{
		FocalLengthPx:  c.FocalLengthPx,
		PrincipalPoint: [2]float64{float64(c.ImageWidth) / 2, float64(c.ImageHeight) / 2},
		ImageWidth:     c.ImageWidth,
		ImageHeight:    c.ImageHeight,
		Position:       pos,
		Orientation:    lookAtOrientation(pos, target),
	}
}

// lookAtOrientation builds the unit quaternion rotating camera-local axes
// into world space for a camera at eye looking at target with +Y world up.
// Camera-local -Z points at the target.
func lookAtOrientation(eye, target r3.Vec) quat.Number {
	forward := r3.Unit(r3.Sub(target, eye))
	up := r3.Vec{Y: 1}

	// Degenerate when looking straight up or down; pick a fallback up axis.
	if math.Abs(r3.Dot(forward, up)) > 0.999 {
		up = r3.Vec{Z: 1}
	}

	right := r3.Unit(r3.Cross(forward, up))
	camUp := r3.Cross(right, forward)

	// Column-major rotation matrix with columns (right, camUp, -forward),
	// converted to a quaternion by the standard trace method.
	m00, m01, m02 := right.X, camUp.X, -forward.X
	m10, m11, m12 := right.Y, camUp.Y, -forward.Y
	m20, m21, m22 := right.Z, camUp.Z, -forward.Z

	trace := m00 + m11 + m22
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m21 - m12) * s,
			Jmag: (m02 - m20) * s,
			Kmag: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}
	return quat.Scale(1/quat.Abs(q), q)
}
