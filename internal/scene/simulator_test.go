package scene

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gretchenboria/snaplock/internal/capture"
)

func fallingCubeSpec() *Spec {
	spec, err := Parse([]byte(sampleYAML))
	if err != nil {
		panic(err)
	}
	return spec
}

func TestSimulatorGravity(t *testing.T) {
	t.Parallel()

	sim, err := NewSimulator(fallingCubeSpec())
	require.NoError(t, err)

	before := sim.Objects()[0]
	sim.Step(1.0 / 60)
	after := sim.Objects()[0]

	assert.Less(t, after.Position.Y, before.Position.Y)
	assert.Less(t, after.LinearVelocity.Y, 0.0)
	// Horizontal velocity is untouched in free fall.
	assert.Equal(t, 0.5, after.LinearVelocity.X)
}

func TestSimulatorSettlesOnGround(t *testing.T) {
	t.Parallel()

	sim, err := NewSimulator(fallingCubeSpec())
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		sim.Step(1.0 / 60)
	}

	obj := sim.Objects()[0]
	// A 1m cube rests with its centre at half height.
	assert.InDelta(t, 0.5, obj.Position.Y, 1e-9)
	assert.Equal(t, r3.Vec{}, obj.LinearVelocity)
}

func TestSimulatorNeverPenetratesGround(t *testing.T) {
	t.Parallel()

	sim, err := NewSimulator(fallingCubeSpec())
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		sim.Step(1.0 / 60)
		y := sim.Objects()[0].Position.Y
		assert.GreaterOrEqual(t, y, 0.5-1e-9, "cube bottom below ground at step %d", i)
	}
}

func TestSimulatorStaticBodyHoldsPositionButSpins(t *testing.T) {
	t.Parallel()

	spec := fallingCubeSpec()
	spec.Objects[0].Static = true

	sim, err := NewSimulator(spec)
	require.NoError(t, err)

	start := sim.Objects()[0]
	for i := 0; i < 120; i++ {
		sim.Step(1.0 / 60)
	}
	end := sim.Objects()[0]

	assert.Equal(t, start.Position, end.Position)
	assert.NotEqual(t, start.Quaternion, end.Quaternion)
	// Orientation stays a unit quaternion under integration.
	assert.InDelta(t, 1, quat.Abs(end.Quaternion), 1e-9)
}

func TestSimulatorSpinRate(t *testing.T) {
	t.Parallel()

	spec := fallingCubeSpec()
	spec.Objects[0].Static = true
	spec.Objects[0].AngularVelocityDeg = [3]float64{0, 90, 0}

	sim, err := NewSimulator(spec)
	require.NoError(t, err)

	// 1s at 90°/s in small steps: a local +X axis swings toward -Z.
	for i := 0; i < 1000; i++ {
		sim.Step(1.0 / 1000)
	}
	q := sim.Objects()[0].Quaternion
	rotated := capture.RotateVec(q, r3.Vec{X: 1})
	assert.InDelta(t, 0, rotated.X, 0.01)
	assert.InDelta(t, -1, rotated.Z, 0.01)
	assert.InDelta(t, 0, math.Abs(rotated.Y), 1e-9)
}

func TestSimulatorDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []capture.TrackedObject {
		sim, err := NewSimulator(fallingCubeSpec())
		require.NoError(t, err)
		for i := 0; i < 240; i++ {
			sim.Step(1.0 / 60)
		}
		return sim.Objects()
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("identical runs diverged (-a +b):\n%s", diff)
	}
}

func TestSimulatorTimeAccumulates(t *testing.T) {
	t.Parallel()

	sim, err := NewSimulator(fallingCubeSpec())
	require.NoError(t, err)

	assert.Equal(t, 0.0, sim.Time())
	sim.Step(0.5)
	sim.Step(0.25)
	assert.InDelta(t, 0.75, sim.Time(), 1e-12)

	// Non-positive steps are ignored.
	sim.Step(0)
	sim.Step(-1)
	assert.InDelta(t, 0.75, sim.Time(), 1e-12)
}

func TestSimulatorAsPoseSource(t *testing.T) {
	t.Parallel()

	spec, err := Preset("drone")
	require.NoError(t, err)
	sim, err := NewSimulator(spec)
	require.NoError(t, err)

	var src capture.PoseSource = sim
	sampler := capture.NewFrameSampler(src)
	sampler.SetClock(sim.Time)

	sim.Step(1.0 / 30)
	frame := sampler.Sample()
	assert.Len(t, frame.Annotations, 5)
	assert.InDelta(t, 1.0/30, frame.Timestamp, 1e-12)
	assert.Equal(t, 1280, frame.Camera.ImageWidth)
}
