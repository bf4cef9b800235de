package scene

import (
	"fmt"
	"sort"
)

// Built-in scene presets mirroring the bundled asset scripts (quadcopter
// drone, robotic arm, autonomous vehicle, surgical robot), so dataset mode
// can run without the external scene-generation service.

var presets = map[string]func() *Spec{
	"drone":              DronePreset,
	"robotic_arm":        RoboticArmPreset,
	"autonomous_vehicle": AutonomousVehiclePreset,
	"surgical_robot":     SurgicalRobotPreset,
}

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of the named preset scene.
func Preset(name string) (*Spec, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene preset %q (have %v)", name, PresetNames())
	}
	return build(), nil
}

func defaultCamera() CameraSpec {
	return CameraSpec{
		FocalLengthPx: 900,
		ImageWidth:    1280,
		ImageHeight:   720,
		Position:      [3]float64{0, 2.5, 7},
		LookAt:        [3]float64{0, 1, 0},
	}
}

// DronePreset is a hovering quadcopter: central body plus four spinning
// rotors dropped from altitude.
func DronePreset() *Spec {
	spec := &Spec{
		Name:        "drone",
		Description: "Quadcopter drone with four rotors, dropped from 2m",
		Camera:      defaultCamera(),
		Objects: []ObjectSpec{
			{
				ID: "drone_body", Category: "drone",
				Position: [3]float64{0, 2, 0},
				Extents:  [3]float64{0.45, 0.15, 0.45},
				AngularVelocityDeg: [3]float64{0, 30, 0},
				Restitution:        0.35,
			},
		},
	}
	rotorOffsets := [][2]float64{{0.35, 0.35}, {-0.35, 0.35}, {0.35, -0.35}, {-0.35, -0.35}}
	for i, off := range rotorOffsets {
		spec.Objects = append(spec.Objects, ObjectSpec{
			ID:       fmt.Sprintf("rotor_%d", i+1),
			Category: "rotor",
			Position: [3]float64{off[0], 2.1, off[1]},
			Extents:  [3]float64{0.24, 0.02, 0.24},
			AngularVelocityDeg: [3]float64{0, 720, 0},
			Restitution:        0.2,
		})
	}
	return spec
}

// RoboticArmPreset is a fixed-base manipulator with articulated segments.
func RoboticArmPreset() *Spec {
	return &Spec{
		Name:        "robotic_arm",
		Description: "Industrial manipulator: static base, rotating segments, falling workpiece",
		Camera:      defaultCamera(),
		Objects: []ObjectSpec{
			{
				ID: "arm_base", Category: "robotic_arm",
				Position: [3]float64{0, 0.25, 0},
				Extents:  [3]float64{0.6, 0.5, 0.6},
				Static:   true,
			},
			{
				ID: "upper_arm", Category: "robotic_arm",
				Position: [3]float64{0, 1.0, 0},
				Extents:  [3]float64{0.2, 0.9, 0.2},
				Static:   true,
				AngularVelocityDeg: [3]float64{0, 25, 0},
			},
			{
				ID: "forearm", Category: "robotic_arm",
				Position: [3]float64{0.3, 1.6, 0},
				Extents:  [3]float64{0.15, 0.7, 0.15},
				Static:   true,
				AngularVelocityDeg: [3]float64{0, 25, 15},
			},
			{
				ID: "workpiece", Category: "workpiece",
				Position: [3]float64{0.6, 1.8, 0.2},
				Extents:  [3]float64{0.2, 0.2, 0.2},
				Restitution: 0.45,
			},
		},
	}
}

// AutonomousVehiclePreset is a car driving past static traffic cones.
func AutonomousVehiclePreset() *Spec {
	return &Spec{
		Name:        "autonomous_vehicle",
		Description: "Passenger vehicle moving along +X through a cone corridor",
		Camera: CameraSpec{
			FocalLengthPx: 900,
			ImageWidth:    1280,
			ImageHeight:   720,
			Position:      [3]float64{-2, 3, 12},
			LookAt:        [3]float64{0, 0.8, 0},
		},
		Objects: []ObjectSpec{
			{
				ID: "vehicle", Category: "vehicle",
				Position:        [3]float64{-6, 0.8, 0},
				Extents:         [3]float64{4.4, 1.5, 1.9},
				InitialVelocity: [3]float64{3.5, 0, 0},
			},
			{
				ID: "cone_1", Category: "traffic_cone",
				Position: [3]float64{-2, 0.45, 1.8},
				Extents:  [3]float64{0.4, 0.9, 0.4},
				Static:   true,
			},
			{
				ID: "cone_2", Category: "traffic_cone",
				Position: [3]float64{2, 0.45, 1.8},
				Extents:  [3]float64{0.4, 0.9, 0.4},
				Static:   true,
			},
			{
				ID: "cone_3", Category: "traffic_cone",
				Position: [3]float64{6, 0.45, 1.8},
				Extents:  [3]float64{0.4, 0.9, 0.4},
				Static:   true,
			},
		},
	}
}

// SurgicalRobotPreset is a compact theatre: static gantry with small moving
// instruments above a table.
func SurgicalRobotPreset() *Spec {
	return &Spec{
		Name:        "surgical_robot",
		Description: "Surgical gantry with instrument arms over an operating table",
		Camera: CameraSpec{
			FocalLengthPx: 1100,
			ImageWidth:    1280,
			ImageHeight:   720,
			Position:      [3]float64{0, 2.2, 3.5},
			LookAt:        [3]float64{0, 1, 0},
		},
		Objects: []ObjectSpec{
			{
				ID: "operating_table", Category: "table",
				Position: [3]float64{0, 0.45, 0},
				Extents:  [3]float64{1.8, 0.9, 0.7},
				Static:   true,
			},
			{
				ID: "gantry", Category: "surgical_robot",
				Position: [3]float64{0, 1.9, -0.4},
				Extents:  [3]float64{1.6, 0.25, 0.25},
				Static:   true,
			},
			{
				ID: "instrument_left", Category: "instrument",
				Position: [3]float64{-0.4, 1.5, 0},
				Extents:  [3]float64{0.06, 0.5, 0.06},
				Static:   true,
				AngularVelocityDeg: [3]float64{0, 0, 20},
			},
			{
				ID: "instrument_right", Category: "instrument",
				Position: [3]float64{0.4, 1.5, 0},
				Extents:  [3]float64{0.06, 0.5, 0.06},
				Static:   true,
				AngularVelocityDeg: [3]float64{0, 0, -20},
			},
			{
				ID: "gauze_block", Category: "supply",
				Position: [3]float64{0.1, 1.4, 0.2},
				Extents:  [3]float64{0.12, 0.12, 0.12},
				Restitution: 0.1,
			},
		},
	}
}
