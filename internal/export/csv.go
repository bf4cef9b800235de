package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/num/quat"

	"github.com/gretchenboria/snaplock/internal/capture"
)

// csvColumns is the fixed column layout of the legacy CSV export, one row
// per (frame, annotation) pair. Orientation is emitted as Euler angles in
// degrees, a lossy conversion kept for spreadsheet users; quaternion
// consumers must use the COCO or report exports instead.
var csvColumns = []string{
	"frame_index", "timestamp_s", "object_id", "category",
	"pos_x", "pos_y", "pos_z",
	"vel_x", "vel_y", "vel_z",
	"roll_deg", "pitch_deg", "yaw_deg",
	"visible",
}

// CSV serializes the recording as UTF-8 delimited text with a header row.
// An empty recording yields the header alone.
func CSV(rec capture.Recording) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, frame := range rec.Frames {
		for _, a := range frame.Annotations {
			roll, pitch, yaw := EulerDegrees(a.Quaternion)
			row := []string{
				strconv.Itoa(frame.FrameIndex),
				formatFloat(frame.Timestamp),
				a.ObjectID,
				a.CategoryLabel,
				formatFloat(a.Position.X),
				formatFloat(a.Position.Y),
				formatFloat(a.Position.Z),
				formatFloat(a.LinearVelocity.X),
				formatFloat(a.LinearVelocity.Y),
				formatFloat(a.LinearVelocity.Z),
				formatFloat(roll),
				formatFloat(pitch),
				formatFloat(yaw),
				strconv.FormatBool(a.Visible),
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// EulerDegrees converts a unit quaternion to roll/pitch/yaw in degrees using
// the aerospace ZYX intrinsic convention (equivalently XYZ extrinsic). The
// conversion is lossy near pitch ±90°; the pitch term is clamped to avoid
// NaN from floating-point drift outside asin's domain.
func EulerDegrees(q quat.Number) (roll, pitch, yaw float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinPitch := 2 * (w*y - z*x)
	if sinPitch > 1 {
		sinPitch = 1
	} else if sinPitch < -1 {
		sinPitch = -1
	}

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)) * 180 / math.Pi
	pitch = math.Asin(sinPitch) * 180 / math.Pi
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)) * 180 / math.Pi
	return roll, pitch, yaw
}
