package export

import (
	"fmt"
	"strings"

	"github.com/gretchenboria/snaplock/internal/capture"
)

// YOLOBundle is the full YOLO export: one label file per frame plus the
// shared class-index file. Label files are keyed by name; a frame with zero
// visible annotations still gets an entry with empty content, since a
// missing file would be ambiguous with "not exported".
type YOLOBundle struct {
	// LabelFiles maps label file name to file content.
	LabelFiles map[string]string
	// LabelOrder lists label file names in frame order.
	LabelOrder []string
	// ClassFile is the classes.txt content: one label per line, ordered by
	// category id, so the 0-based line number equals the class index used in
	// every label file.
	ClassFile string
}

// ClassFileName is the name of the shared class-index file.
const ClassFileName = "classes.txt"

// YOLO builds the label-file set for a recording. Each line is
// "<class_index> <x_center> <y_center> <width> <height>" with all four
// spatial values normalized to [0,1] and center-based per YOLO convention.
// Invisible annotations are omitted.
func YOLO(rec capture.Recording) YOLOBundle {
	bundle := YOLOBundle{
		LabelFiles: make(map[string]string, len(rec.Frames)),
		LabelOrder: make([]string, 0, len(rec.Frames)),
	}

	classIndex := make(map[string]int, len(rec.Categories))
	var classes strings.Builder
	for _, c := range rec.Categories {
		classIndex[c.Label] = c.ID
		classes.WriteString(c.Label)
		classes.WriteByte('\n')
	}
	bundle.ClassFile = classes.String()

	for _, frame := range rec.Frames {
		var lines strings.Builder
		for _, a := range frame.Annotations {
			if !a.Visible {
				continue
			}
			cx, cy := a.Box.CenterNorm()
			fmt.Fprintf(&lines, "%d %.6f %.6f %.6f %.6f\n",
				classIndex[a.CategoryLabel], cx, cy, a.Box.WidthNorm, a.Box.HeightNorm)
		}

		name := LabelFileName(frame.FrameIndex)
		bundle.LabelFiles[name] = lines.String()
		bundle.LabelOrder = append(bundle.LabelOrder, name)
	}

	return bundle
}

// LabelFileName returns the per-frame label file name for a frame index.
func LabelFileName(frameIndex int) string {
	return fmt.Sprintf("frame_%06d.txt", frameIndex)
}
