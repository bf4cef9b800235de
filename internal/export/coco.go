// Package export turns a captured frame buffer into dataset artifacts: a
// COCO-style JSON document, YOLO label files with a class map, a flat CSV
// table and an HTML summary report. Every exporter is a pure function over a
// capture.Recording snapshot; none performs I/O or mutates the input, and all
// of them produce a valid empty artifact for a zero-frame recording.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gretchenboria/snaplock/internal/capture"
)

// COCOInfo is the document-level metadata block.
type COCOInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	DateCreated string `json:"date_created"`
}

// COCOImage describes one captured frame. The image id equals the frame
// index; file_name is the name the rendered frame would be stored under.
type COCOImage struct {
	ID        int     `json:"id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FileName  string  `json:"file_name"`
	Timestamp float64 `json:"timestamp"`
}

// COCOPose carries the full 3D ground truth per annotation, an extension
// beyond base COCO for 6-DoF pose training. Quaternion order is x, y, z, w.
type COCOPose struct {
	Position       [3]float64 `json:"position"`
	Quaternion     [4]float64 `json:"quaternion"`
	LinearVelocity [3]float64 `json:"linear_velocity"`
}

// COCOAnnotation is one visible object in one image. Boxes use COCO's native
// [x_min, y_min, width, height] pixel convention.
type COCOAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
	IsCrowd    int        `json:"iscrowd"`
	ObjectID   string     `json:"object_id"`
	Pose       COCOPose   `json:"pose_6dof"`
}

// COCOCategory is one entry of the global category list.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// COCODocument is the top-level COCO export schema.
type COCODocument struct {
	Info        COCOInfo         `json:"info"`
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// BuildCOCO assembles the COCO document for a recording. Annotation ids are
// a running counter across the whole export; COCO requires them globally
// unique, so per-frame indices are never reused. Invisible annotations are
// excluded entirely. An empty recording yields a document with empty arrays.
func BuildCOCO(rec capture.Recording) COCODocument {
	doc := COCODocument{
		Info: COCOInfo{
			Description: "SnapLock synthetic ground-truth dataset",
			Version:     "1.0",
			DateCreated: time.Now().UTC().Format("2006-01-02"),
		},
		Images:      make([]COCOImage, 0, len(rec.Frames)),
		Annotations: make([]COCOAnnotation, 0),
		Categories:  make([]COCOCategory, 0, len(rec.Categories)),
	}

	categoryIDs := make(map[string]int, len(rec.Categories))
	for _, c := range rec.Categories {
		categoryIDs[c.Label] = c.ID
		doc.Categories = append(doc.Categories, COCOCategory{
			ID:            c.ID,
			Name:          c.Label,
			Supercategory: "object",
		})
	}

	nextAnnotationID := 0
	for _, frame := range rec.Frames {
		doc.Images = append(doc.Images, COCOImage{
			ID:        frame.FrameIndex,
			Width:     frame.Camera.ImageWidth,
			Height:    frame.Camera.ImageHeight,
			FileName:  FrameImageName(frame.FrameIndex),
			Timestamp: frame.Timestamp,
		})

		for _, a := range frame.Annotations {
			if !a.Visible {
				continue
			}
			doc.Annotations = append(doc.Annotations, COCOAnnotation{
				ID:         nextAnnotationID,
				ImageID:    frame.FrameIndex,
				CategoryID: categoryIDs[a.CategoryLabel],
				BBox:       [4]float64{a.Box.XMinPx, a.Box.YMinPx, a.Box.WidthPx, a.Box.HeightPx},
				Area:       a.Box.WidthPx * a.Box.HeightPx,
				IsCrowd:    0,
				ObjectID:   a.ObjectID,
				Pose: COCOPose{
					Position:       [3]float64{a.Position.X, a.Position.Y, a.Position.Z},
					Quaternion:     [4]float64{a.Quaternion.Imag, a.Quaternion.Jmag, a.Quaternion.Kmag, a.Quaternion.Real},
					LinearVelocity: [3]float64{a.LinearVelocity.X, a.LinearVelocity.Y, a.LinearVelocity.Z},
				},
			})
			nextAnnotationID++
		}
	}

	return doc
}

// COCO serializes the recording as an indented UTF-8 COCO JSON payload.
func COCO(rec capture.Recording) ([]byte, error) {
	doc := BuildCOCO(rec)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal coco document: %w", err)
	}
	return data, nil
}

// FrameImageName returns the canonical rendered-image filename for a frame
// index, shared by the COCO images section and the YOLO label file names.
func FrameImageName(frameIndex int) string {
	return fmt.Sprintf("frame_%06d.png", frameIndex)
}
