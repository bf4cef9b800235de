package main

// Shared API payload types for the host server.

// TelemetrySample is the live readout shown by the UI: the first annotation
// of the most recent frame, projected straight from the frame buffer.
type TelemetrySample struct {
	ObjectID string     `json:"object_id"`
	Category string     `json:"category"`
	Position [3]float64 `json:"position"`
	SpeedMS  float64    `json:"speed_ms"`
	Visible  bool       `json:"visible"`
}

// StatusResponse reports session state and the frame counter for UI display.
type StatusResponse struct {
	Scene      string           `json:"scene"`
	State      string           `json:"state"`
	FrameCount int              `json:"frame_count"`
	MaxFrames  int              `json:"max_frames"`
	Categories int              `json:"categories"`
	ReportBusy bool             `json:"report_busy"`
	Telemetry  *TelemetrySample `json:"telemetry,omitempty"`
}

// CaptureOneResponse summarizes the single frame captured by capture-one.
type CaptureOneResponse struct {
	Timestamp   float64 `json:"timestamp"`
	Annotations int     `json:"annotations"`
	Visible     int     `json:"visible"`
}

// YOLOResponse is the JSON wrapper for the YOLO export bundle: the host
// writes each entry of LabelFiles alongside ClassFile when materializing the
// dataset on disk.
type YOLOResponse struct {
	ClassFile  string            `json:"class_file"`
	ClassName  string            `json:"class_file_name"`
	LabelFiles map[string]string `json:"label_files"`
	LabelOrder []string          `json:"label_order"`
}

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
