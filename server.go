package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gretchenboria/snaplock/internal/capture"
	"github.com/gretchenboria/snaplock/internal/config"
	"github.com/gretchenboria/snaplock/internal/datasetdb"
	"github.com/gretchenboria/snaplock/internal/export"
	"github.com/gretchenboria/snaplock/internal/scene"
)

// Server exposes the capture session and exporters over HTTP for the UI.
// The capture core stays free of HTTP concerns; every handler funnels
// through the session's stated operations.
type Server struct {
	session *capture.RecordingSession
	sim     *scene.Simulator
	db      *datasetdb.DB
	cfg     *config.CaptureConfig

	mu          sync.Mutex
	recordingID string
	startedAtNs int64

	// Report generation runs off the capture loop; the handlers surface a
	// busy flag and the finished payload.
	reportBusy   bool
	reportResult []byte
	reportErr    error
}

// NewServer wires the host server. db may be nil (exports then cannot be
// persisted, only downloaded).
func NewServer(session *capture.RecordingSession, sim *scene.Simulator, db *datasetdb.DB, cfg *config.CaptureConfig) *Server {
	return &Server{session: session, sim: sim, db: db, cfg: cfg}
}

// ServeMux returns the API routes, mounted by main under /api.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/session/start", s.handleStart)
	mux.HandleFunc("/session/stop", s.handleStop)
	mux.HandleFunc("/session/reset", s.handleReset)
	mux.HandleFunc("/session/capture", s.handleCaptureOne)
	mux.HandleFunc("/export/coco", s.handleExportCOCO)
	mux.HandleFunc("/export/yolo", s.handleExportYOLO)
	mux.HandleFunc("/export/csv", s.handleExportCSV)
	mux.HandleFunc("/export/report", s.handleExportReport)
	mux.HandleFunc("/recordings", s.handleListRecordings)
	mux.HandleFunc("/artifacts", s.handleListArtifacts)
	mux.HandleFunc("/artifact", s.handleGetArtifact)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.session.Snapshot()
	resp := StatusResponse{
		Scene:      s.sim.Name(),
		State:      s.session.State().String(),
		FrameCount: len(snap.Frames),
		MaxFrames:  s.cfg.MaxFramesOrDefault(),
		Categories: len(snap.Categories),
		ReportBusy: s.reportInProgress(),
	}
	if a, ok := s.session.LatestAnnotation(); ok {
		resp.Telemetry = &TelemetrySample{
			ObjectID: a.ObjectID,
			Category: a.CategoryLabel,
			Position: [3]float64{a.Position.X, a.Position.Y, a.Position.Z},
			SpeedMS:  a.Speed(),
			Visible:  a.Visible,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.session.Start(); err != nil {
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}

	s.mu.Lock()
	s.startedAtNs = time.Now().UnixNano()
	s.recordingID = ""
	if s.db != nil {
		row := &datasetdb.RecordingRow{SceneName: s.sim.Name(), StartedAtNs: s.startedAtNs}
		if err := s.db.InsertRecording(row); err != nil {
			log.Printf("failed to persist recording row: %v", err)
		} else {
			s.recordingID = row.RecordingID
		}
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.session.Stop()

	s.mu.Lock()
	if s.db != nil && s.recordingID != "" {
		if err := s.db.FinishRecording(s.recordingID, time.Now().UnixNano(), s.session.FrameCount()); err != nil {
			log.Printf("failed to finish recording row: %v", err)
		}
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       s.session.State().String(),
		"frame_count": s.session.FrameCount(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.session.Reset()
	s.mu.Lock()
	s.recordingID = ""
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleCaptureOne(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	frame, err := s.session.CaptureOne()
	if err != nil {
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CaptureOneResponse{
		Timestamp:   frame.Timestamp,
		Annotations: len(frame.Annotations),
		Visible:     frame.VisibleCount(),
	})
}

// maybePersist stores an export payload as an artifact of the current
// recording when the request asks for it with ?save=true.
func (s *Server) maybePersist(r *http.Request, format, fileName string, payload []byte) {
	if r.URL.Query().Get("save") != "true" {
		return
	}
	s.mu.Lock()
	recordingID := s.recordingID
	s.mu.Unlock()

	if s.db == nil || recordingID == "" {
		log.Printf("cannot persist %s artifact: no active recording row", format)
		return
	}
	if _, err := s.db.InsertArtifact(recordingID, format, fileName, payload); err != nil {
		log.Printf("failed to persist %s artifact: %v", format, err)
	}
}

func (s *Server) handleExportCOCO(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := export.COCO(s.session.Snapshot())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("coco export failed: %v", err))
		return
	}
	s.maybePersist(r, "coco", "annotations.json", payload)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="annotations.json"`)
	_, _ = w.Write(payload)
}

func (s *Server) handleExportYOLO(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bundle := export.YOLO(s.session.Snapshot())
	resp := YOLOResponse{
		ClassFile:  bundle.ClassFile,
		ClassName:  export.ClassFileName,
		LabelFiles: bundle.LabelFiles,
		LabelOrder: bundle.LabelOrder,
	}
	if payload, err := json.Marshal(resp); err == nil {
		s.maybePersist(r, "yolo", "yolo_labels.json", payload)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := export.CSV(s.session.Snapshot())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("csv export failed: %v", err))
		return
	}
	s.maybePersist(r, "csv", "ground_truth.csv", payload)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ground_truth.csv"`)
	_, _ = w.Write(payload)
}

// handleExportReport starts report generation on POST and serves the result
// on GET. The report is the one slow exporter, so POST returns immediately
// with 202 and the UI polls until the payload is ready.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		snap := s.session.Snapshot()

		s.mu.Lock()
		if s.reportBusy {
			s.mu.Unlock()
			s.writeJSONError(w, http.StatusConflict, "report generation already in progress")
			return
		}
		s.reportBusy = true
		s.reportResult = nil
		s.reportErr = nil
		s.mu.Unlock()

		go func() {
			payload, err := export.Report(snap)
			s.mu.Lock()
			s.reportBusy = false
			s.reportResult = payload
			s.reportErr = err
			s.mu.Unlock()
		}()

		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})

	case http.MethodGet:
		s.mu.Lock()
		busy, payload, err := s.reportBusy, s.reportResult, s.reportErr
		s.mu.Unlock()

		switch {
		case busy:
			s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})
		case err != nil:
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("report generation failed: %v", err))
		case payload == nil:
			s.writeJSONError(w, http.StatusNotFound, "no report generated yet")
		default:
			s.maybePersist(r, "report", "report.html", payload)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(payload)
		}

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) reportInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportBusy
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "no dataset database configured")
		return
	}
	rows, err := s.db.ListRecordings(100)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "no dataset database configured")
		return
	}
	recordingID := r.URL.Query().Get("recording_id")
	if recordingID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "recording_id is required")
		return
	}
	rows, err := s.db.ListArtifacts(recordingID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "no dataset database configured")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "id is required")
		return
	}
	payload, err := s.db.GetArtifactPayload(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(payload)
}
