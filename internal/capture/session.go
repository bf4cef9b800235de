package capture

import (
	"errors"
	"sync"

	"github.com/gretchenboria/snaplock/internal/monitoring"
)

// ErrInvalidState is returned by Start and CaptureOne when a recording is
// already in progress. It is recoverable: the session state is unchanged.
var ErrInvalidState = errors.New("capture: recording already in progress")

// SessionState is the lifecycle state of a RecordingSession.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Recording is a safe-to-export snapshot of a session's accumulated frames
// and category registry, taken at a point in time. Exporters operate on
// Recording values only and never see the live buffer.
type Recording struct {
	Frames     []Frame
	Categories []Category
}

// SingleFrameRecording wraps one frame as a Recording, deriving the category
// list from the frame's own annotations. Used for capture-one exports.
func SingleFrameRecording(frame Frame) Recording {
	reg := NewCategoryRegistry()
	for _, a := range frame.Annotations {
		reg.Register(a.CategoryLabel)
	}
	return Recording{
		Frames:     []Frame{frame},
		Categories: reg.Categories(),
	}
}

// RecordingSession owns the capture lifecycle: an ordered, append-only frame
// buffer filled by Tick while Recording, frozen by Stop, and released by
// Reset. It performs no I/O; the buffer grows without an internal cap, so the
// host is responsible for bounding recording length.
//
// All operations are safe for concurrent use, though the intended scheduling
// model is a single host loop calling Tick once per render step.
type RecordingSession struct {
	mu       sync.Mutex
	state    SessionState
	frames   []Frame
	registry *CategoryRegistry
	sampler  *FrameSampler
}

// NewRecordingSession returns an Idle session sampling frames from sampler.
func NewRecordingSession(sampler *FrameSampler) *RecordingSession {
	return &RecordingSession{
		registry: NewCategoryRegistry(),
		sampler:  sampler,
	}
}

// Start transitions to Recording, clearing any previous buffer and category
// registry. Returns ErrInvalidState if already Recording.
func (s *RecordingSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return ErrInvalidState
	}
	s.frames = nil
	s.registry.reset()
	s.state = StateRecording
	monitoring.Logf("capture: session started")
	return nil
}

// Tick samples and appends exactly one frame while Recording. Calls in any
// other state are a deliberate no-op so stray ticks after Stop are harmless.
func (s *RecordingSession) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return
	}
	s.appendFrameLocked()
}

func (s *RecordingSession) appendFrameLocked() Frame {
	frame := s.sampler.Sample()
	frame.FrameIndex = len(s.frames)
	for _, a := range frame.Annotations {
		s.registry.Register(a.CategoryLabel)
	}
	s.frames = append(s.frames, frame)
	return frame
}

// Stop freezes the buffer. A no-op unless Recording.
func (s *RecordingSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return
	}
	s.state = StateStopped
	monitoring.Logf("capture: session stopped with %d frames", len(s.frames))
}

// Reset releases the buffer and registry and returns to Idle from any state.
func (s *RecordingSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
	s.registry.reset()
	s.state = StateIdle
}

// CaptureOne records a degenerate single-frame recording: sample once and
// return the frame without touching the session's own buffer or registry, so
// a later Start/Tick/Stop sequence shares nothing with the captured frame.
// Returns ErrInvalidState while a real recording is in progress.
func (s *RecordingSession) CaptureOne() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return Frame{}, ErrInvalidState
	}
	frame := s.sampler.Sample()
	frame.FrameIndex = 0
	return frame, nil
}

// State returns the current lifecycle state.
func (s *RecordingSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FrameCount returns the number of frames accumulated so far.
func (s *RecordingSession) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Snapshot returns a shallow copy of the current buffer and category list,
// usable mid-recording. Frames are immutable once appended, so sharing the
// underlying annotation slices is safe.
func (s *RecordingSession) Snapshot() Recording {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]Frame, len(s.frames))
	copy(frames, s.frames)
	return Recording{
		Frames:     frames,
		Categories: s.registry.Categories(),
	}
}

// LatestAnnotation returns the first annotation of the most recent frame, the
// single source of truth for live telemetry readouts. ok is false when the
// buffer is empty or the last frame has no annotations.
func (s *RecordingSession) LatestAnnotation() (ObjectAnnotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return ObjectAnnotation{}, false
	}
	last := s.frames[len(s.frames)-1]
	if len(last.Annotations) == 0 {
		return ObjectAnnotation{}, false
	}
	return last.Annotations[0], true
}
