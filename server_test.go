package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gretchenboria/snaplock/internal/capture"
	"github.com/gretchenboria/snaplock/internal/config"
	"github.com/gretchenboria/snaplock/internal/datasetdb"
	"github.com/gretchenboria/snaplock/internal/export"
	"github.com/gretchenboria/snaplock/internal/scene"
)

// newTestServer wires a server over the drone preset with an optional
// temp-file dataset database. The capture loop is not running; tests drive
// the session with tick().
type testServer struct {
	*Server
	mux     *http.ServeMux
	session *capture.RecordingSession
	sim     *scene.Simulator
}

func newTestServer(t *testing.T, withDB bool) *testServer {
	t.Helper()

	spec, err := scene.Preset("drone")
	require.NoError(t, err)
	sim, err := scene.NewSimulator(spec)
	require.NoError(t, err)

	sampler := capture.NewFrameSampler(sim)
	sampler.SetClock(sim.Time)
	session := capture.NewRecordingSession(sampler)

	var db *datasetdb.DB
	if withDB {
		db, err = datasetdb.Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	srv := NewServer(session, sim, db, &config.CaptureConfig{})
	return &testServer{Server: srv, mux: srv.ServeMux(), session: session, sim: sim}
}

func (ts *testServer) tick(n int) {
	for i := 0; i < n; i++ {
		ts.sim.Step(1.0 / 30)
		ts.session.Tick()
	}
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestStatusIdle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[StatusResponse](t, w)
	assert.Equal(t, "drone", resp.Scene)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, 0, resp.FrameCount)
	assert.Equal(t, config.DefaultMaxFrames, resp.MaxFrames)
	assert.Nil(t, resp.Telemetry)
}

func TestSessionStartStopFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/session/start")
	require.Equal(t, http.StatusOK, w.Code)

	// Double start conflicts without disturbing the session.
	w = ts.do(t, http.MethodPost, "/session/start")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "already in progress")

	ts.tick(5)

	w = ts.do(t, http.MethodGet, "/status")
	resp := decode[StatusResponse](t, w)
	assert.Equal(t, "recording", resp.State)
	assert.Equal(t, 5, resp.FrameCount)
	require.NotNil(t, resp.Telemetry)
	assert.Equal(t, "drone_body", resp.Telemetry.ObjectID)

	w = ts.do(t, http.MethodPost, "/session/stop")
	require.Equal(t, http.StatusOK, w.Code)
	stop := decode[map[string]interface{}](t, w)
	assert.Equal(t, "stopped", stop["state"])
	assert.Equal(t, float64(5), stop["frame_count"])

	w = ts.do(t, http.MethodPost, "/session/reset")
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/status")
	assert.Equal(t, 0, decode[StatusResponse](t, w).FrameCount)
}

func TestCaptureOneEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/session/capture")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CaptureOneResponse](t, w)
	assert.Equal(t, 5, resp.Annotations)

	// Still idle: one-shot capture does not open a recording.
	w = ts.do(t, http.MethodGet, "/status")
	assert.Equal(t, "idle", decode[StatusResponse](t, w).State)

	// Rejected while recording.
	ts.do(t, http.MethodPost, "/session/start")
	w = ts.do(t, http.MethodPost, "/session/capture")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportCOCOEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/session/start")
	ts.tick(3)
	ts.do(t, http.MethodPost, "/session/stop")

	w := ts.do(t, http.MethodGet, "/export/coco")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "annotations.json")

	doc := decode[export.COCODocument](t, w)
	assert.Len(t, doc.Images, 3)
	assert.NotEmpty(t, doc.Categories)
}

func TestExportEmptySession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)

	// Every exporter serves a valid empty artifact with no recording at all.
	w := ts.do(t, http.MethodGet, "/export/coco")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[export.COCODocument](t, w)
	assert.Empty(t, doc.Images)

	w = ts.do(t, http.MethodGet, "/export/yolo")
	require.Equal(t, http.StatusOK, w.Code)
	yolo := decode[YOLOResponse](t, w)
	assert.Empty(t, yolo.LabelOrder)
	assert.Equal(t, export.ClassFileName, yolo.ClassName)

	w = ts.do(t, http.MethodGet, "/export/csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "frame_index,"))
}

func TestExportYOLOEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/session/start")
	ts.tick(2)
	ts.do(t, http.MethodPost, "/session/stop")

	w := ts.do(t, http.MethodGet, "/export/yolo")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[YOLOResponse](t, w)
	require.Len(t, resp.LabelOrder, 2)
	assert.Contains(t, resp.LabelFiles, "frame_000000.txt")
	assert.Contains(t, resp.ClassFile, "drone")
}

func TestExportReportFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/session/start")
	ts.tick(3)
	ts.do(t, http.MethodPost, "/session/stop")

	// Nothing generated yet.
	w := ts.do(t, http.MethodGet, "/export/report")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/export/report")
	require.Equal(t, http.StatusAccepted, w.Code)

	// Poll until the background render finishes.
	deadline := time.Now().Add(10 * time.Second)
	for {
		w = ts.do(t, http.MethodGet, "/export/report")
		if w.Code != http.StatusAccepted {
			break
		}
		require.True(t, time.Now().Before(deadline), "report never finished")
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "SnapLock recording report")
}

func TestRecordingPersistence(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/session/start")
	ts.tick(2)

	// Persist the COCO export as an artifact of the live recording.
	w := ts.do(t, http.MethodGet, "/export/coco?save=true")
	require.Equal(t, http.StatusOK, w.Code)

	ts.do(t, http.MethodPost, "/session/stop")

	w = ts.do(t, http.MethodGet, "/recordings")
	require.Equal(t, http.StatusOK, w.Code)
	recs := decode[[]datasetdb.RecordingRow](t, w)
	require.Len(t, recs, 1)
	assert.Equal(t, "drone", recs[0].SceneName)
	assert.Equal(t, 2, recs[0].FrameCount)
	require.NotNil(t, recs[0].StoppedAtNs)

	w = ts.do(t, http.MethodGet, "/artifacts?recording_id="+recs[0].RecordingID)
	require.Equal(t, http.StatusOK, w.Code)
	arts := decode[[]datasetdb.ArtifactRow](t, w)
	require.Len(t, arts, 1)
	assert.Equal(t, "coco", arts[0].Format)

	w = ts.do(t, http.MethodGet, "/artifact?id="+arts[0].ArtifactID)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[export.COCODocument](t, w)
	assert.Len(t, doc.Images, 2)
}

func TestDatabaseEndpointsWithoutDB(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/recordings").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/artifacts?recording_id=x").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/artifact?id=x").Code)
}

func TestArtifactQueryValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/artifacts").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/artifact").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/artifact?id=missing").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	cases := []struct{ method, target string }{
		{http.MethodPost, "/status"},
		{http.MethodGet, "/session/start"},
		{http.MethodGet, "/session/stop"},
		{http.MethodGet, "/session/reset"},
		{http.MethodGet, "/session/capture"},
		{http.MethodPost, "/export/coco"},
		{http.MethodPost, "/export/yolo"},
		{http.MethodPost, "/export/csv"},
		{http.MethodDelete, "/export/report"},
	}
	for _, tc := range cases {
		w := ts.do(t, tc.method, tc.target)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.target)
	}
}
