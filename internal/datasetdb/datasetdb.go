// Package datasetdb persists completed recordings and their export
// artifacts in a local sqlite database. This is host-side storage: the
// capture core itself never touches it.
package datasetdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the sqlite handle for the dataset store.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the dataset database at path and applies
// the embedded schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dataset db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply dataset schema: %w", err)
	}
	return &DB{db}, nil
}

// RecordingRow is one persisted recording.
type RecordingRow struct {
	RecordingID string `json:"recording_id"`
	SceneName   string `json:"scene_name"`
	FrameCount  int    `json:"frame_count"`
	StartedAtNs int64  `json:"started_at_ns"`
	StoppedAtNs *int64 `json:"stopped_at_ns,omitempty"`
	CreatedAtNs int64  `json:"created_at_ns"`
}

// ArtifactRow is one persisted export artifact. Payload is omitted by list
// queries; use GetArtifactPayload to fetch the bytes.
type ArtifactRow struct {
	ArtifactID  string `json:"artifact_id"`
	RecordingID string `json:"recording_id"`
	Format      string `json:"format"`
	FileName    string `json:"file_name"`
	ByteSize    int    `json:"byte_size"`
	CreatedAtNs int64  `json:"created_at_ns"`
}

// InsertRecording persists a new recording. If RecordingID is empty a UUID
// is generated and written back to rec.
func (db *DB) InsertRecording(rec *RecordingRow) error {
	if rec.RecordingID == "" {
		rec.RecordingID = uuid.New().String()
	}
	if rec.CreatedAtNs == 0 {
		rec.CreatedAtNs = time.Now().UnixNano()
	}

	_, err := db.Exec(`
		INSERT INTO recordings (recording_id, scene_name, frame_count, started_at_ns, stopped_at_ns, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RecordingID, rec.SceneName, rec.FrameCount, rec.StartedAtNs, nullInt64(rec.StoppedAtNs), rec.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// FinishRecording records the stop time and final frame count.
func (db *DB) FinishRecording(recordingID string, stoppedAtNs int64, frameCount int) error {
	res, err := db.Exec(`
		UPDATE recordings SET stopped_at_ns = ?, frame_count = ? WHERE recording_id = ?`,
		stoppedAtNs, frameCount, recordingID,
	)
	if err != nil {
		return fmt.Errorf("finish recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish recording: no recording with id %s", recordingID)
	}
	return nil
}

// ListRecordings returns recordings newest first.
func (db *DB) ListRecordings(limit int) ([]RecordingRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT recording_id, scene_name, frame_count, started_at_ns, stopped_at_ns, created_at_ns
		FROM recordings ORDER BY created_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingRow
	for rows.Next() {
		var r RecordingRow
		var stopped sql.NullInt64
		if err := rows.Scan(&r.RecordingID, &r.SceneName, &r.FrameCount, &r.StartedAtNs, &stopped, &r.CreatedAtNs); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		if stopped.Valid {
			r.StoppedAtNs = &stopped.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertArtifact persists an export payload for a recording.
func (db *DB) InsertArtifact(recordingID, format, fileName string, payload []byte) (*ArtifactRow, error) {
	art := &ArtifactRow{
		ArtifactID:  uuid.New().String(),
		RecordingID: recordingID,
		Format:      format,
		FileName:    fileName,
		ByteSize:    len(payload),
		CreatedAtNs: time.Now().UnixNano(),
	}
	_, err := db.Exec(`
		INSERT INTO artifacts (artifact_id, recording_id, format, file_name, byte_size, payload, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		art.ArtifactID, art.RecordingID, art.Format, art.FileName, art.ByteSize, payload, art.CreatedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return art, nil
}

// ListArtifacts returns artifact metadata for a recording, oldest first.
func (db *DB) ListArtifacts(recordingID string) ([]ArtifactRow, error) {
	rows, err := db.Query(`
		SELECT artifact_id, recording_id, format, file_name, byte_size, created_at_ns
		FROM artifacts WHERE recording_id = ? ORDER BY created_at_ns ASC`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRow
	for rows.Next() {
		var a ArtifactRow
		if err := rows.Scan(&a.ArtifactID, &a.RecordingID, &a.Format, &a.FileName, &a.ByteSize, &a.CreatedAtNs); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetArtifactPayload returns the stored bytes for an artifact.
func (db *DB) GetArtifactPayload(artifactID string) ([]byte, error) {
	var payload []byte
	err := db.QueryRow(`SELECT payload FROM artifacts WHERE artifact_id = ?`, artifactID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no artifact with id %s", artifactID)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact payload: %w", err)
	}
	return payload, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
