// SnapLock ground-truth capture server: drives a simulated physics scene,
// samples per-object pose into recorded frames, and serves dataset exports
// (COCO, YOLO, CSV, report) over HTTP. In dataset mode it instead runs a
// fixed-length capture and persists every export to the dataset database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gretchenboria/snaplock/internal/capture"
	"github.com/gretchenboria/snaplock/internal/config"
	"github.com/gretchenboria/snaplock/internal/datasetdb"
	"github.com/gretchenboria/snaplock/internal/export"
	"github.com/gretchenboria/snaplock/internal/scene"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "snaplock.db", "Dataset database path (empty to disable persistence)")
	sceneFlag   = flag.String("scene", "drone", "Scene preset name or path to a scene .yaml file")
	configPath  = flag.String("config", "", "Optional capture tuning JSON file")
	datasetMode = flag.Bool("dataset", false, "Run a fixed-length capture, persist all exports, and exit")
)

func loadScene(name string) (*scene.Spec, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return scene.Load(name)
	}
	return scene.Preset(name)
}

func main() {
	flag.Parse()

	cfg := &config.CaptureConfig{}
	if *configPath != "" {
		loaded, err := config.LoadCaptureConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	sceneName := *sceneFlag
	if cfg.ScenePreset != nil {
		sceneName = *cfg.ScenePreset
	}
	spec, err := loadScene(sceneName)
	if err != nil {
		log.Fatalf("failed to load scene: %v", err)
	}

	sim, err := scene.NewSimulator(spec)
	if err != nil {
		log.Fatalf("failed to build simulator: %v", err)
	}

	sampler := capture.NewFrameSampler(sim)
	sampler.SetClock(sim.Time)
	session := capture.NewRecordingSession(sampler)

	dbPath := *dbFile
	if cfg.DatabasePath != nil {
		dbPath = *cfg.DatabasePath
	}
	var db *datasetdb.DB
	if dbPath != "" {
		db, err = datasetdb.Open(dbPath)
		if err != nil {
			log.Fatalf("failed to open dataset database: %v", err)
		}
		defer db.Close()
	}

	if *datasetMode {
		if err := runDatasetCapture(session, sim, db, cfg); err != nil {
			log.Fatalf("dataset capture failed: %v", err)
		}
		return
	}

	srv := NewServer(session, sim, db, cfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Capture loop: step the simulation and tick the session once per
	// interval. The host enforces the recording cap; the session itself
	// is a pure append.
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := cfg.TickIntervalOrDefault()
		maxFrames := cfg.MaxFramesOrDefault()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sim.Step(interval.Seconds())
				if session.State() == capture.StateRecording {
					if session.FrameCount() >= maxFrames {
						log.Printf("recording reached host cap of %d frames; stopping", maxFrames)
						session.Stop()
						continue
					}
					session.Tick()
				}
			case <-ctx.Done():
				log.Print("capture loop terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", srv.ServeMux()))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			log.Printf("listening on %s (scene %q)", *listen, sim.Name())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

// runDatasetCapture performs one timer-free batch capture: start, tick a
// fixed number of simulation steps, stop, then generate and persist all four
// export formats.
func runDatasetCapture(session *capture.RecordingSession, sim *scene.Simulator, db *datasetdb.DB, cfg *config.CaptureConfig) error {
	if db == nil {
		return fmt.Errorf("dataset mode requires a dataset database (-db)")
	}

	ticks := cfg.DatasetTicksOrDefault()
	dt := cfg.TickIntervalOrDefault().Seconds()

	row := &datasetdb.RecordingRow{SceneName: sim.Name(), StartedAtNs: time.Now().UnixNano()}
	if err := db.InsertRecording(row); err != nil {
		return err
	}

	if err := session.Start(); err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		sim.Step(dt)
		session.Tick()
	}
	session.Stop()
	if err := db.FinishRecording(row.RecordingID, time.Now().UnixNano(), session.FrameCount()); err != nil {
		return err
	}

	snap := session.Snapshot()
	log.Printf("captured %d frames of scene %q", len(snap.Frames), sim.Name())

	cocoPayload, err := export.COCO(snap)
	if err != nil {
		return fmt.Errorf("coco export: %w", err)
	}
	if _, err := db.InsertArtifact(row.RecordingID, "coco", "annotations.json", cocoPayload); err != nil {
		return err
	}

	bundle := export.YOLO(snap)
	if _, err := db.InsertArtifact(row.RecordingID, "yolo", export.ClassFileName, []byte(bundle.ClassFile)); err != nil {
		return err
	}
	for _, name := range bundle.LabelOrder {
		if _, err := db.InsertArtifact(row.RecordingID, "yolo", name, []byte(bundle.LabelFiles[name])); err != nil {
			return err
		}
	}

	csvPayload, err := export.CSV(snap)
	if err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	if _, err := db.InsertArtifact(row.RecordingID, "csv", "ground_truth.csv", csvPayload); err != nil {
		return err
	}

	reportPayload, err := export.Report(snap)
	if err != nil {
		return fmt.Errorf("report export: %w", err)
	}
	if _, err := db.InsertArtifact(row.RecordingID, "report", "report.html", reportPayload); err != nil {
		return err
	}

	log.Printf("dataset capture complete: recording %s with %d label files", row.RecordingID, len(bundle.LabelOrder))
	return nil
}
