// Command armmon runs the manipulator safety monitor against a recorded
// joint telemetry stream (JSONL replay) or a built-in synthetic motion,
// printing safety events and optionally persisting them to SQLite.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
	"github.com/banshee-data/arm.monitor/internal/arm/pipeline"
	storage "github.com/banshee-data/arm.monitor/internal/arm/storage/sqlite"
	"github.com/banshee-data/arm.monitor/internal/config"
	"github.com/banshee-data/arm.monitor/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to tuning config JSON (defaults apply when empty)")
	replayPath = flag.String("replay", "", "JSONL joint sample file to replay (one {\"angles\":[...],\"dt\":s} per line)")
	dbPath     = flag.String("db", "", "Optional SQLite file to persist safety events")
	rate       = flag.Duration("rate", 50*time.Millisecond, "Synthetic telemetry interval (ignored for replay)")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 = run until interrupted)")
	stride     = flag.Int("stride", 0, "Override the dynamics update stride (0 = use config)")
	verbose    = flag.Bool("v", false, "Enable diagnostic logging")
)

// replaySample is one line of a replay file.
type replaySample struct {
	Angles []float64 `json:"angles"`
	DT     float64   `json:"dt"`
}

// syntheticRobot sweeps each joint sinusoidally at a different period so
// replay-free runs still cross singular configurations.
type syntheticRobot struct {
	start time.Time
}

func (r *syntheticRobot) JointConfiguration() (arm.JointConfiguration, error) {
	elapsed := time.Since(r.start).Seconds()
	var q arm.JointConfiguration
	for j := range q {
		period := 8.0 + 3.0*float64(j)
		q[j] = 120 * math.Sin(2*math.Pi*elapsed/period)
	}
	return q, nil
}

func (r *syntheticRobot) LinkParameters() ([]kinematics.DHLink, error) {
	return nil, fmt.Errorf("synthetic robot has no kinematic asset")
}

func main() {
	flag.Parse()

	writers := arm.LogWriters{Ops: os.Stderr}
	if *verbose {
		writers.Diag = os.Stderr
	}
	arm.SetLogWriters(writers)
	arm.Opsf("armmon %s", version.String())

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	} else if loaded, err := config.LoadTuningConfig(config.DefaultConfigPath); err == nil {
		log.Printf("Using tuning defaults from %s", config.DefaultConfigPath)
		cfg = loaded
	}
	if *stride > 0 {
		cfg.UpdateStride = stride
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	monitor := pipeline.MonitorFromTuning(cfg, nil, arm.NewEventBus())
	go monitor.Run(ctx)

	var wg sync.WaitGroup

	// Console sink.
	events, cancelEvents := monitor.Bus().Subscribe(128)
	defer cancelEvents()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				fmt.Printf("%s [%s] %s: %s\n",
					ev.Timestamp.Format(time.RFC3339Nano), ev.Severity, ev.Monitor, ev.Message)
			}
		}
	}()

	// Optional SQLite sink.
	if *dbPath != "" {
		db, err := sql.Open("sqlite", *dbPath)
		if err != nil {
			log.Fatalf("open event database: %v", err)
		}
		defer db.Close()
		store, err := storage.NewEventStore(db)
		if err != nil {
			log.Fatalf("init event store: %v", err)
		}
		storeEvents, cancelStore := monitor.Bus().Subscribe(256)
		defer cancelStore()
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Run(ctx, storeEvents)
		}()
		log.Printf("Persisting safety events to %s", *dbPath)
	}

	if *replayPath != "" {
		if err := replay(ctx, *replayPath, monitor); err != nil {
			log.Fatalf("replay: %v", err)
		}
		// Let the processing goroutine drain before shutdown.
		time.Sleep(200 * time.Millisecond)
		cancel()
	} else {
		log.Printf("No replay file; running synthetic motion at %v", *rate)
		poller := pipeline.NewPoller(&syntheticRobot{start: time.Now()}, monitor, *rate)
		poller.Run(ctx)
	}

	wg.Wait()
	log.Printf("Processed %d ticks, dropped %d samples, %d events dropped by slow subscribers",
		monitor.TickCount(), monitor.DropCount(), monitor.Bus().Dropped())
}

// replay feeds a JSONL sample file through the monitor, pacing by each
// sample's recorded dt.
func replay(ctx context.Context, path string, monitor *pipeline.Monitor) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var s replaySample
		if err := json.Unmarshal(text, &s); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(s.Angles) != arm.NumJoints {
			return fmt.Errorf("line %d: %d angles, want %d", line, len(s.Angles), arm.NumJoints)
		}
		var joints arm.JointConfiguration
		copy(joints[:], s.Angles)
		monitor.Ingest(arm.JointSample{Joints: joints, DT: s.DT, Time: time.Now()})

		if s.DT > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(s.DT * float64(time.Second))):
			}
		}
	}
	return scanner.Err()
}
