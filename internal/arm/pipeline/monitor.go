// Package pipeline is the composition root of the safety monitor: it
// wires the kinematic singularity classifier and the joint dynamics
// monitor onto one ingest queue and publishes their transitions as
// safety events.
//
// It imports from the layer packages (kinematics, singularity, dynamics)
// and from the shared arm package; none of those import pipeline.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/dynamics"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
	"github.com/banshee-data/arm.monitor/internal/arm/singularity"
)

// RobotSource is the narrow interface a host shim implements to supply
// the robot's geometry and telemetry. The core never depends on a
// specific controller API.
type RobotSource interface {
	// JointConfiguration returns the current joint angles in degrees.
	JointConfiguration() (arm.JointConfiguration, error)
	// LinkParameters returns the robot's DH table, base to tool.
	LinkParameters() ([]kinematics.DHLink, error)
}

// LimitSource supplies rated joint envelopes from an external
// kinematic-limits asset. The monitor applies a safety deration factor
// to the velocity and acceleration bounds it returns.
type LimitSource interface {
	JointEnvelopes() (dynamics.Envelopes, error)
}

// MonitorConfig holds the assembled dependencies of a Monitor.
type MonitorConfig struct {
	// Model may be nil; singularity checks disable themselves.
	Model *kinematics.Model

	Classifier  singularity.Config
	Conditioner dynamics.ConditionerConfig
	Envelopes   dynamics.Envelopes

	// UpdateStride gates the dynamics path: history append, derivative
	// estimation, smoothing, and violation checks run only every Nth
	// tick, skipped entirely otherwise. Singularity classification runs
	// every tick. Minimum 1.
	UpdateStride int

	// QueueSize bounds the ingest queue between the telemetry thread and
	// the processing goroutine. Default 256.
	QueueSize int

	// Bus receives all safety events. A nil bus gets replaced with a
	// fresh one.
	Bus *arm.EventBus
}

// Monitor evaluates the joint telemetry stream against kinematic and
// dynamic safety envelopes. Raw sample ingestion is decoupled from
// processing by a single-producer/single-consumer queue; all state
// mutation happens on the processing side.
type Monitor struct {
	cfg        MonitorConfig
	bus        *arm.EventBus
	classifier *singularity.Classifier
	cond       *dynamics.Conditioner
	limits     *dynamics.LimitMonitor

	samples chan arm.JointSample
	active  atomic.Bool

	// mu serialises Process against Activate/Deactivate so deactivation
	// is atomic with respect to an in-flight tick.
	mu sync.Mutex

	tick    uint64
	drops   atomic.Uint64
	ticks   atomic.Uint64
	started atomic.Bool
}

// NewMonitor assembles a monitor from its configuration. The monitor
// starts active; call Run to begin draining the ingest queue, or drive
// Process directly for synchronous hosts.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.UpdateStride < 1 {
		cfg.UpdateStride = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	bus := cfg.Bus
	if bus == nil {
		bus = arm.NewEventBus()
	}

	condCfg := cfg.Conditioner
	condCfg.Envelopes = cfg.Envelopes

	m := &Monitor{
		cfg:        cfg,
		bus:        bus,
		classifier: singularity.NewClassifier(cfg.Model, cfg.Classifier),
		cond:       dynamics.NewConditioner(condCfg),
		limits:     dynamics.NewLimitMonitor(cfg.Envelopes),
		samples:    make(chan arm.JointSample, cfg.QueueSize),
	}
	m.active.Store(true)
	return m
}

// Bus returns the event bus events are published to.
func (m *Monitor) Bus() *arm.EventBus { return m.bus }

// Ingest enqueues a telemetry sample without blocking. Samples arriving
// faster than the processing goroutine drains them are dropped and
// counted; a deactivated monitor drops everything.
func (m *Monitor) Ingest(s arm.JointSample) {
	if !m.active.Load() {
		m.drops.Add(1)
		return
	}
	select {
	case m.samples <- s:
	default:
		m.drops.Add(1)
	}
}

// Run drains the ingest queue on the calling goroutine until the context
// is cancelled. All kinematic, signal, and limit computation happens
// here, so per-joint state needs no locking against the telemetry
// thread.
func (m *Monitor) Run(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		arm.Opsf("monitor Run called twice, ignoring second call")
		return
	}
	arm.Diagf("monitor processing loop started (stride=%d queue=%d)", m.cfg.UpdateStride, m.cfg.QueueSize)
	for {
		select {
		case <-ctx.Done():
			arm.Diagf("monitor processing loop stopped: %v", ctx.Err())
			return
		case s := <-m.samples:
			m.Process(s)
		}
	}
}

// Process runs one telemetry tick synchronously. Any unexpected fault is
// caught at the tick boundary, logged, and processing resumes on the
// next tick with state unchanged; a single bad sample never halts
// monitoring.
func (m *Monitor) Process(s arm.JointSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			arm.Opsf("tick processing fault (state unchanged, resuming): %v", r)
		}
	}()

	m.tick++
	m.ticks.Add(1)
	arm.Tracef("tick %d: joints=%v dt=%.4f", m.tick, s.Joints, s.DT)

	m.evaluateSingularities(s)

	// Dynamics runs every Nth tick only; skipped ticks do no partial
	// work, decoupling CPU cost from the raw telemetry rate.
	if m.tick%uint64(m.cfg.UpdateStride) == 0 {
		m.evaluateDynamics(s)
	}
}

func (m *Monitor) evaluateSingularities(s arm.JointSample) {
	for _, tr := range m.classifier.Evaluate(s.Joints[:]) {
		severity := arm.SeverityWarning
		verb := "entered"
		if !tr.Entering {
			severity = arm.SeverityResolved
			verb = "left"
		}
		msg := fmt.Sprintf("%s singularity %s (metric %.3f, threshold %.3f, manipulability %.6f)",
			tr.Type, verb, tr.Metric, tr.Threshold, tr.Manipulability)
		m.bus.Publish(arm.NewSafetyEvent(arm.MonitorSingularity, severity, msg, s.Joints, &arm.SingularityInfo{
			Type:           tr.Type.String(),
			Metric:         tr.Metric,
			Threshold:      tr.Threshold,
			Manipulability: tr.Manipulability,
		}))
	}
}

func (m *Monitor) evaluateDynamics(s arm.JointSample) {
	m.cond.Push(dynamics.Sample{Angles: s.Joints, DT: s.DT})
	vel, velOK := m.cond.Velocities()
	acc, accOK := m.cond.Accelerations()

	for _, v := range m.limits.Check(s.Joints, vel, velOK, acc, accOK) {
		severity := violationSeverity(v)
		var msg string
		if v.Entering {
			msg = fmt.Sprintf("joint %d %s %.3f exceeds limit %.3f", v.Joint, v.Quantity, v.Value, v.Limit)
		} else {
			msg = fmt.Sprintf("joint %d %s back within limit %.3f", v.Joint, v.Quantity, v.Limit)
		}
		m.bus.Publish(arm.NewSafetyEvent(arm.MonitorLimits, severity, msg, s.Joints, &arm.DynamicsInfo{
			Joint:    v.Joint,
			Quantity: v.Quantity.String(),
			Value:    v.Value,
			Limit:    v.Limit,
		}))
	}
}

// violationSeverity maps a violation to its event severity: a static
// function of quantity type, independent of magnitude.
func violationSeverity(v dynamics.Violation) arm.Severity {
	if !v.Entering {
		return arm.SeverityResolved
	}
	switch v.Quantity {
	case dynamics.QuantityVelocity:
		return arm.SeverityWarning
	case dynamics.QuantityAcceleration:
		return arm.SeverityCritical
	default:
		return arm.SeverityInfo
	}
}

// Deactivate stops processing and clears all per-joint state: history
// buffers emptied, EMA accumulators zeroed, sticky flags reset. Atomic
// with respect to an in-flight tick; no events are produced until
// reactivation.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active.Swap(false) {
		return
	}
	m.cond.Reset()
	m.limits.Reset()
	m.classifier.Reset()
	m.tick = 0
	arm.Opsf("monitor deactivated, per-joint state cleared")
}

// Activate resumes processing. State rebuilds lazily from the next
// incoming sample, so a still-violating joint re-raises its entering
// event.
func (m *Monitor) Activate() {
	if !m.active.Swap(true) {
		arm.Opsf("monitor activated")
	}
}

// Active reports whether the monitor is processing samples.
func (m *Monitor) Active() bool { return m.active.Load() }

// DropCount returns the number of samples dropped at the ingest
// boundary.
func (m *Monitor) DropCount() uint64 { return m.drops.Load() }

// TickCount returns the number of samples processed.
func (m *Monitor) TickCount() uint64 { return m.ticks.Load() }
