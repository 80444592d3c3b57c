package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/dynamics"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
	"github.com/banshee-data/arm.monitor/internal/arm/singularity"
)

// testModel is a planar 6R chain with unit links: hand-checkable
// geometry, wrist and elbow singular at the zero configuration.
func testModel(t *testing.T) *kinematics.Model {
	t.Helper()
	links := make([]kinematics.DHLink, 6)
	for i := range links {
		links[i] = kinematics.DHLink{A: 1.0}
	}
	m, err := kinematics.NewModel(links)
	require.NoError(t, err)
	return m
}

func testEnvelopes() dynamics.Envelopes {
	var env dynamics.Envelopes
	for j := range env {
		env[j] = dynamics.JointEnvelope{
			AngleMin:    -170,
			AngleMax:    170,
			VelocityMax: 1e9, // out of the way unless a test lowers it
			AccelMax:    1e9,
		}
	}
	return env
}

func newTestMonitor(t *testing.T, model *kinematics.Model, env dynamics.Envelopes) (*Monitor, <-chan arm.SafetyEvent) {
	t.Helper()
	m := NewMonitor(MonitorConfig{
		Model:       model,
		Classifier:  singularity.DefaultConfig(),
		Conditioner: dynamics.ConditionerConfig{},
		Envelopes:   env,
	})
	events, cancel := m.Bus().Subscribe(128)
	t.Cleanup(cancel)
	return m, events
}

func drain(events <-chan arm.SafetyEvent) []arm.SafetyEvent {
	var out []arm.SafetyEvent
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestMonitor_AngleRampScenario(t *testing.T) {
	// Joint 1 ramps linearly 0°..200° over 20 ticks at Δt=0.05s with a
	// 170° max: exactly one angle-entering event around the crossing
	// tick and zero resolved events, since it never returns below 170.
	m, events := newTestMonitor(t, nil, testEnvelopes())

	for i := 1; i <= 20; i++ {
		angle := 200.0 * float64(i) / 20.0
		m.Process(arm.JointSample{Joints: arm.JointConfiguration{angle}, DT: 0.05})
	}

	var entering, resolved int
	for _, ev := range drain(events) {
		require.Equal(t, arm.MonitorLimits, ev.Monitor)
		info, ok := ev.Payload.(*arm.DynamicsInfo)
		require.True(t, ok, "limit event payload must be DynamicsInfo")
		require.Equal(t, "angle", info.Quantity)
		require.Equal(t, 0, info.Joint)
		if ev.Severity == arm.SeverityResolved {
			resolved++
		} else {
			assert.Equal(t, arm.SeverityInfo, ev.Severity)
			entering++
		}
	}
	assert.Equal(t, 1, entering, "exactly one angle-entering event")
	assert.Equal(t, 0, resolved, "no resolved events: the joint never returns in bounds")
}

func TestMonitor_SingularityEnterResolve(t *testing.T) {
	m, events := newTestMonitor(t, testModel(t), testEnvelopes())

	// Zero configuration: wrist and elbow singular, shoulder not.
	m.Process(arm.JointSample{Joints: arm.JointConfiguration{}, DT: 0.05})
	first := drain(events)
	require.Len(t, first, 2)

	types := map[string]arm.Severity{}
	for _, ev := range first {
		require.Equal(t, arm.MonitorSingularity, ev.Monitor)
		info, ok := ev.Payload.(*arm.SingularityInfo)
		require.True(t, ok)
		types[info.Type] = ev.Severity
		assert.GreaterOrEqual(t, info.Manipulability, 0.0)
	}
	want := map[string]arm.Severity{
		"wrist": arm.SeverityWarning,
		"elbow": arm.SeverityWarning,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("entering events mismatch (-want +got):\n%s", diff)
	}

	// Condition persists across ticks: no event storm.
	for i := 0; i < 25; i++ {
		m.Process(arm.JointSample{Joints: arm.JointConfiguration{}, DT: 0.05})
	}
	require.Empty(t, drain(events), "sticky singularities must not re-fire")

	// Bending joints 3..5 resolves both.
	bent := arm.JointConfiguration{0, 0, 90, 45, 45, 0}
	m.Process(arm.JointSample{Joints: bent, DT: 0.05})
	resolved := drain(events)
	require.Len(t, resolved, 2)
	for _, ev := range resolved {
		assert.Equal(t, arm.SeverityResolved, ev.Severity)
	}
}

func TestMonitor_DeactivateReactivate(t *testing.T) {
	m, events := newTestMonitor(t, nil, testEnvelopes())

	violating := arm.JointConfiguration{175}
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	require.Len(t, drain(events), 1, "initial entering event")

	m.Deactivate()
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	require.Empty(t, drain(events), "no events while deactivated")

	// Reactivation clears sticky flags: the first post-reactivation tick
	// re-raises the entering event even though the physical state never
	// left violation.
	m.Activate()
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	evs := drain(events)
	require.Len(t, evs, 1)
	assert.NotEqual(t, arm.SeverityResolved, evs[0].Severity)
}

func TestMonitor_UpdateStrideGatesDynamics(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		Envelopes:    testEnvelopes(),
		UpdateStride: 3,
	})
	events, cancel := m.Bus().Subscribe(16)
	defer cancel()

	// Two violating ticks are skipped by the stride; the third processes
	// and raises the event.
	violating := arm.JointConfiguration{175}
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	require.Empty(t, drain(events))
	m.Process(arm.JointSample{Joints: violating, DT: 0.05})
	require.Len(t, drain(events), 1)
}

func TestMonitor_VelocityViolationSeverity(t *testing.T) {
	env := testEnvelopes()
	for j := range env {
		env[j].VelocityMax = 100
	}
	m, events := newTestMonitor(t, nil, env)

	// 20°/tick at 50 ms is 400°/s raw; the smoothed estimate climbs past
	// 100°/s within a few ticks (outlier cap 50°/s per tick).
	angle := 0.0
	for i := 0; i < 12; i++ {
		angle += 20
		m.Process(arm.JointSample{Joints: arm.JointConfiguration{angle}, DT: 0.05})
	}

	var sawVelocityWarning bool
	for _, ev := range drain(events) {
		info, ok := ev.Payload.(*arm.DynamicsInfo)
		if !ok || info.Quantity != "velocity" {
			continue
		}
		if ev.Severity == arm.SeverityWarning {
			sawVelocityWarning = true
		}
	}
	assert.True(t, sawVelocityWarning, "sustained over-speed must raise a velocity Warning")
}

func TestMonitor_SpikeDoesNotRaiseVelocityWarning(t *testing.T) {
	env := testEnvelopes()
	for j := range env {
		env[j].VelocityMax = 100
	}
	m, events := newTestMonitor(t, nil, env)

	// Settle at 20°/s, then one wild sample. The outlier clamp caps the
	// smoothed step at 100 × 0.5 = 50°/s, so the estimate stays inside
	// the 100°/s envelope and no velocity Warning fires.
	angle := 0.0
	for i := 0; i < 12; i++ {
		angle += 1
		m.Process(arm.JointSample{Joints: arm.JointConfiguration{angle}, DT: 0.05})
	}
	drain(events)

	m.Process(arm.JointSample{Joints: arm.JointConfiguration{angle + 50}, DT: 0.05})
	for _, ev := range drain(events) {
		if info, ok := ev.Payload.(*arm.DynamicsInfo); ok && info.Quantity == "velocity" && ev.Severity != arm.SeverityResolved {
			t.Fatalf("single clamped spike raised a velocity event: %+v", ev)
		}
	}
}

func TestMonitor_PathologicalSamplesNeverPanic(t *testing.T) {
	// A single bad sample must never halt monitoring: Process recovers
	// at the tick boundary and resumes.
	m, _ := newTestMonitor(t, testModel(t), testEnvelopes())

	samples := []arm.JointSample{
		{Joints: arm.JointConfiguration{0, 0, 0, 0, 0, 0}, DT: 0.05},
		{Joints: arm.JointConfiguration{1e300, -1e300, 0, 0, 0, 0}, DT: 1e-300},
		{Joints: arm.JointConfiguration{}, DT: -1},
		{Joints: arm.JointConfiguration{90, 90, 90, 90, 90, 90}, DT: 0},
	}
	for _, s := range samples {
		assert.NotPanics(t, func() { m.Process(s) })
	}
}

func TestMonitor_IngestRunDrains(t *testing.T) {
	m, events := newTestMonitor(t, nil, testEnvelopes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Ingest(arm.JointSample{Joints: arm.JointConfiguration{175}, DT: 0.05})

	select {
	case ev := <-events:
		assert.Equal(t, arm.MonitorLimits, ev.Monitor)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered through ingest queue")
	}
	assert.Equal(t, uint64(0), m.DropCount())
}

func TestMonitor_IngestDropsWhenDeactivated(t *testing.T) {
	m, _ := newTestMonitor(t, nil, testEnvelopes())
	m.Deactivate()
	m.Ingest(arm.JointSample{Joints: arm.JointConfiguration{}, DT: 0.05})
	assert.Equal(t, uint64(1), m.DropCount())
}

func TestMonitor_IngestDropsWhenQueueFull(t *testing.T) {
	m := NewMonitor(MonitorConfig{Envelopes: testEnvelopes(), QueueSize: 2})
	// Nothing draining the queue.
	for i := 0; i < 5; i++ {
		m.Ingest(arm.JointSample{DT: 0.05})
	}
	assert.Equal(t, uint64(3), m.DropCount())
}
