package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelopes() Envelopes {
	var env Envelopes
	for j := range env {
		env[j] = JointEnvelope{
			AngleMin:    -170,
			AngleMax:    170,
			VelocityMax: 100,
			AccelMax:    500,
		}
	}
	return env
}

func testConditioner() *Conditioner {
	return NewConditioner(ConditionerConfig{
		HistorySize:             15,
		WindowSize:              8,
		Alpha:                   0.2,
		VelocityOutlierFraction: 0.5,
		AccelOutlierFraction:    0.5,
		Envelopes:               testEnvelopes(),
	})
}

// ramp pushes n samples where joint 0 increases by stepDeg per tick.
func ramp(c *Conditioner, start float64, stepDeg float64, dt float64, n int) {
	angle := start
	for i := 0; i < n; i++ {
		angle += stepDeg
		c.Push(Sample{Angles: [NumJoints]float64{angle}, DT: dt})
	}
}

func TestConditioner_NoEstimateBeforeTwoSamples(t *testing.T) {
	c := testConditioner()
	c.Push(Sample{Angles: [NumJoints]float64{10}, DT: 0.05})
	if _, ok := c.Velocities(); ok {
		t.Fatal("velocity estimate must require at least 2 samples")
	}
	if _, ok := c.Accelerations(); ok {
		t.Fatal("acceleration estimate must require at least 3 samples")
	}
}

func TestConditioner_RampConvergesToSlope(t *testing.T) {
	c := testConditioner()
	// 1°/tick at 50 ms: true velocity 20°/s. After the window fills every
	// raw sample equals the slope, so the windowed mean is exact.
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	ramp(c, 0, 1.0, 0.05, 12)

	vel, ok := c.Velocities()
	require.True(t, ok)
	assert.InDelta(t, 20.0, vel[0], 1e-9)

	// Constant velocity: acceleration settles to zero.
	acc, ok := c.Accelerations()
	require.True(t, ok)
	assert.InDelta(t, 0.0, acc[0], 1e-6)
}

func TestConditioner_BootstrapUsesEMA(t *testing.T) {
	c := testConditioner()
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	c.Push(Sample{Angles: [NumJoints]float64{1}, DT: 0.05})

	// One raw velocity of 20°/s into a zero-initialised EMA with α=0.2.
	vel, ok := c.Velocities()
	require.True(t, ok)
	assert.InDelta(t, 4.0, vel[0], 1e-9)
}

func TestConditioner_SpikeClamped(t *testing.T) {
	c := testConditioner()
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	ramp(c, 0, 1.0, 0.05, 12) // settled at 20°/s

	before, _ := c.Velocities()

	// A single-sample spike: +50° in one 50 ms tick is a raw velocity of
	// 1000°/s. The clamp caps the output step at VelocityMax × fraction =
	// 100 × 0.5 = 50°/s.
	last := 12.0 + 50.0
	c.Push(Sample{Angles: [NumJoints]float64{last}, DT: 0.05})

	after, ok := c.Velocities()
	require.True(t, ok)
	maxStep := 100.0 * 0.5
	assert.LessOrEqual(t, math.Abs(after[0]-before[0]), maxStep+1e-9,
		"spike must not move the smoothed output more than the outlier cap")
	// With the pre-spike value well inside bounds, the clamped output
	// cannot by itself exceed the 100°/s limit.
	assert.LessOrEqual(t, math.Abs(after[0]), 100.0)
}

func TestConditioner_ZeroDTSkipsUpdate(t *testing.T) {
	c := testConditioner()
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	ramp(c, 0, 1.0, 0.05, 12)
	before, _ := c.Velocities()

	// Division-by-zero policy: skip the update, retain the last value.
	c.Push(Sample{Angles: [NumJoints]float64{90}, DT: 0})
	after, ok := c.Velocities()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestConditioner_HistoryBounded(t *testing.T) {
	c := NewConditioner(ConditionerConfig{HistorySize: 5, Envelopes: testEnvelopes()})
	for i := 0; i < 20; i++ {
		c.Push(Sample{Angles: [NumJoints]float64{float64(i)}, DT: 0.05})
	}
	assert.Equal(t, 5, c.HistoryLen())
}

func TestConditioner_ResetClearsState(t *testing.T) {
	c := testConditioner()
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	ramp(c, 0, 1.0, 0.05, 12)

	c.Reset()
	assert.Equal(t, 0, c.HistoryLen())
	if _, ok := c.Velocities(); ok {
		t.Fatal("velocity estimate must be cleared by Reset")
	}

	// Rebuilds lazily from the next samples.
	c.Push(Sample{Angles: [NumJoints]float64{0}, DT: 0.05})
	c.Push(Sample{Angles: [NumJoints]float64{1}, DT: 0.05})
	if _, ok := c.Velocities(); !ok {
		t.Fatal("velocity estimate must rebuild after reset")
	}
}

func TestConditionerConfig_SanitizeDefaults(t *testing.T) {
	c := NewConditioner(ConditionerConfig{})
	assert.Equal(t, 15, c.cfg.HistorySize)
	assert.Equal(t, 8, c.cfg.WindowSize)
	assert.InDelta(t, 0.2, c.cfg.Alpha, 1e-12)
	assert.InDelta(t, 0.5, c.cfg.VelocityOutlierFraction, 1e-12)
	assert.InDelta(t, 0.5, c.cfg.AccelOutlierFraction, 1e-12)
}
