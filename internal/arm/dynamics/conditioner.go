// Package dynamics estimates per-joint velocity and acceleration from
// noisy discrete-time angle samples and checks them, together with the
// raw angles, against per-joint safety envelopes with sticky hysteresis
// state.
package dynamics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NumJoints is the number of monitored joints.
const NumJoints = 6

// Sample is one time-stamped joint-angle observation: six angles in
// degrees plus the time delta in seconds since the previous sample.
type Sample struct {
	Angles [NumJoints]float64
	DT     float64
}

// ConditionerConfig holds the smoothing tunables. Zero values fall back
// to the documented defaults via sanitize.
type ConditionerConfig struct {
	// HistorySize bounds the raw sample FIFO. Default 15, minimum 3.
	HistorySize int

	// WindowSize bounds the per-quantity moving-average windows.
	// Default 8, valid range 3..20.
	WindowSize int

	// Alpha is the EMA coefficient in (0,1]. Default 0.2.
	Alpha float64

	// VelocityOutlierFraction and AccelOutlierFraction scale each joint's
	// limit into the maximum step the smoothed output may take between
	// ticks. Defaults 0.5.
	VelocityOutlierFraction float64
	AccelOutlierFraction    float64

	// Envelopes supplies the per-joint limit magnitudes the outlier caps
	// are keyed to.
	Envelopes Envelopes
}

func (c ConditionerConfig) sanitize() ConditionerConfig {
	if c.HistorySize < 3 {
		c.HistorySize = 15
	}
	if c.WindowSize < 3 || c.WindowSize > 20 {
		c.WindowSize = 8
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = 0.2
	}
	if c.VelocityOutlierFraction <= 0 || c.VelocityOutlierFraction > 1 {
		c.VelocityOutlierFraction = 0.5
	}
	if c.AccelOutlierFraction <= 0 || c.AccelOutlierFraction > 1 {
		c.AccelOutlierFraction = 0.5
	}
	return c
}

// channel is the smoothing state for one joint and one quantity: a
// bounded raw-sample window, an EMA accumulator, and the last emitted
// output for outlier clamping.
type channel struct {
	window    []float64
	ema       float64
	output    float64
	hasOutput bool
}

// update runs the four-stage pipeline on one raw sample: window append,
// EMA update, windowed-mean-or-EMA selection, then a clamp of the step
// from the previous output to maxMag×fraction. The window mean takes
// over only once the window has filled.
func (c *channel) update(raw, alpha float64, windowCap int, maxMag, fraction float64) float64 {
	c.window = append(c.window, raw)
	if len(c.window) > windowCap {
		c.window = c.window[1:]
	}

	c.ema = alpha*raw + (1-alpha)*c.ema

	var out float64
	if len(c.window) >= windowCap {
		out = stat.Mean(c.window, nil)
	} else {
		out = c.ema
	}

	if c.hasOutput {
		maxStep := maxMag * fraction
		if delta := out - c.output; math.Abs(delta) > maxStep {
			out = c.output + math.Copysign(maxStep, delta)
		}
	}
	c.output = out
	c.hasOutput = true
	return out
}

func (c *channel) reset() {
	c.window = c.window[:0]
	c.ema = 0
	c.output = 0
	c.hasOutput = false
}

// Conditioner turns the raw angle stream into smoothed per-joint velocity
// and acceleration estimates. Velocity needs at least 2 samples of
// history and acceleration 3; below that the last computed value is
// retained unchanged. A non-positive time delta skips the derivative
// update for that tick entirely.
//
// Not safe for concurrent use; the pipeline runs it on a single
// processing goroutine.
type Conditioner struct {
	cfg     ConditionerConfig
	history []Sample
	vel     [NumJoints]channel
	acc     [NumJoints]channel
}

// NewConditioner builds a conditioner with sanitized configuration.
func NewConditioner(cfg ConditionerConfig) *Conditioner {
	return &Conditioner{cfg: cfg.sanitize()}
}

// Push ingests one sample: appends it to the bounded history (evicting
// the oldest on overflow) and refreshes the smoothed derivative
// estimates.
func (c *Conditioner) Push(s Sample) {
	c.history = append(c.history, s)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[1:]
	}

	n := len(c.history)
	if n >= 2 && s.DT > 0 {
		prev := c.history[n-2]
		for j := 0; j < NumJoints; j++ {
			raw := (s.Angles[j] - prev.Angles[j]) / s.DT
			c.vel[j].update(raw, c.cfg.Alpha, c.cfg.WindowSize,
				c.cfg.Envelopes[j].VelocityMax, c.cfg.VelocityOutlierFraction)
		}
	}

	if n >= 3 && s.DT > 0 {
		prev, prev2 := c.history[n-2], c.history[n-3]
		if prev.DT > 0 {
			for j := 0; j < NumJoints; j++ {
				// Both velocities are recomputed from raw angle deltas so
				// filter lag does not compound into the acceleration.
				v1 := (s.Angles[j] - prev.Angles[j]) / s.DT
				v0 := (prev.Angles[j] - prev2.Angles[j]) / prev.DT
				raw := (v1 - v0) / s.DT
				c.acc[j].update(raw, c.cfg.Alpha, c.cfg.WindowSize,
					c.cfg.Envelopes[j].AccelMax, c.cfg.AccelOutlierFraction)
			}
		}
	}
}

// Velocities returns the smoothed velocity estimates (degrees/second) and
// whether any estimate has been computed yet.
func (c *Conditioner) Velocities() ([NumJoints]float64, bool) {
	var out [NumJoints]float64
	if !c.vel[0].hasOutput {
		return out, false
	}
	for j := 0; j < NumJoints; j++ {
		out[j] = c.vel[j].output
	}
	return out, true
}

// Accelerations returns the smoothed acceleration estimates
// (degrees/second²) and whether any estimate has been computed yet.
func (c *Conditioner) Accelerations() ([NumJoints]float64, bool) {
	var out [NumJoints]float64
	if !c.acc[0].hasOutput {
		return out, false
	}
	for j := 0; j < NumJoints; j++ {
		out[j] = c.acc[j].output
	}
	return out, true
}

// HistoryLen returns the number of buffered samples.
func (c *Conditioner) HistoryLen() int { return len(c.history) }

// Reset empties the history buffer and clears all smoothing state. The
// conditioner rebuilds lazily from the next incoming sample.
func (c *Conditioner) Reset() {
	c.history = c.history[:0]
	for j := 0; j < NumJoints; j++ {
		c.vel[j].reset()
		c.acc[j].reset()
	}
}
