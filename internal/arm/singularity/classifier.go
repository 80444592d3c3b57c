// Package singularity classifies wrist, shoulder, and elbow singularities
// of a 6R spherical-wrist manipulator from its forward-kinematic model,
// with per-type sticky state so a persisting condition reports exactly one
// transition.
package singularity

import (
	"math"

	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
)

// Type identifies one of the three independent singularity conditions.
type Type int

const (
	Wrist Type = iota
	Shoulder
	Elbow
	numTypes
)

// String returns the lower-case name used in event payloads.
func (t Type) String() string {
	switch t {
	case Wrist:
		return "wrist"
	case Shoulder:
		return "shoulder"
	case Elbow:
		return "elbow"
	}
	return "unknown"
}

// Config holds the classification thresholds.
type Config struct {
	// WristThresholdDeg flags the wrist singular when the angle between
	// the joint-4 and joint-6 axes is within this many degrees of 0 or 180.
	WristThresholdDeg float64

	// ShoulderThresholdM flags the shoulder singular when the wrist
	// centre's horizontal distance from the base rotation axis falls
	// below this many metres.
	ShoulderThresholdM float64

	// ElbowThresholdDeg flags the elbow singular when the upper-arm and
	// wrist-centre vectors are within this many degrees of 0 or 180.
	ElbowThresholdDeg float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		WristThresholdDeg:  5.0,
		ShoulderThresholdM: 0.1,
		ElbowThresholdDeg:  5.0,
	}
}

// Transition reports one sticky-state flip.
type Transition struct {
	Type     Type
	Entering bool

	// Metric is the measured quantity the threshold was compared against:
	// degrees for wrist and elbow, metres for shoulder.
	Metric    float64
	Threshold float64

	// Manipulability is the Yoshikawa measure at the configuration that
	// produced the flip, attached as informational telemetry.
	Manipulability float64
}

// Classifier evaluates the three singularity conditions against a
// kinematic model, keeping one sticky boolean per type. Not safe for
// concurrent use; the pipeline runs it on a single processing goroutine.
type Classifier struct {
	model    *kinematics.Model
	cfg      Config
	active   [numTypes]bool
	disabled bool
}

// NewClassifier builds a classifier over the given model. A nil model or
// one with fewer than six links disables classification entirely: the
// monitor keeps running without singularity checks rather than failing
// the caller's tick loop.
func NewClassifier(model *kinematics.Model, cfg Config) *Classifier {
	c := &Classifier{model: model, cfg: cfg}
	if model == nil || model.NumLinks() < 6 {
		c.disabled = true
		arm.Opsf("singularity checks disabled: kinematic model missing or has fewer than 6 links")
	}
	return c
}

// Disabled reports whether the classifier was disabled at construction.
func (c *Classifier) Disabled() bool { return c.disabled }

// Reset clears all sticky state, so the next evaluation of a persisting
// condition re-raises an entering transition.
func (c *Classifier) Reset() {
	c.active = [numTypes]bool{}
}

// Evaluate tests all three conditions at the given configuration
// (degrees) and returns one Transition per sticky flip, in type order.
// Unchanged states produce nothing, so a condition chattering around its
// threshold cannot flood the event stream.
func (c *Classifier) Evaluate(q []float64) []Transition {
	if c.disabled {
		return nil
	}

	type check struct {
		typ       Type
		singular  bool
		metric    float64
		threshold float64
		ok        bool
	}
	checks := [numTypes]check{}

	if sing, angle, err := c.wrist(q); err == nil {
		checks[Wrist] = check{Wrist, sing, angle, c.cfg.WristThresholdDeg, true}
	} else {
		arm.Diagf("wrist singularity check skipped: %v", err)
	}
	if sing, dist, err := c.shoulder(q); err == nil {
		checks[Shoulder] = check{Shoulder, sing, dist, c.cfg.ShoulderThresholdM, true}
	} else {
		arm.Diagf("shoulder singularity check skipped: %v", err)
	}
	if sing, angle, err := c.elbow(q); err == nil {
		checks[Elbow] = check{Elbow, sing, angle, c.cfg.ElbowThresholdDeg, true}
	} else {
		arm.Diagf("elbow singularity check skipped: %v", err)
	}

	var transitions []Transition
	manip := math.NaN()
	for _, ck := range checks {
		if !ck.ok || ck.singular == c.active[ck.typ] {
			continue
		}
		c.active[ck.typ] = ck.singular
		if math.IsNaN(manip) {
			manip = c.manipulability(q)
		}
		transitions = append(transitions, Transition{
			Type:           ck.typ,
			Entering:       ck.singular,
			Metric:         ck.metric,
			Threshold:      ck.threshold,
			Manipulability: manip,
		})
	}
	return transitions
}

// manipulability computes the Yoshikawa measure at q, reporting 0 when
// the Jacobian cannot be built.
func (c *Classifier) manipulability(q []float64) float64 {
	j, err := c.model.Jacobian(q)
	if err != nil {
		arm.Diagf("manipulability unavailable: %v", err)
		return 0
	}
	return kinematics.Manipulability(j)
}

// wrist flags the joint-4 and joint-6 axes becoming (anti-)parallel.
func (c *Classifier) wrist(q []float64) (bool, float64, error) {
	f4, err := c.model.LinkFrame(q, 4)
	if err != nil {
		return false, 0, err
	}
	f6, err := c.model.LinkFrame(q, 6)
	if err != nil {
		return false, 0, err
	}
	angle := angleBetweenDeg(f4.AxisY, f6.AxisY)
	return nearParallel(angle, c.cfg.WristThresholdDeg), angle, nil
}

// shoulder flags the wrist centre lying on the base rotation axis. The
// base axis is vertical, so only the horizontal distance matters.
func (c *Classifier) shoulder(q []float64) (bool, float64, error) {
	p, err := c.model.LinkPosition(q, 5)
	if err != nil {
		return false, 0, err
	}
	dist := math.Hypot(p[0], p[1])
	return dist < c.cfg.ShoulderThresholdM, dist, nil
}

// elbow flags the arm fully extended or fully folded: the vectors from
// link 2 to link 3 and from link 2 to the wrist centre become
// (anti-)parallel.
func (c *Classifier) elbow(q []float64) (bool, float64, error) {
	p2, err := c.model.LinkPosition(q, 2)
	if err != nil {
		return false, 0, err
	}
	p3, err := c.model.LinkPosition(q, 3)
	if err != nil {
		return false, 0, err
	}
	p5, err := c.model.LinkPosition(q, 5)
	if err != nil {
		return false, 0, err
	}
	upper := [3]float64{p3[0] - p2[0], p3[1] - p2[1], p3[2] - p2[2]}
	reach := [3]float64{p5[0] - p2[0], p5[1] - p2[1], p5[2] - p2[2]}
	angle := angleBetweenDeg(upper, reach)
	return nearParallel(angle, c.cfg.ElbowThresholdDeg), angle, nil
}

// nearParallel reports whether an angle in degrees is within threshold of
// 0 or of 180.
func nearParallel(angleDeg, thresholdDeg float64) bool {
	return angleDeg < thresholdDeg || angleDeg > 180-thresholdDeg
}

// angleBetweenDeg returns the angle between two vectors in [0, 180]
// degrees. Degenerate (near-zero) vectors report 0.
func angleBetweenDeg(a, b [3]float64) float64 {
	na := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
	nb := math.Sqrt(b[0]*b[0] + b[1]*b[1] + b[2]*b[2])
	if na == 0 || nb == 0 {
		return 0
	}
	dot := (a[0]*b[0] + a[1]*b[1] + a[2]*b[2]) / (na * nb)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) * 180 / math.Pi
}
