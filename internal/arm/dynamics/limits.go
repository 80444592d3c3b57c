package dynamics

// Quantity identifies which monitored signal tripped an envelope.
type Quantity int

const (
	QuantityAngle Quantity = iota
	QuantityVelocity
	QuantityAcceleration
	numQuantities
)

// String returns the lower-case name used in event payloads.
func (q Quantity) String() string {
	switch q {
	case QuantityAngle:
		return "angle"
	case QuantityVelocity:
		return "velocity"
	case QuantityAcceleration:
		return "acceleration"
	}
	return "unknown"
}

// JointEnvelope is one joint's safety envelope. Angle bounds may be
// asymmetric; velocity and acceleration bounds are symmetric magnitudes.
type JointEnvelope struct {
	AngleMin    float64 // degrees
	AngleMax    float64 // degrees
	VelocityMax float64 // degrees/second
	AccelMax    float64 // degrees/second²
}

// Envelopes holds one envelope per joint.
type Envelopes [NumJoints]JointEnvelope

// Derate returns a copy with the velocity and acceleration bounds scaled
// by factor. Angle bounds are hard mechanical limits and are never
// derated. A factor outside (0,1] leaves the envelopes unchanged.
func (e Envelopes) Derate(factor float64) Envelopes {
	if factor <= 0 || factor > 1 {
		return e
	}
	for j := range e {
		e[j].VelocityMax *= factor
		e[j].AccelMax *= factor
	}
	return e
}

// Violation reports one sticky-flag flip for a (joint, quantity) pair.
type Violation struct {
	Joint    int
	Quantity Quantity
	Entering bool
	Value    float64
	Limit    float64
}

// LimitMonitor compares raw angles and smoothed derivatives against the
// configured envelopes, holding one sticky boolean per (joint, quantity)
// pair. A flip produces exactly one Violation; unchanged state produces
// nothing.
type LimitMonitor struct {
	env    Envelopes
	sticky [NumJoints][numQuantities]bool
}

// NewLimitMonitor builds a monitor over the given envelopes.
func NewLimitMonitor(env Envelopes) *LimitMonitor {
	return &LimitMonitor{env: env}
}

// Envelopes returns the configured envelopes.
func (m *LimitMonitor) Envelopes() Envelopes { return m.env }

// Check evaluates one tick. Angles are always checked against their
// bounds (strictly outside: a joint held exactly at its bound is legal).
// Velocity and acceleration are checked only when an estimate exists.
func (m *LimitMonitor) Check(angles [NumJoints]float64, vel [NumJoints]float64, velOK bool, acc [NumJoints]float64, accOK bool) []Violation {
	var out []Violation
	for j := 0; j < NumJoints; j++ {
		env := m.env[j]

		angleBad := angles[j] < env.AngleMin || angles[j] > env.AngleMax
		limit := env.AngleMax
		if angles[j] < env.AngleMin {
			limit = env.AngleMin
		}
		out = m.transition(out, j, QuantityAngle, angleBad, angles[j], limit)

		if velOK {
			velBad := abs(vel[j]) > env.VelocityMax
			out = m.transition(out, j, QuantityVelocity, velBad, vel[j], env.VelocityMax)
		}
		if accOK {
			accBad := abs(acc[j]) > env.AccelMax
			out = m.transition(out, j, QuantityAcceleration, accBad, acc[j], env.AccelMax)
		}
	}
	return out
}

// transition flips the sticky flag and records a Violation when the raw
// predicate differs from the stored state.
func (m *LimitMonitor) transition(out []Violation, joint int, q Quantity, bad bool, value, limit float64) []Violation {
	if m.sticky[joint][q] == bad {
		return out
	}
	m.sticky[joint][q] = bad
	return append(out, Violation{
		Joint:    joint,
		Quantity: q,
		Entering: bad,
		Value:    value,
		Limit:    limit,
	})
}

// Active reports the current sticky state for one (joint, quantity) pair.
func (m *LimitMonitor) Active(joint int, q Quantity) bool {
	if joint < 0 || joint >= NumJoints || q < 0 || q >= numQuantities {
		return false
	}
	return m.sticky[joint][q]
}

// Reset clears all sticky flags, so the next check of a persisting
// violation re-raises an entering Violation.
func (m *LimitMonitor) Reset() {
	m.sticky = [NumJoints][numQuantities]bool{}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
