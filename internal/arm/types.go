// Package arm holds the shared domain types for the manipulator safety
// monitor: joint telemetry snapshots, safety events, and the event bus
// that fans events out to subscribers.
//
// Numeric processing lives in the layer subpackages (kinematics,
// singularity, dynamics); composition lives in pipeline/. None of those
// layers import each other except through pipeline.
package arm

import "time"

// NumJoints is the number of actuated joints in the monitored manipulator.
const NumJoints = 6

// JointConfiguration is an immutable snapshot of the six joint angles in
// degrees, ordered base to tool. Produced once per telemetry tick.
type JointConfiguration [NumJoints]float64

// JointSample pairs a joint configuration with the wall-clock time delta
// (seconds) since the previous sample.
type JointSample struct {
	Joints JointConfiguration
	DT     float64
	Time   time.Time
}
