package arm

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies a safety event. Entering events carry a severity
// determined by the quantity that tripped; leaving a violated or singular
// state always emits SeverityResolved.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityResolved Severity = "resolved"
)

// Monitor source names used in SafetyEvent.Monitor.
const (
	MonitorSingularity = "singularity"
	MonitorLimits      = "joint-limits"
)

// SingularityInfo is the payload attached to singularity enter/exit events.
// It carries the numeric context needed to reconstruct offline why the
// event fired.
type SingularityInfo struct {
	Type           string  `json:"type"`
	Metric         float64 `json:"metric"`
	Threshold      float64 `json:"threshold"`
	Manipulability float64 `json:"manipulability"`
}

// DynamicsInfo is the payload attached to limit-violation enter/exit events.
type DynamicsInfo struct {
	Joint    int     `json:"joint"`
	Quantity string  `json:"quantity"`
	Value    float64 `json:"value"`
	Limit    float64 `json:"limit"`
}

// SafetyEvent is one debounced threshold crossing. Immutable once created;
// consumed by any number of bus subscribers.
type SafetyEvent struct {
	ID        string
	Monitor   string
	Severity  Severity
	Message   string
	Timestamp time.Time
	Joints    JointConfiguration

	// Payload is a tagged variant keyed by Monitor:
	// *SingularityInfo for MonitorSingularity, *DynamicsInfo for MonitorLimits.
	Payload any
}

// NewSafetyEvent builds an event with a fresh ID and the current time.
func NewSafetyEvent(monitor string, severity Severity, message string, joints JointConfiguration, payload any) SafetyEvent {
	return SafetyEvent{
		ID:        uuid.NewString(),
		Monitor:   monitor,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
		Joints:    joints,
		Payload:   payload,
	}
}
