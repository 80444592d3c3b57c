package pipeline

import (
	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/dynamics"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
	"github.com/banshee-data/arm.monitor/internal/arm/singularity"
	"github.com/banshee-data/arm.monitor/internal/config"
	"github.com/banshee-data/arm.monitor/internal/units"
)

// DefaultEnvelopes are the static manual limits used when no limits are
// configured and no external limit source is available: conservative
// bounds for a mid-size 6-axis arm.
func DefaultEnvelopes() dynamics.Envelopes {
	var env dynamics.Envelopes
	for j := range env {
		env[j] = dynamics.JointEnvelope{
			AngleMin:    -170,
			AngleMax:    170,
			VelocityMax: 180,
			AccelMax:    600,
		}
	}
	return env
}

// ModelFromTuning builds the kinematic model from the tuning file's DH
// block, converting file degrees to model radians. A missing or short
// block returns nil: the classifier disables itself and the monitor runs
// with dynamics checks only (fail open but limited).
func ModelFromTuning(cfg *config.TuningConfig) *kinematics.Model {
	if len(cfg.DH) < arm.NumJoints {
		arm.Opsf("tuning config has %d DH links, need %d: singularity checks will be disabled", len(cfg.DH), arm.NumJoints)
		return nil
	}
	links := make([]kinematics.DHLink, len(cfg.DH))
	for i, p := range cfg.DH {
		links[i] = kinematics.DHLink{
			Alpha: units.DegToRad(p.AlphaDeg),
			A:     p.A,
			D:     p.D,
			Theta: units.DegToRad(p.ThetaDeg),
		}
	}
	model, err := kinematics.NewModel(links)
	if err != nil {
		arm.Opsf("kinematic model rejected: %v", err)
		return nil
	}
	return model
}

// EnvelopesFromTuning builds the joint envelopes, in priority order:
// explicit limits from the tuning file, then a derated external limit
// source, then the static defaults. Derivation failures fall back rather
// than propagate.
func EnvelopesFromTuning(cfg *config.TuningConfig, source LimitSource) dynamics.Envelopes {
	if len(cfg.Limits) >= arm.NumJoints {
		var env dynamics.Envelopes
		for j := range env {
			l := cfg.Limits[j]
			env[j] = dynamics.JointEnvelope{
				AngleMin:    l.AngleMinDeg,
				AngleMax:    l.AngleMaxDeg,
				VelocityMax: l.VelocityMaxDps,
				AccelMax:    l.AccelMaxDps2,
			}
		}
		return env
	}

	if source != nil {
		env, err := source.JointEnvelopes()
		if err == nil {
			return env.Derate(cfg.GetSafetyDerationFactor())
		}
		arm.Opsf("external limit source failed, using static defaults: %v", err)
	} else if len(cfg.Limits) > 0 {
		arm.Opsf("tuning config has %d limit entries, need %d: using static defaults", len(cfg.Limits), arm.NumJoints)
	}
	return DefaultEnvelopes()
}

// MonitorFromTuning assembles a complete monitor from a tuning config and
// an optional external limit source.
func MonitorFromTuning(cfg *config.TuningConfig, source LimitSource, bus *arm.EventBus) *Monitor {
	return NewMonitor(MonitorConfig{
		Model: ModelFromTuning(cfg),
		Classifier: singularity.Config{
			WristThresholdDeg:  cfg.GetWristThresholdDeg(),
			ShoulderThresholdM: cfg.GetShoulderThresholdM(),
			ElbowThresholdDeg:  cfg.GetElbowThresholdDeg(),
		},
		Conditioner: dynamics.ConditionerConfig{
			HistorySize:             cfg.GetHistoryBufferSize(),
			WindowSize:              cfg.GetWindowSize(),
			Alpha:                   cfg.GetSmoothingAlpha(),
			VelocityOutlierFraction: cfg.GetVelocityOutlierFraction(),
			AccelOutlierFraction:    cfg.GetAccelOutlierFraction(),
		},
		Envelopes:    EnvelopesFromTuning(cfg, source),
		UpdateStride: cfg.GetUpdateStride(),
		QueueSize:    cfg.GetQueueSize(),
		Bus:          bus,
	})
}
