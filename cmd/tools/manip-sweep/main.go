// Command manip-sweep sweeps one joint through its range at an otherwise
// fixed configuration and plots the manipulability curve, for tuning
// singularity thresholds offline.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/arm.monitor/internal/arm"
	"github.com/banshee-data/arm.monitor/internal/arm/kinematics"
	"github.com/banshee-data/arm.monitor/internal/arm/pipeline"
	"github.com/banshee-data/arm.monitor/internal/config"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON with the robot's DH block")
	joint      = flag.Int("joint", 3, "Joint index to sweep (0-based)")
	minDeg     = flag.Float64("min", -180, "Sweep start angle (degrees)")
	maxDeg     = flag.Float64("max", 180, "Sweep end angle (degrees)")
	steps      = flag.Int("steps", 720, "Number of sweep steps")
	baseConfig = flag.String("base", "0,0,0,0,0,0", "Fixed configuration for the non-swept joints (degrees, comma-separated)")
	output     = flag.String("out", "manip-sweep.png", "Output plot file")
)

func parseBase(s string) (arm.JointConfiguration, error) {
	var q arm.JointConfiguration
	parts := strings.Split(s, ",")
	if len(parts) != arm.NumJoints {
		return q, fmt.Errorf("base configuration needs %d angles, got %d", arm.NumJoints, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return q, fmt.Errorf("angle %d: %w", i, err)
		}
		q[i] = v
	}
	return q, nil
}

func main() {
	flag.Parse()

	if *configPath == "" {
		log.Fatal("manip-sweep requires -config with a DH block")
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	model := pipeline.ModelFromTuning(cfg)
	if model == nil {
		log.Fatal("config has no usable DH block")
	}
	if *joint < 0 || *joint >= arm.NumJoints {
		log.Fatalf("joint index %d out of range", *joint)
	}
	if *steps < 2 || *maxDeg <= *minDeg {
		log.Fatal("need steps >= 2 and max > min")
	}

	base, err := parseBase(*baseConfig)
	if err != nil {
		log.Fatalf("parse base configuration: %v", err)
	}

	pts := make(plotter.XYs, 0, *steps)
	minManip, minAt := -1.0, 0.0
	for i := 0; i < *steps; i++ {
		angle := *minDeg + (*maxDeg-*minDeg)*float64(i)/float64(*steps-1)
		q := base
		q[*joint] = angle

		j, err := model.Jacobian(q[:])
		if err != nil {
			log.Fatalf("jacobian at %.2f°: %v", angle, err)
		}
		m := kinematics.Manipulability(j)
		pts = append(pts, plotter.XY{X: angle, Y: m})
		if minManip < 0 || m < minManip {
			minManip, minAt = m, angle
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Manipulability sweep, joint %d", *joint)
	p.X.Label.Text = "joint angle (deg)"
	p.Y.Label.Text = "sqrt(det(J·Jᵗ))"

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("build line: %v", err)
	}
	p.Add(line, plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 5*vg.Inch, *output); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	log.Printf("Wrote %s (%d points, minimum %.6g at %.2f°)", *output, len(pts), minManip, minAt)
}
