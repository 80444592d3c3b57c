// Package kinematics implements the forward-kinematic model of a 6R
// spherical-wrist manipulator described by Denavit-Hartenberg parameters,
// the manipulator Jacobian, and the Yoshikawa manipulability measure.
package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DHLink holds the fixed Denavit-Hartenberg parameters of one link,
// ordered base to tool. Angles are radians, lengths metres. Immutable
// after model construction.
type DHLink struct {
	Alpha float64 // link twist
	A     float64 // link length
	D     float64 // link offset
	Theta float64 // fixed joint angle offset, added to the sampled angle
}

// Frame is the pose of one link frame expressed in the base frame:
// its origin and its local Y axis (the second column of the rotation).
type Frame struct {
	Position [3]float64
	AxisY    [3]float64
}

// Model is a read-only open kinematic chain. Loaded once at startup.
type Model struct {
	links []DHLink
}

// NewModel builds a model from the given link parameters. At least one
// link is required; the safety monitor expects six.
func NewModel(links []DHLink) (*Model, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("kinematics: no links configured")
	}
	m := &Model{links: make([]DHLink, len(links))}
	copy(m.links, links)
	return m, nil
}

// NumLinks returns the number of configured links.
func (m *Model) NumLinks() int { return len(m.links) }

// dhTransform builds the homogeneous transform for one link given the
// total joint angle (sample angle plus the link's fixed theta offset).
func dhTransform(l DHLink, theta float64) *mat.Dense {
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(l.Alpha), math.Sin(l.Alpha)
	return mat.NewDense(4, 4, []float64{
		ct, -st * ca, st * sa, l.A * ct,
		st, ct * ca, -ct * sa, l.A * st,
		0, sa, ca, l.D,
		0, 0, 0, 1,
	})
}

// LinkFrame returns the frame of link k (1-based) in the base frame for
// the given joint configuration (degrees), composing the first k-1 link
// transforms starting from identity, each right-multiplied onto the
// accumulated product. Link 1 is the base frame itself.
//
// Every call recomputes from identity; nothing is cached across
// configurations. An out-of-range k or a short configuration returns an
// explicit error rather than indexing out of range.
func (m *Model) LinkFrame(q []float64, k int) (Frame, error) {
	steps := k - 1
	if k < 1 || steps > len(m.links) {
		return Frame{}, fmt.Errorf("kinematics: link %d out of range for %d configured links", k, len(m.links))
	}
	if len(q) < steps {
		return Frame{}, fmt.Errorf("kinematics: configuration has %d angles, need %d for link %d", len(q), steps, k)
	}

	acc := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	for i := 0; i < steps; i++ {
		theta := q[i]*math.Pi/180 + m.links[i].Theta
		next := mat.NewDense(4, 4, nil)
		next.Mul(acc, dhTransform(m.links[i], theta))
		acc = next
	}

	return Frame{
		Position: [3]float64{acc.At(0, 3), acc.At(1, 3), acc.At(2, 3)},
		AxisY:    [3]float64{acc.At(0, 1), acc.At(1, 1), acc.At(2, 1)},
	}, nil
}

// LinkPosition is LinkFrame restricted to the frame origin.
func (m *Model) LinkPosition(q []float64, k int) ([3]float64, error) {
	f, err := m.LinkFrame(q, k)
	if err != nil {
		return [3]float64{}, err
	}
	return f.Position, nil
}
