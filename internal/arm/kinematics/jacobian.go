package kinematics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Jacobian builds the 6×N manipulator Jacobian at the given configuration
// (degrees), with rows [linear(3); angular(3)] per joint column.
//
// Column i uses the standard revolute-joint formula with the wrist centre
// as reference point: linear = z_i × (p_E − p_i), angular = z_i, where p_i
// and z_i are the position and local Y axis of joint i's frame and p_E is
// the link-6 position. The matrix is recomputed fresh on every call.
func (m *Model) Jacobian(q []float64) (*mat.Dense, error) {
	n := len(m.links)
	if len(q) < n {
		return nil, fmt.Errorf("kinematics: configuration has %d angles, need %d", len(q), n)
	}

	wrist, err := m.LinkFrame(q, n)
	if err != nil {
		return nil, err
	}
	pE := wrist.Position

	j := mat.NewDense(6, n, nil)
	for i := 0; i < n; i++ {
		f, err := m.LinkFrame(q, i+1)
		if err != nil {
			return nil, err
		}
		z := f.AxisY
		r := [3]float64{pE[0] - f.Position[0], pE[1] - f.Position[1], pE[2] - f.Position[2]}

		// z × r
		j.Set(0, i, z[1]*r[2]-z[2]*r[1])
		j.Set(1, i, z[2]*r[0]-z[0]*r[2])
		j.Set(2, i, z[0]*r[1]-z[1]*r[0])
		j.Set(3, i, z[0])
		j.Set(4, i, z[1])
		j.Set(5, i, z[2])
	}
	return j, nil
}
