package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestDetLU_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		n    int
		data []float64
		want float64
	}{
		{"identity", 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, 1},
		{"two by two", 2, []float64{2, 1, 1, 1}, 1},
		{"requires pivoting", 2, []float64{0, 1, 1, 0}, -1},
		{"diagonal", 3, []float64{2, 0, 0, 0, 3, 0, 0, 0, 4}, 24},
		{"singular rows", 3, []float64{1, 2, 3, 2, 4, 6, 1, 0, 1}, 0},
		{"zero column", 3, []float64{1, 0, 3, 2, 0, 6, 1, 0, 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := detLU(mat.NewDense(tc.n, tc.n, tc.data))
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestDetLU_SingularIsExactlyZero(t *testing.T) {
	// Rank-deficient matrices must short-circuit to exactly 0, not a tiny
	// residual, so sqrt never sees a negative artifact.
	a := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	if got := detLU(a); got != 0 {
		t.Fatalf("detLU(singular) = %v, want exactly 0", got)
	}
}

func TestManipulability_ZeroColumn(t *testing.T) {
	// A Jacobian with a zero column (degenerate joint) has a singular Gram
	// matrix and must yield manipulability exactly 0.
	j := mat.NewDense(6, 6, nil)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			if c == 3 {
				continue
			}
			j.Set(r, c, float64(r*6+c+1))
		}
	}
	if got := Manipulability(j); got != 0 {
		t.Fatalf("Manipulability = %v, want 0", got)
	}
}

func TestManipulability_IdentityJacobian(t *testing.T) {
	j := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		j.Set(i, i, 1)
	}
	assert.InDelta(t, 1.0, Manipulability(j), 1e-12)
}

func TestManipulability_ScalesWithJacobian(t *testing.T) {
	j := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		j.Set(i, i, 2)
	}
	// det(J·Jᵗ) = 4^6, sqrt = 2^6.
	assert.InDelta(t, 64.0, Manipulability(j), 1e-9)
}

func TestJacobian_Shape(t *testing.T) {
	m := planarChain(6)
	j, err := m.Jacobian([]float64{10, -20, 30, 15, -5, 0})
	if err != nil {
		t.Fatalf("Jacobian: %v", err)
	}
	r, c := j.Dims()
	if r != 6 || c != 6 {
		t.Fatalf("Jacobian dims = %dx%d, want 6x6", r, c)
	}
	// Last column's linear part is z × (p_E − p_E) = 0: the wrist centre
	// is the reference point.
	for row := 0; row < 3; row++ {
		if math.Abs(j.At(row, 5)) > 1e-12 {
			t.Fatalf("last column linear part = %v, want 0", j.At(row, 5))
		}
	}
}

func TestJacobian_ShortConfiguration(t *testing.T) {
	m := planarChain(6)
	if _, err := m.Jacobian([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected error for short configuration")
	}
}
