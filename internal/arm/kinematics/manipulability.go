package kinematics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// pivotTolerance is the magnitude below which an elimination pivot is
// treated as zero and the matrix declared singular.
const pivotTolerance = 1e-12

// Manipulability computes the Yoshikawa measure sqrt(det(J·Jᵗ)) for a 6×N
// Jacobian. The result is ≥ 0 and collapses to exactly 0 at a kinematic
// singularity. A small negative determinant (floating-point artifact near
// a singularity) is clamped to 0 before the square root.
func Manipulability(j *mat.Dense) float64 {
	var gram mat.Dense
	gram.Mul(j, j.T())
	det := detLU(&gram)
	if det < 0 {
		det = 0
	}
	return math.Sqrt(det)
}

// detLU computes the determinant of a square matrix by partial-pivot LU
// elimination: at each step the row with the largest-magnitude candidate
// in the active column is swapped in to preserve numerical stability. If
// the best available pivot falls below pivotTolerance the matrix is
// singular and the determinant is reported as exactly 0.
func detLU(m *mat.Dense) float64 {
	r, c := m.Dims()
	if r != c || r == 0 {
		return 0
	}
	n := r

	// Work on a copy; elimination destroys the input.
	a := mat.DenseCopyOf(m)

	det := 1.0
	for col := 0; col < n; col++ {
		// Find the largest-magnitude pivot candidate in the active column.
		pivotRow := col
		pivotMag := math.Abs(a.At(col, col))
		for row := col + 1; row < n; row++ {
			if mag := math.Abs(a.At(row, col)); mag > pivotMag {
				pivotMag = mag
				pivotRow = row
			}
		}
		if pivotMag < pivotTolerance {
			return 0
		}
		if pivotRow != col {
			swapRows(a, pivotRow, col)
			det = -det
		}

		pivot := a.At(col, col)
		det *= pivot
		for row := col + 1; row < n; row++ {
			factor := a.At(row, col) / pivot
			if factor == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a.Set(row, k, a.At(row, k)-factor*a.At(col, k))
			}
		}
	}
	return det
}

func swapRows(a *mat.Dense, i, j int) {
	_, c := a.Dims()
	for k := 0; k < c; k++ {
		vi, vj := a.At(i, k), a.At(j, k)
		a.Set(i, k, vj)
		a.Set(j, k, vi)
	}
}
