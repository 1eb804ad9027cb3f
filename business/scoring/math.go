package scoring

import (
	"fmt"
	"math"
)

const decayRate = 0.001 // soft forgetting

type vector = [featureDim]float64
type matrix = [featureDim][featureDim]float64

// y = A * x
func matVecMul(A matrix, x vector) vector {
	var y vector
	for i := range featureDim {
		sum := 0.0
		for j := range featureDim {
			sum += A[i][j] * x[j]
		}
		y[i] = sum
	}
	return y
}

func dot(a, b vector) float64 {
	sum := 0.0
	for i := range featureDim {
		sum += a[i] * b[i]
	}
	return sum
}

// A := A + x x^T
func addOuter(A *matrix, x vector) {
	for i := range featureDim {
		for j := range featureDim {
			(*A)[i][j] += x[i] * x[j]
		}
	}
}

// b := b + r x
func addScaled(b *vector, x vector, r float64) {
	for i := range featureDim {
		(*b)[i] += r * x[i]
	}
}

// applyDecay shrinks old contributions in A and b. The ridge diagonal is
// kept so A stays invertible.
func applyDecay(arm *ArmState, rate float64) {
	if rate <= 0 {
		return
	}
	decay := 1.0 - rate

	for i := range featureDim {
		for j := range featureDim {
			if i == j {
				arm.A[i][j] = ridge + (arm.A[i][j]-ridge)*decay
				continue
			}
			arm.A[i][j] *= decay
		}
		arm.B[i] *= decay
	}

	if arm.Count > 0 {
		arm.Count = int(math.Round(float64(arm.Count) * decay))
	}
}

// invert uses Gauss-Jordan elimination with partial pivoting.
func invert(A matrix) (matrix, error) {
	var aug [featureDim][2 * featureDim]float64

	for i := range featureDim {
		for j := range featureDim {
			aug[i][j] = A[i][j]
		}
		aug[i][featureDim+i] = 1.0
	}

	for col := range featureDim {
		best := col
		for r := col + 1; r < featureDim; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[best][col]) {
				best = r
			}
		}
		aug[col], aug[best] = aug[best], aug[col]

		pivot := aug[col][col]
		if math.Abs(pivot) < 1e-9 {
			return matrix{}, fmt.Errorf("matrix is singular")
		}

		for j := range 2 * featureDim {
			aug[col][j] /= pivot
		}

		for i := range featureDim {
			if i == col {
				continue
			}
			factor := aug[i][col]
			for j := range 2 * featureDim {
				aug[i][j] -= factor * aug[col][j]
			}
		}
	}

	var inv matrix
	for i := range featureDim {
		for j := range featureDim {
			inv[i][j] = aug[i][featureDim+j]
		}
	}
	return inv, nil
}

// linearEstimate returns theta·x and the exploration width sqrt(x^T A^-1 x).
func linearEstimate(arm *ArmState, x vector) (mean, width float64) {
	AInv, err := invert(arm.A)
	if err != nil {
		fresh := newArmState()
		AInv, _ = invert(fresh.A)
		return 0, math.Sqrt(dot(x, matVecMul(AInv, x)))
	}
	theta := matVecMul(AInv, arm.B)
	return dot(theta, x), math.Sqrt(math.Max(dot(x, matVecMul(AInv, x)), 0))
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
