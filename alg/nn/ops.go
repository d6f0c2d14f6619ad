package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Affine returns W x + b for a column bias b; a nil b is skipped.
func Affine(W, b *mat.Dense, x []float64) []float64 {
	r, _ := W.Dims()
	out := mat.NewVecDense(r, nil)
	out.MulVec(W, mat.NewVecDense(len(x), x))
	if b != nil {
		out.AddVec(out, b.ColView(0))
	}
	return out.RawVector().Data
}

// MulT returns Wᵀ g.
func MulT(W *mat.Dense, g []float64) []float64 {
	_, c := W.Dims()
	out := mat.NewVecDense(c, nil)
	out.MulVec(W.T(), mat.NewVecDense(len(g), g))
	return out.RawVector().Data
}

// AccumulateOuter adds g xᵀ to the gradient of p.
func AccumulateOuter(p *Param, g, x []float64) {
	p.Grad.RankOne(p.Grad, 1, mat.NewVecDense(len(g), g), mat.NewVecDense(len(x), x))
}

// AccumulateBias adds g to the gradient of a column parameter.
func AccumulateBias(p *Param, g []float64) {
	floats.Add(p.Grad.RawMatrix().Data, g)
}

// Tanh applies tanh in place and returns x.
func Tanh(x []float64) []float64 {
	for i, v := range x {
		x[i] = math.Tanh(v)
	}
	return x
}

// TanhGrad returns g ⊙ (1 - y²) for y = tanh(z).
func TanhGrad(y, g []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = g[i] * (1 - y[i]*y[i])
	}
	return out
}

// LogSumExp over xs; -Inf entries contribute nothing.
func LogSumExp(xs []float64) float64 {
	return floats.LogSumExp(xs)
}

func Softmax(xs []float64) []float64 {
	lse := LogSumExp(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Exp(x - lse)
	}
	return out
}

// Argmax returns the lowest index holding the maximum.
func Argmax(xs []float64) int {
	return floats.MaxIdx(xs)
}

// Concat joins vectors into a fresh slice.
func Concat(parts ...[]float64) []float64 {
	var size int
	for _, p := range parts {
		size += len(p)
	}
	out := make([]float64, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
