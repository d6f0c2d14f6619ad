package graph

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"dense/alg/nn"
)

var negInf = math.Inf(-1)

// ArcScorer scores head -> dependent pairs additively:
//
//	arc(h, d)   = vᵀ tanh(U a_h + W a_d + b)
//	label(h, d) = L tanh(Uℓ a_h + Wℓ a_d + bℓ) + bℓout
type ArcScorer struct {
	U, W, B, V            *nn.Param
	LU, LW, LB, LOut, LOB *nn.Param
}

func NewArcScorer(cfg Config, in, labels int, rnd *rand.Rand) *ArcScorer {
	arc, lbl := cfg.ArcHidden, cfg.LabelHidden
	return &ArcScorer{
		U: nn.NewParam("arc_U", arc, in, rnd, nn.GlorotScale(arc, in)),
		W: nn.NewParam("arc_W", arc, in, rnd, nn.GlorotScale(arc, in)),
		B: nn.NewParam("arc_b", arc, 1, nil, 0),
		V: nn.NewParam("arc_v", 1, arc, rnd, nn.GlorotScale(1, arc)),

		LU:   nn.NewParam("label_U", lbl, in, rnd, nn.GlorotScale(lbl, in)),
		LW:   nn.NewParam("label_W", lbl, in, rnd, nn.GlorotScale(lbl, in)),
		LB:   nn.NewParam("label_b", lbl, 1, nil, 0),
		LOut: nn.NewParam("label_out", labels, lbl, rnd, nn.GlorotScale(labels, lbl)),
		LOB:  nn.NewParam("label_out_b", labels, 1, nil, 0),
	}
}

func (s *ArcScorer) Params() []*nn.Param {
	return []*nn.Param{s.U, s.W, s.B, s.V, s.LU, s.LW, s.LB, s.LOut, s.LOB}
}

func (s *ArcScorer) Labels() int {
	r, _ := s.LOut.Value.Dims()
	return r
}

// Scores of one sentence. Arc[h][d] is -Inf for h == d and for d == 0.
// Label vectors are computed on first use and cached.
type Scores struct {
	Arc [][]float64

	label   [][][]float64
	scorer  *ArcScorer
	vectors [][]float64
	// projections: head and dependent side, arc and label
	ah, ad, lh, ld [][]float64
}

// NewScores wraps fixed arc and label scores; labels[h][d] must be set for
// every unmasked arc that is read.
func NewScores(arc [][]float64, labels [][][]float64) *Scores {
	return &Scores{Arc: arc, label: labels}
}

func (sc *Scores) Len() int {
	return len(sc.Arc)
}

func masked(h, d int) bool {
	return h == d || d == 0
}

// Label returns the label scores of h -> d, nil for masked pairs.
func (sc *Scores) Label(h, d int) []float64 {
	if masked(h, d) || sc.label == nil {
		return nil
	}
	if sc.label[h][d] == nil && sc.scorer != nil {
		z := nn.Tanh(pairSum(sc.lh[h], sc.ld[d]))
		sc.label[h][d] = nn.Affine(sc.scorer.LOut.Value, sc.scorer.LOB.Value, z)
	}
	return sc.label[h][d]
}

func pairSum(a, b []float64) []float64 {
	out := make([]float64, len(a))
	floats.AddTo(out, a, b)
	return out
}

func (s *ArcScorer) Forward(vectors [][]float64) *Scores {
	n := len(vectors)
	sc := &Scores{
		Arc:     make([][]float64, n),
		label:   make([][][]float64, n),
		scorer:  s,
		vectors: vectors,
		ah:      make([][]float64, n),
		ad:      make([][]float64, n),
		lh:      make([][]float64, n),
		ld:      make([][]float64, n),
	}
	for i, a := range vectors {
		sc.ah[i] = nn.Affine(s.U.Value, nil, a)
		sc.ad[i] = nn.Affine(s.W.Value, s.B.Value, a)
		sc.lh[i] = nn.Affine(s.LU.Value, nil, a)
		sc.ld[i] = nn.Affine(s.LW.Value, s.LB.Value, a)
	}
	v := s.V.Value.RawRowView(0)
	for h := 0; h < n; h++ {
		sc.Arc[h] = make([]float64, n)
		sc.label[h] = make([][]float64, n)
		for d := 0; d < n; d++ {
			if masked(h, d) {
				sc.Arc[h][d] = negInf
				continue
			}
			sc.Arc[h][d] = floats.Dot(v, nn.Tanh(pairSum(sc.ah[h], sc.ad[d])))
		}
	}
	return sc
}

// A LabelGrad is the loss gradient with respect to the label scores of one
// arc.
type LabelGrad struct {
	Head, Dependent int
	Grad            []float64
}

// Backward accumulates parameter gradients from dArc (same shape as
// sc.Arc, zero where unused) and the label gradients, and returns the
// gradient with respect to each input vector.
func (s *ArcScorer) Backward(sc *Scores, dArc [][]float64, dLabel []LabelGrad) [][]float64 {
	n := len(sc.vectors)
	dah, dad := zeros(n, len(sc.ah[0])), zeros(n, len(sc.ad[0]))
	v := s.V.Value.RawRowView(0)
	dv := s.V.Grad.RawRowView(0)
	for h := 0; h < n; h++ {
		for d := 0; d < n; d++ {
			g := dArc[h][d]
			if g == 0 || masked(h, d) {
				continue
			}
			z := nn.Tanh(pairSum(sc.ah[h], sc.ad[d]))
			floats.AddScaled(dv, g, z)
			scaled := make([]float64, len(v))
			floats.ScaleTo(scaled, g, v)
			dpre := nn.TanhGrad(z, scaled)
			floats.Add(dah[h], dpre)
			floats.Add(dad[d], dpre)
		}
	}

	dlh, dld := zeros(n, len(sc.lh[0])), zeros(n, len(sc.ld[0]))
	for _, lg := range dLabel {
		h, d := lg.Head, lg.Dependent
		z := nn.Tanh(pairSum(sc.lh[h], sc.ld[d]))
		nn.AccumulateOuter(s.LOut, lg.Grad, z)
		nn.AccumulateBias(s.LOB, lg.Grad)
		dpre := nn.TanhGrad(z, nn.MulT(s.LOut.Value, lg.Grad))
		floats.Add(dlh[h], dpre)
		floats.Add(dld[d], dpre)
	}

	dvec := zeros(n, len(sc.vectors[0]))
	for i, a := range sc.vectors {
		backProject(s.U, nil, dah[i], a, dvec[i])
		backProject(s.W, s.B, dad[i], a, dvec[i])
		backProject(s.LU, nil, dlh[i], a, dvec[i])
		backProject(s.LW, s.LB, dld[i], a, dvec[i])
	}
	return dvec
}

// backProject handles y = W a + b: accumulates the W and b gradients for
// dy and adds Wᵀ dy into da.
func backProject(W, b *nn.Param, dy, a, da []float64) {
	if isZero(dy) {
		return
	}
	nn.AccumulateOuter(W, dy, a)
	if b != nil {
		nn.AccumulateBias(b, dy)
	}
	floats.Add(da, nn.MulT(W.Value, dy))
}

func isZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}

func zeros(n, m int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, m)
	}
	return out
}
