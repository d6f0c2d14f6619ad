package graph

import (
	"math"

	"dense/alg/nn"
	"dense/nlp/parser/dependency"
)

// LossResult is the batch loss, averaged over real tokens, with the
// gradients of that average with respect to each sentence's scores.
type LossResult struct {
	Loss      float64
	ArcLoss   float64
	LabelLoss float64
	Tokens    int

	ArcGrads   [][][]float64
	LabelGrads [][]LabelGrad
}

// Finite reports whether the loss is a usable number.
func (l *LossResult) Finite() bool {
	return !math.IsNaN(l.Loss) && !math.IsInf(l.Loss, 0)
}

// Loss treats the head of every real token as a classification over the
// real tokens of its sentence (itself excluded), and adds labelWeight times
// the label cross entropy at the gold arc. Tokens whose gold relation is
// NoRelation have no label term. Padding rows and columns never
// enter either term.
func Loss(scores []*Scores, batch *Batch, labelWeight float64) *LossResult {
	result := &LossResult{
		Tokens:     batch.Tokens(),
		ArcGrads:   make([][][]float64, len(scores)),
		LabelGrads: make([][]LabelGrad, len(scores)),
	}
	if result.Tokens == 0 {
		return result
	}
	norm := 1 / float64(result.Tokens)

	for b, sc := range scores {
		inst, n := batch.Instances[b], batch.Lengths[b]
		width := sc.Len()
		result.ArcGrads[b] = zeros(width, width)
		for d := 1; d < width; d++ {
			if !batch.Mask[b][d] {
				continue
			}
			gold := inst.Heads[d]

			logits := make([]float64, n)
			for h := 0; h < n; h++ {
				logits[h] = sc.Arc[h][d]
			}
			logits[d] = negInf
			lse := nn.LogSumExp(logits)
			result.ArcLoss += lse - logits[gold]
			for h, p := range nn.Softmax(logits) {
				if h == gold {
					p -= 1
				}
				if h != d {
					result.ArcGrads[b][h][d] = p * norm
				}
			}

			goldLabel := inst.Labels[d]
			if goldLabel == dependency.NoRelation || labelWeight == 0 {
				continue
			}
			labels := sc.Label(gold, d)
			if labels == nil {
				continue
			}
			result.LabelLoss += nn.LogSumExp(labels) - labels[goldLabel]
			grad := nn.Softmax(labels)
			grad[goldLabel] -= 1
			for i := range grad {
				grad[i] *= labelWeight * norm
			}
			result.LabelGrads[b] = append(result.LabelGrads[b], LabelGrad{Head: gold, Dependent: d, Grad: grad})
		}
	}
	result.ArcLoss *= norm
	result.LabelLoss *= norm
	result.Loss = result.ArcLoss + labelWeight*result.LabelLoss
	return result
}
