package graph

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	arborescence "dense/alg/graph"
	"dense/alg/nn"
)

// A Tree is a decoded analysis: Heads[0] is NoHead and Labels[0] unused.
type Tree struct {
	Heads  []int
	Labels []int
	Score  float64
}

// Decoder finds the maximum spanning arborescence of the arc scores and
// then labels each chosen arc with its best scoring relation. With
// SingleRoot exactly one token attaches to ROOT.
type Decoder struct {
	SingleRoot bool
}

// Decode reads the first n rows and columns of the scores, n counting
// ROOT. A sentence of ROOT alone yields a tree without arcs.
func (dec *Decoder) Decode(sc *Scores, n int) *Tree {
	scores := make([][]float64, n)
	for h := range scores {
		scores[h] = sc.Arc[h][:n]
	}
	var (
		heads []int
		total float64
	)
	if dec.SingleRoot {
		heads, total = arborescence.MaxArborescenceSingleRoot(scores, 0)
	} else {
		heads, total = arborescence.MaxArborescence(scores, 0)
	}
	tree := &Tree{Heads: heads, Labels: make([]int, n), Score: total}
	for d := 1; d < n; d++ {
		if labels := sc.Label(heads[d], d); labels != nil {
			tree.Labels[d] = nn.Argmax(labels)
		}
	}
	return tree
}

// DecodeBatch decodes every sentence of a batch, at most workers at a
// time. Scores that are not finite fail with ErrNumericInstability.
func (dec *Decoder) DecodeBatch(scores []*Scores, lengths []int, workers int) ([]*Tree, error) {
	trees := make([]*Tree, len(scores))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range scores {
		i := i
		g.Go(func() error {
			if !finiteArcs(scores[i], lengths[i]) {
				return fmt.Errorf("sentence %d: %w", i, ErrNumericInstability)
			}
			trees[i] = dec.Decode(scores[i], lengths[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

func finiteArcs(sc *Scores, n int) bool {
	for h := 0; h < n; h++ {
		for d := 0; d < n; d++ {
			if s := sc.Arc[h][d]; math.IsNaN(s) || math.IsInf(s, 1) {
				return false
			}
		}
	}
	return true
}
