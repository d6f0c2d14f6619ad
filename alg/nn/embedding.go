package nn

import (
	"fmt"
	"math/rand"
)

// An Embedding maps ids to rows of a vocabulary x dim table.
type Embedding struct {
	*Param
}

func NewEmbedding(name string, vocab, dim int, rnd *rand.Rand) *Embedding {
	return &Embedding{NewParam(name, vocab, dim, rnd, GlorotScale(1, dim))}
}

func (e *Embedding) Dim() int {
	_, c := e.Value.Dims()
	return c
}

func (e *Embedding) Lookup(id int) []float64 {
	r, c := e.Value.Dims()
	if id < 0 || id >= r {
		panic(fmt.Sprintf("embedding %s: id %d out of range %d", e.Name, id, r))
	}
	row := make([]float64, c)
	copy(row, e.Value.RawRowView(id))
	return row
}

// Backward adds grad into the gradient row of id.
func (e *Embedding) Backward(id int, grad []float64) {
	row := e.Grad.RawRowView(id)
	for i, g := range grad {
		row[i] += g
	}
}
