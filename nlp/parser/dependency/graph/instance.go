package graph

import (
	"math/rand"

	arborescence "dense/alg/graph"
	"dense/nlp/parser/dependency"
	"dense/util"
)

// An Instance is one sentence in id form with ROOT at index 0. Heads and
// Labels hold the gold tree; they are nil for sentences to be parsed.
type Instance struct {
	Words  []int
	POS    []int
	Heads  []int
	Labels []int
}

func (inst *Instance) Len() int {
	return len(inst.Words)
}

// NewInstance reads ids and the gold tree off a converted sentence.
func NewInstance(g *dependency.BasicDepGraph) *Instance {
	inst := &Instance{
		Words: make([]int, len(g.Nodes)),
		POS:   make([]int, len(g.Nodes)),
	}
	for i, node := range g.Nodes {
		tagged := node.(*dependency.TaggedDepNode)
		inst.Words[i], inst.POS[i] = tagged.Token, tagged.POS
	}
	if g.NumberOfArcs() > 0 {
		inst.Heads, inst.Labels = g.Heads(), g.Labels()
	}
	return inst
}

func NewInstances(graphs []*dependency.BasicDepGraph) []*Instance {
	instances := make([]*Instance, len(graphs))
	for i, g := range graphs {
		instances[i] = NewInstance(g)
	}
	return instances
}

// A Batch holds sentences padded with PAD tokens to the longest one.
// Mask[b][i] is true for the real non-root tokens of sentence b.
type Batch struct {
	Instances []*Instance
	Lengths   []int
	Mask      [][]bool
	Width     int
}

// NewBatch pads every instance to the longest; padding tokens have no gold
// head.
func NewBatch(instances []*Instance) *Batch {
	b := &Batch{
		Instances: make([]*Instance, len(instances)),
		Lengths:   make([]int, len(instances)),
		Mask:      make([][]bool, len(instances)),
	}
	for _, inst := range instances {
		b.Width = util.Max(b.Width, inst.Len())
	}
	for i, inst := range instances {
		b.Lengths[i] = inst.Len()
		b.Instances[i] = pad(inst, b.Width)
		b.Mask[i] = make([]bool, b.Width)
		for j := 1; j < inst.Len(); j++ {
			b.Mask[i][j] = true
		}
	}
	return b
}

func pad(inst *Instance, width int) *Instance {
	padded := &Instance{
		Words: make([]int, width),
		POS:   make([]int, width),
	}
	copy(padded.Words, inst.Words)
	copy(padded.POS, inst.POS)
	for i := inst.Len(); i < width; i++ {
		padded.Words[i], padded.POS[i] = util.PAD_ID, util.PAD_ID
	}
	if inst.Heads != nil {
		padded.Heads = make([]int, width)
		padded.Labels = make([]int, width)
		copy(padded.Heads, inst.Heads)
		copy(padded.Labels, inst.Labels)
		for i := inst.Len(); i < width; i++ {
			padded.Heads[i] = arborescence.NoHead
		}
	}
	return padded
}

// Tokens counts the real non-root tokens of the batch.
func (b *Batch) Tokens() int {
	var tokens int
	for _, n := range b.Lengths {
		tokens += n - 1
	}
	return tokens
}

// Batches cuts instances into consecutive batches of at most size
// sentences.
func Batches(instances []*Instance, size int) []*Batch {
	if size <= 0 {
		size = 1
	}
	batches := make([]*Batch, 0, (len(instances)+size-1)/size)
	for start := 0; start < len(instances); start += size {
		end := util.Min(start+size, len(instances))
		batches = append(batches, NewBatch(instances[start:end]))
	}
	return batches
}

// Shuffle returns a permuted copy of instances.
func Shuffle(rnd *rand.Rand, instances []*Instance) []*Instance {
	shuffled := append([]*Instance(nil), instances...)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
