package types

import (
	"dense/alg/graph"
	"dense/util"
)

type DepNode interface {
	graph.Vertex
	String() string
}

type DepArc interface {
	graph.DirectedEdge
	GetModifier() int
	GetHead() int
	String() string
}

type DepRel string

func (d DepRel) String() string {
	return string(d)
}

type LabeledDepArc interface {
	DepArc
	GetRelation() DepRel
}

type Labeled interface {
	GetLabeledArc(int) LabeledDepArc
}

// A DependencyGraph numbers its nodes 0..n with 0 the synthetic ROOT.
type DependencyGraph interface {
	graph.DirectedGraph
	GetNode(int) DepNode
	GetArc(int) DepArc
	NumberOfNodes() int
	NumberOfArcs() int
	Equal(otherEq util.Equaler) bool
	TaggedSentence() TaggedSentence
}

type LabeledDependencyGraph interface {
	DependencyGraph
	Labeled
}
