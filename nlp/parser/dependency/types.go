package dependency

import (
	"fmt"
	"reflect"
	"strings"

	"dense/alg/graph"
	nlp "dense/nlp/types"
	"dense/util"
)

type TaggedDepNode struct {
	Id       int
	Token    int
	POS      int
	RawToken string
	RawPOS   string
}

var _ nlp.DepNode = &TaggedDepNode{}

func (t *TaggedDepNode) ID() int {
	return t.Id
}

func (t *TaggedDepNode) String() string {
	return t.RawToken
}

func (t *TaggedDepNode) Equal(otherEq util.Equaler) bool {
	other, ok := otherEq.(*TaggedDepNode)
	return ok && reflect.DeepEqual(t, other)
}

type BasicDepArc struct {
	Head        int
	Relation    int
	Modifier    int
	RawRelation nlp.DepRel
}

var _ nlp.LabeledDepArc = &BasicDepArc{}

func (arc *BasicDepArc) ID() int {
	return arc.Modifier
}

func (arc *BasicDepArc) Vertices() []int {
	return []int{arc.Head, arc.Modifier}
}

func (arc *BasicDepArc) From() int {
	return arc.Head
}

func (arc *BasicDepArc) To() int {
	return arc.Modifier
}

func (arc *BasicDepArc) GetHead() int {
	return arc.Head
}

func (arc *BasicDepArc) GetModifier() int {
	return arc.Modifier
}

func (arc *BasicDepArc) GetRelation() nlp.DepRel {
	return arc.RawRelation
}

func (arc *BasicDepArc) Equal(otherEq util.Equaler) bool {
	other, ok := otherEq.(*BasicDepArc)
	return ok && arc.Head == other.Head && arc.Modifier == other.Modifier && arc.RawRelation == other.RawRelation
}

func (arc *BasicDepArc) String() string {
	return fmt.Sprintf("(%d,%d-%s,%d)", arc.GetHead(), arc.Relation, arc.RawRelation, arc.GetModifier())
}

// NoRelation is the label id of a gold relation outside the label set.
const NoRelation = -1

// A BasicDepGraph is a labeled dependency tree over a sentence with the
// synthetic ROOT at node 0. Arcs is indexed by modifier: Arcs[0] is nil and
// Arcs[i] holds the incoming arc of node i.
type BasicDepGraph struct {
	Nodes []nlp.DepNode
	Arcs  []*BasicDepArc
}

var _ nlp.LabeledDependencyGraph = &BasicDepGraph{}

// NewBasicDepGraph builds a tree from parallel head and label-id slices,
// both indexed by node with entry 0 belonging to ROOT. A NoRelation label
// leaves the raw relation empty.
func NewBasicDepGraph(nodes []nlp.DepNode, heads, labels []int, eRel *util.EnumSet) *BasicDepGraph {
	if len(heads) != len(nodes) || len(labels) != len(nodes) {
		panic(fmt.Sprintf("Got %d nodes, %d heads and %d labels", len(nodes), len(heads), len(labels)))
	}
	arcs := make([]*BasicDepArc, len(nodes))
	for i := 1; i < len(nodes); i++ {
		arcs[i] = &BasicDepArc{
			Head:     heads[i],
			Relation: labels[i],
			Modifier: i,
		}
		if labels[i] != NoRelation {
			arcs[i].RawRelation = nlp.DepRel(eRel.ValueOf(labels[i]))
		}
	}
	return &BasicDepGraph{nodes, arcs}
}

func (g *BasicDepGraph) GetVertices() []int {
	return util.RangeInt(len(g.Nodes))
}

// GetEdges lists the modifiers that have an arc, in order.
func (g *BasicDepGraph) GetEdges() []int {
	edges := make([]int, 0, len(g.Arcs))
	for i, arc := range g.Arcs {
		if arc != nil {
			edges = append(edges, i)
		}
	}
	return edges
}

func (g *BasicDepGraph) GetVertex(n int) graph.Vertex {
	if n < 0 || n >= len(g.Nodes) {
		return nil
	}
	return graph.Vertex(g.Nodes[n])
}

func (g *BasicDepGraph) GetEdge(n int) graph.Edge {
	if arc := g.arc(n); arc != nil {
		return graph.Edge(arc)
	}
	return nil
}

func (g *BasicDepGraph) GetDirectedEdge(n int) graph.DirectedEdge {
	if arc := g.arc(n); arc != nil {
		return graph.DirectedEdge(arc)
	}
	return nil
}

func (g *BasicDepGraph) NumberOfVertices() int {
	return len(g.Nodes)
}

func (g *BasicDepGraph) NumberOfEdges() int {
	return len(g.GetEdges())
}

func (g *BasicDepGraph) GetNode(n int) nlp.DepNode {
	if n < 0 || n >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[n]
}

func (g *BasicDepGraph) GetArc(n int) nlp.DepArc {
	if arc := g.arc(n); arc != nil {
		return nlp.DepArc(arc)
	}
	return nil
}

func (g *BasicDepGraph) GetLabeledArc(n int) nlp.LabeledDepArc {
	if arc := g.arc(n); arc != nil {
		return nlp.LabeledDepArc(arc)
	}
	return nil
}

func (g *BasicDepGraph) arc(n int) *BasicDepArc {
	if n < 0 || n >= len(g.Arcs) || g.Arcs[n] == nil {
		return nil
	}
	if g.Arcs[n].GetModifier() != n {
		panic(fmt.Sprintf("Arc of modifier is not equal to modifier; got %d expected %d", g.Arcs[n].GetModifier(), n))
	}
	return g.Arcs[n]
}

func (g *BasicDepGraph) NumberOfNodes() int {
	return g.NumberOfVertices()
}

func (g *BasicDepGraph) NumberOfArcs() int {
	return g.NumberOfEdges()
}

// Heads returns the head of every node, graph.NoHead for ROOT and for
// nodes without an arc.
func (g *BasicDepGraph) Heads() []int {
	heads := make([]int, len(g.Nodes))
	for i := range heads {
		heads[i] = graph.NoHead
		if arc := g.arc(i); arc != nil {
			heads[i] = arc.Head
		}
	}
	return heads
}

// Labels returns the relation id of every node's arc, 0 where there is none.
func (g *BasicDepGraph) Labels() []int {
	labels := make([]int, len(g.Nodes))
	for i := range labels {
		if arc := g.arc(i); arc != nil {
			labels[i] = arc.Relation
		}
	}
	return labels
}

func (g *BasicDepGraph) StringEdges() string {
	arcs := make([]string, 0, len(g.Arcs))
	for _, arc := range g.Arcs {
		if arc != nil {
			arcs = append(arcs, arc.String())
		}
	}
	return strings.Join(arcs, "\n")
}

func (g *BasicDepGraph) Equal(otherEq util.Equaler) bool {
	other, ok := otherEq.(nlp.LabeledDependencyGraph)
	if !ok || g.NumberOfNodes() != other.NumberOfNodes() || g.NumberOfArcs() != other.NumberOfArcs() {
		return false
	}
	for i := range g.Nodes {
		if !g.Nodes[i].Equal(other.GetNode(i)) {
			return false
		}
		mine, theirs := g.GetLabeledArc(i), other.GetLabeledArc(i)
		if (mine == nil) != (theirs == nil) {
			return false
		}
		if mine != nil && (mine.GetHead() != theirs.GetHead() || mine.GetRelation() != theirs.GetRelation()) {
			return false
		}
	}
	return true
}

// TaggedSentence returns the real tokens, without ROOT.
func (g *BasicDepGraph) TaggedSentence() nlp.TaggedSentence {
	sent := make(nlp.BasicETaggedSentence, 0, len(g.Nodes))
	for _, node := range g.Nodes[1:] {
		taggedNode := node.(*TaggedDepNode)
		sent = append(sent, nlp.EnumTaggedToken{
			TaggedToken: nlp.TaggedToken{Token: taggedNode.RawToken, POS: taggedNode.RawPOS},
			EToken:      taggedNode.Token,
			EPOS:        taggedNode.POS,
		})
	}
	return sent
}
