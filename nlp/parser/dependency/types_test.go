package dependency

import (
	"errors"
	"reflect"
	"testing"

	"dense/alg/graph"
	nlp "dense/nlp/types"
	"dense/util"
)

func TestTaggedDepNode(t *testing.T) {
	node := &TaggedDepNode{1, 3, 4, "token", "tag"}
	if node.ID() != 1 {
		t.Error("Got wrong ID")
	}
	if node.String() != "token" {
		t.Error("Got wrong String representation")
	}
	other := node
	if !node.Equal(other) {
		t.Error("Failed equality on equal pointers")
	}
	other = &TaggedDepNode{1, 3, 5, "token", "tag2"}
	if node.Equal(other) {
		t.Error("Returned equal on non-equal nodes")
	}
	other.RawPOS = "tag"
	other.POS = 4
	if !node.Equal(other) {
		t.Error("Returned not equal on equal by value")
	}
}

func TestBasicDepArc(t *testing.T) {
	arc := &BasicDepArc{1, 0, 5, nlp.DepRel("rel")}
	vertices := arc.Vertices()
	if len(vertices) != 2 || vertices[0] != 1 || vertices[1] != 5 {
		t.Error("Wrong Vertices", vertices)
	}
	if arc.From() != 1 {
		t.Error("Wrong from vertex")
	}
	if arc.To() != 5 {
		t.Error("Wrong to vertex")
	}
	if arc.GetHead() != 1 || arc.GetModifier() != 5 {
		t.Error("Wrong head or modifier")
	}
	if arc.GetRelation() != nlp.DepRel("rel") {
		t.Error("Wrong relation")
	}
}

func dogsBark() *BasicDepGraph {
	eRel := util.NewEnumSet(3)
	eRel.Add("root")
	eRel.Add("nsubj")
	eRel.Add("advmod")
	nodes := []nlp.DepNode{
		&TaggedDepNode{0, util.ROOT_ID, util.ROOT_ID, nlp.ROOT_TOKEN, nlp.ROOT_POS},
		&TaggedDepNode{1, 3, 3, "Dogs", "NNS"},
		&TaggedDepNode{2, 4, 4, "bark", "VBP"},
		&TaggedDepNode{3, 5, 5, "loudly", "RB"},
	}
	return NewBasicDepGraph(nodes, []int{graph.NoHead, 2, 0, 2}, []int{0, 1, 0, 2}, eRel)
}

func TestBasicDepGraph(t *testing.T) {
	g := &BasicDepGraph{[]nlp.DepNode{}, []*BasicDepArc{}}
	if g.NumberOfNodes() != 0 || g.NumberOfArcs() != 0 || g.NumberOfEdges() != 0 || g.NumberOfVertices() != 0 {
		t.Error("Got wrong number of Nodes/Arcs/Edges/Vertices for empty graph")
	}
	if g.GetVertex(0) != nil || g.GetEdge(0) != nil || g.GetNode(0) != nil || g.GetArc(0) != nil {
		t.Error("Got non-nil edge/vertex/arc/node for empty graph")
	}

	g = dogsBark()
	if g.NumberOfNodes() != 4 || g.NumberOfArcs() != 3 {
		t.Errorf("Got %d nodes and %d arcs", g.NumberOfNodes(), g.NumberOfArcs())
	}
	if g.GetArc(0) != nil {
		t.Error("ROOT should have no arc")
	}
	if g.GetLabeledArc(1).GetRelation() != "nsubj" {
		t.Error("Wrong relation for Dogs")
	}
	if !reflect.DeepEqual(g.Heads(), []int{graph.NoHead, 2, 0, 2}) {
		t.Error("Wrong heads", g.Heads())
	}
	if !reflect.DeepEqual(g.Labels(), []int{0, 1, 0, 2}) {
		t.Error("Wrong labels", g.Labels())
	}
	if !reflect.DeepEqual(g.GetEdges(), []int{1, 2, 3}) {
		t.Error("Wrong edge indices", g.GetEdges())
	}
	if len(g.StringEdges()) == 0 {
		t.Error("Got empty StringEdges()")
	}
	if got := g.TaggedSentence().Tokens(); !reflect.DeepEqual(got, []string{"Dogs", "bark", "loudly"}) {
		t.Error("Wrong tokens", got)
	}
	if !g.Equal(dogsBark()) {
		t.Error("Equal graphs reported different")
	}
	other := dogsBark()
	other.Arcs[3].Head = 1
	if g.Equal(other) {
		t.Error("Graphs with different heads reported equal")
	}
}

func TestValidate(t *testing.T) {
	n := graph.NoHead
	for i, test := range []struct {
		heads      []int
		singleRoot bool
		err        error
	}{
		{[]int{n}, true, nil},
		{[]int{n, 2, 0, 2}, true, nil},
		{[]int{n, 0, 0, 2}, false, nil},
		{[]int{n, 0, 0, 2}, true, ErrMultipleRoots},
		{[]int{n, 2, 1, 0}, true, ErrCycle},
		{[]int{n, 1}, true, ErrSelfLoop},
		{[]int{n, 4, 0}, true, ErrHeadRange},
		{[]int{0, 0}, true, ErrHeadRange},
	} {
		err := Validate(test.heads, test.singleRoot)
		if test.err == nil && err != nil {
			t.Errorf("Test %d: unexpected error %v", i, err)
		}
		if test.err != nil && !errors.Is(err, test.err) {
			t.Errorf("Test %d: expected %v, got %v", i, test.err, err)
		}
	}
}
