package graph

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

var negInf = math.Inf(-1)

// two greedy cycles, {1,2} and {3,4}; the optimum enters the first at 2 and
// the second at 3
func twoCycleScores() [][]float64 {
	return [][]float64{
		{negInf, 5, 1, 1, 1},
		{negInf, negInf, 10, 2, 1},
		{negInf, 20, negInf, 3, 1},
		{negInf, 1, 1, negInf, 9},
		{negInf, 1, 1, 8, negInf},
	}
}

func TestMaxArborescenceContractsCycles(t *testing.T) {
	heads, total := MaxArborescence(twoCycleScores(), 0)
	expected := []int{NoHead, 2, 0, 2, 3}
	if !reflect.DeepEqual(heads, expected) {
		t.Errorf("Expected heads %v, got %v", expected, heads)
	}
	if total != 33 {
		t.Errorf("Expected total 33, got %v", total)
	}
	if TreeScore(twoCycleScores(), heads) != total {
		t.Error("Returned total differs from the score of the returned tree")
	}
}

func TestMaxArborescenceNoCycle(t *testing.T) {
	scores := [][]float64{
		{negInf, 1, 9, 1},
		{negInf, negInf, 1, 1},
		{negInf, 7, negInf, 6},
		{negInf, 1, 1, negInf},
	}
	heads, total := MaxArborescence(scores, 0)
	if !reflect.DeepEqual(heads, []int{NoHead, 2, 0, 2}) {
		t.Errorf("Got heads %v", heads)
	}
	if total != 22 {
		t.Errorf("Expected total 22, got %v", total)
	}
}

func TestMaxArborescenceTrivial(t *testing.T) {
	heads, total := MaxArborescence([][]float64{{negInf}}, 0)
	if len(heads) != 1 || heads[0] != NoHead || total != 0 {
		t.Errorf("Expected root-only tree, got %v (%v)", heads, total)
	}
	heads, total = MaxArborescence([][]float64{}, 0)
	if len(heads) != 0 || total != 0 {
		t.Errorf("Expected empty tree, got %v (%v)", heads, total)
	}
}

func TestMaxArborescenceTieBreak(t *testing.T) {
	scores := [][]float64{
		{negInf, 0, 0, 0},
		{negInf, negInf, 0, 0},
		{negInf, 0, negInf, 0},
		{negInf, 0, 0, negInf},
	}
	heads, _ := MaxArborescence(scores, 0)
	if !reflect.DeepEqual(heads, []int{NoHead, 0, 0, 0}) {
		t.Errorf("Ties should go to the lowest head, got %v", heads)
	}
	heads, _ = MaxArborescenceSingleRoot(scores, 0)
	if !reflect.DeepEqual(heads, []int{NoHead, 0, 1, 1}) {
		t.Errorf("Single root ties should go to the lowest dependent, got %v", heads)
	}
}

func TestMaxArborescenceDeterministic(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	scores := randomScores(rnd, 8)
	first, firstTotal := MaxArborescenceSingleRoot(scores, 0)
	for i := 0; i < 10; i++ {
		heads, total := MaxArborescenceSingleRoot(scores, 0)
		if !reflect.DeepEqual(first, heads) || total != firstTotal {
			t.Fatalf("Decode %d differs: %v vs %v", i, heads, first)
		}
	}
}

func TestMaxArborescenceSingleRoot(t *testing.T) {
	scores := [][]float64{
		{negInf, 10, 10, 1},
		{negInf, negInf, 2, 5},
		{negInf, 3, negInf, 1},
		{negInf, 1, 1, negInf},
	}
	heads, total := MaxArborescence(scores, 0)
	if len(RootDependents(heads, 0)) != 2 {
		t.Fatalf("Expected the unconstrained tree to have two root dependents, got %v", heads)
	}
	if total != 25 {
		t.Errorf("Expected unconstrained total 25, got %v", total)
	}
	heads, total = MaxArborescenceSingleRoot(scores, 0)
	if !reflect.DeepEqual(heads, []int{NoHead, 2, 0, 1}) {
		t.Errorf("Got heads %v", heads)
	}
	if total != 18 {
		t.Errorf("Expected total 18, got %v", total)
	}
}

func TestMaxArborescenceMatchesBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 60; trial++ {
		n := 2 + trial%5
		scores := randomScores(rnd, n)

		heads, total := MaxArborescence(scores, 0)
		if !isTree(heads, 0, false) {
			t.Fatalf("Trial %d: not a tree: %v", trial, heads)
		}
		if best := bruteForce(scores, false); math.Abs(best-total) > 1e-9 {
			t.Errorf("Trial %d: expected %v, got %v (%v)", trial, best, total, heads)
		}

		heads, total = MaxArborescenceSingleRoot(scores, 0)
		if !isTree(heads, 0, true) {
			t.Fatalf("Trial %d: not a single root tree: %v", trial, heads)
		}
		if best := bruteForce(scores, true); math.Abs(best-total) > 1e-9 {
			t.Errorf("Trial %d (single root): expected %v, got %v (%v)", trial, best, total, heads)
		}
	}
}

func TestHasCycle(t *testing.T) {
	if HasCycle([]int{NoHead, 0, 1, 1}) {
		t.Error("Tree reported as cyclic")
	}
	if !HasCycle([]int{NoHead, 2, 1, 0}) {
		t.Error("Cycle 1 <-> 2 not found")
	}
	if !HasCycle([]int{NoHead, 1}) {
		t.Error("Self loop not found")
	}
}

func TestMaxArborescencePanicsOnNaN(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on NaN score")
		}
	}()
	MaxArborescence([][]float64{{negInf, math.NaN()}, {negInf, negInf}}, 0)
}

func randomScores(rnd *rand.Rand, n int) [][]float64 {
	scores := make([][]float64, n)
	for h := range scores {
		scores[h] = make([]float64, n)
		for d := range scores[h] {
			if h == d || d == 0 {
				scores[h][d] = negInf
			} else {
				scores[h][d] = rnd.NormFloat64() * 3
			}
		}
	}
	return scores
}

func isTree(heads []int, root int, singleRoot bool) bool {
	if heads[root] != NoHead || HasCycle(heads) {
		return false
	}
	for d, h := range heads {
		if d != root && (h < 0 || h >= len(heads) || h == d) {
			return false
		}
	}
	deps := len(RootDependents(heads, root))
	if len(heads) > 1 && deps == 0 {
		return false
	}
	return !singleRoot || deps <= 1
}

// bruteForce enumerates every head assignment of a small graph rooted at 0
func bruteForce(scores [][]float64, singleRoot bool) float64 {
	n := len(scores)
	heads := make([]int, n)
	heads[0] = NoHead
	best := negInf
	var rec func(d int)
	rec = func(d int) {
		if d == n {
			if isTree(heads, 0, singleRoot) {
				if s := TreeScore(scores, heads); s > best {
					best = s
				}
			}
			return
		}
		for h := 0; h < n; h++ {
			if h == d {
				continue
			}
			heads[d] = h
			rec(d + 1)
		}
	}
	rec(1)
	return best
}
