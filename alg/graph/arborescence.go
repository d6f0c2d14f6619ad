package graph

// Maximum spanning arborescence over a dense score matrix (Chu-Liu/Edmonds).
//
// Nodes are integer ids in an arena: the n real nodes keep ids 0..n-1 and
// every contracted cycle gets a fresh id n, n+1, ... Contractions are pushed
// on an explicit stack of frames and unwound once a level has no cycle.

import (
	"fmt"
	"math"
)

// An Arc is a candidate head -> dependent edge. Head and Dependent always
// refer to the original (uncontracted) nodes, From and To to the nodes of
// the graph the arc currently lives in.
type Arc struct {
	From, To        int
	Head, Dependent int
	Score           float64
}

type contraction struct {
	node    int
	members []int
	// incoming arc chosen for each member before the contraction
	chosen map[int]Arc
	// owner of each original node before the contraction
	owner []int
}

// NoHead marks the root in a head assignment.
const NoHead = -1

// MaxArborescence returns the heads of the highest scoring spanning
// arborescence rooted at root, and its total score. scores[h][d] is the score
// of the arc h -> d; entries equal to -Inf are not candidates. Candidate heads
// are scanned in increasing index order and only a strictly better score
// replaces the current best, so ties go to the lowest head index.
//
// scores must be square, free of NaN and +Inf, and every non-root node must
// have at least one candidate head; violations panic.
func MaxArborescence(scores [][]float64, root int) ([]int, float64) {
	n := len(scores)
	checkScores(scores, root)
	heads := make([]int, n)
	for i := range heads {
		heads[i] = NoHead
	}
	if n <= 1 {
		return heads, 0
	}

	arcs := make([]Arc, 0, n*n)
	// dependent-major order keeps the scan deterministic after contraction
	for d := 0; d < n; d++ {
		if d == root {
			continue
		}
		for h := 0; h < n; h++ {
			if h == d || math.IsInf(scores[h][d], -1) {
				continue
			}
			arcs = append(arcs, Arc{From: h, To: d, Head: h, Dependent: d, Score: scores[h][d]})
		}
	}

	nodes := make([]int, n)
	owner := make([]int, n)
	for i := range nodes {
		nodes[i] = i
		owner[i] = i
	}
	next := n
	var stack []contraction

	var best map[int]Arc
	for {
		best = bestIncoming(nodes, arcs, root)
		cycle := findCycle(nodes, best, root)
		if cycle == nil {
			break
		}
		frame := contraction{
			node:    next,
			members: cycle,
			chosen:  make(map[int]Arc, len(cycle)),
			owner:   append([]int(nil), owner...),
		}
		inCycle := make(map[int]bool, len(cycle))
		for _, m := range cycle {
			inCycle[m] = true
			frame.chosen[m] = best[m]
		}
		contracted := arcs[:0:0]
		for _, a := range arcs {
			fromIn, toIn := inCycle[a.From], inCycle[a.To]
			switch {
			case fromIn && toIn:
				continue
			case toIn:
				a.Score -= frame.chosen[a.To].Score
				a.To = frame.node
			case fromIn:
				a.From = frame.node
			}
			contracted = append(contracted, a)
		}
		arcs = contracted
		for i, o := range owner {
			if inCycle[o] {
				owner[i] = frame.node
			}
		}
		remaining := nodes[:0:0]
		for _, v := range nodes {
			if !inCycle[v] {
				remaining = append(remaining, v)
			}
		}
		nodes = append(remaining, frame.node)
		stack = append(stack, frame)
		next++
	}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entering := best[frame.node]
		delete(best, frame.node)
		broken := frame.owner[entering.Dependent]
		for _, m := range frame.members {
			if m == broken {
				best[m] = entering
			} else {
				best[m] = frame.chosen[m]
			}
		}
	}

	for _, a := range best {
		heads[a.Dependent] = a.Head
	}
	return heads, TreeScore(scores, heads)
}

// MaxArborescenceSingleRoot is MaxArborescence restricted to trees in which
// root has exactly one dependent. When the unconstrained optimum already has a
// single root dependent it is returned as is; otherwise every candidate root
// dependent is tried with the other root arcs removed and the best tree wins,
// ties going to the lowest dependent index.
func MaxArborescenceSingleRoot(scores [][]float64, root int) ([]int, float64) {
	heads, total := MaxArborescence(scores, root)
	if len(RootDependents(heads, root)) <= 1 {
		return heads, total
	}
	n := len(scores)
	masked := make([][]float64, n)
	for h := range scores {
		masked[h] = scores[h]
	}
	rootRow := make([]float64, n)
	masked[root] = rootRow

	var (
		bestHeads []int
		bestTotal = math.Inf(-1)
	)
	for r := 0; r < n; r++ {
		if r == root || math.IsInf(scores[root][r], -1) {
			continue
		}
		for d := range rootRow {
			rootRow[d] = math.Inf(-1)
		}
		rootRow[r] = scores[root][r]
		candidate, candidateTotal := MaxArborescence(masked, root)
		if bestHeads == nil || candidateTotal > bestTotal {
			bestHeads, bestTotal = candidate, candidateTotal
		}
	}
	return bestHeads, bestTotal
}

// RootDependents lists the nodes attached directly to root, in index order.
func RootDependents(heads []int, root int) []int {
	var deps []int
	for d, h := range heads {
		if d != root && h == root {
			deps = append(deps, d)
		}
	}
	return deps
}

// TreeScore sums scores over the arcs of a head assignment.
func TreeScore(scores [][]float64, heads []int) float64 {
	var total float64
	for d, h := range heads {
		if h == NoHead {
			continue
		}
		total += scores[h][d]
	}
	return total
}

// HasCycle reports whether following heads from any node revisits a node.
// Walks are bounded by the number of nodes.
func HasCycle(heads []int) bool {
	n := len(heads)
	for start := range heads {
		cur := start
		for steps := 0; cur != NoHead; steps++ {
			if steps > n {
				return true
			}
			if cur < 0 || cur >= n {
				break
			}
			cur = heads[cur]
		}
	}
	return false
}

func bestIncoming(nodes []int, arcs []Arc, root int) map[int]Arc {
	best := make(map[int]Arc, len(nodes))
	for _, a := range arcs {
		if cur, exists := best[a.To]; !exists || a.Score > cur.Score {
			best[a.To] = a
		}
	}
	for _, v := range nodes {
		if v == root {
			continue
		}
		if _, exists := best[v]; !exists {
			panic(fmt.Sprintf("node %d has no candidate head", v))
		}
	}
	return best
}

// findCycle returns the members of the first cycle formed by the chosen
// incoming arcs, scanning start nodes in the order given.
func findCycle(nodes []int, best map[int]Arc, root int) []int {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[int]int, len(nodes))
	for _, start := range nodes {
		if state[start] != unvisited {
			continue
		}
		var path []int
		cur := start
		for cur != root && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = best[cur].From
		}
		if cur != root && state[cur] == onPath {
			var cycle []int
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, path[i])
				if path[i] == cur {
					break
				}
			}
			return cycle
		}
		for _, v := range path {
			state[v] = done
		}
	}
	return nil
}

func checkScores(scores [][]float64, root int) {
	n := len(scores)
	if n > 0 && (root < 0 || root >= n) {
		panic(fmt.Sprintf("root %d out of range for %d nodes", root, n))
	}
	for h, row := range scores {
		if len(row) != n {
			panic(fmt.Sprintf("score row %d has %d entries, expected %d", h, len(row), n))
		}
		for d, s := range row {
			if math.IsNaN(s) || math.IsInf(s, 1) {
				panic(fmt.Sprintf("invalid score %v for arc %d -> %d", s, h, d))
			}
		}
	}
}
