package dependency

import (
	"errors"
	"fmt"

	"dense/alg/graph"
)

var (
	ErrHeadRange     = errors.New("head index out of range")
	ErrSelfLoop      = errors.New("token is its own head")
	ErrCycle         = errors.New("cycle in dependency tree")
	ErrNoRoot        = errors.New("no token attached to ROOT")
	ErrMultipleRoots = errors.New("more than one token attached to ROOT")
)

// Validate checks that heads (indexed by node, heads[0] for ROOT) describe a
// spanning arborescence rooted at node 0. With singleRoot set exactly one
// token may attach to ROOT.
func Validate(heads []int, singleRoot bool) error {
	n := len(heads)
	if n == 0 {
		return fmt.Errorf("%w: empty head assignment", ErrHeadRange)
	}
	if heads[0] != graph.NoHead {
		return fmt.Errorf("%w: ROOT has head %d", ErrHeadRange, heads[0])
	}
	for d := 1; d < n; d++ {
		switch h := heads[d]; {
		case h < 0 || h >= n:
			return fmt.Errorf("%w: token %d has head %d (sentence length %d)", ErrHeadRange, d, h, n-1)
		case h == d:
			return fmt.Errorf("%w: token %d", ErrSelfLoop, d)
		}
	}
	// every walk must reach ROOT within n steps
	for d := 1; d < n; d++ {
		cur := d
		for steps := 0; cur != 0; steps++ {
			if steps >= n {
				return fmt.Errorf("%w: token %d is its own ancestor", ErrCycle, d)
			}
			cur = heads[cur]
		}
	}
	if n == 1 {
		return nil
	}
	roots := graph.RootDependents(heads, 0)
	switch {
	case len(roots) == 0:
		return ErrNoRoot
	case singleRoot && len(roots) > 1:
		return fmt.Errorf("%w: tokens %v", ErrMultipleRoots, roots)
	}
	return nil
}
