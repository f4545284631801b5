package rewrite

import (
	"context"

	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// state is a configuration reached by Search. Two states are the same when
// their term and constraint render the same.
type state struct {
	ct  *symbolic.ConstrainedTerm
	key string
}

func (s *state) Hash() string { return s.key }

func newState(ct *symbolic.ConstrainedTerm) *state {
	return &state{ct: ct, key: ct.String()}
}

// Search explores every successor of t level by level, expanding the states
// of a level in parallel. States already visited are not explored again.
// With a pattern it returns the states matching it; without one it returns
// the states no rule applies to, and the states left unexplored at depth.
// A negative depth means no bound.
func (rw *Rewriter) Search(ctx context.Context, t term.Term, depth int, pattern term.Term) ([]*symbolic.ConstrainedTerm, error) {
	run := uuid.NewString()
	runLog := logger.With("run", run)

	var goal *symbolic.ConstrainedTerm
	if pattern != nil {
		goal = symbolic.NewConstrainedTerm(rw.ctx, pattern, nil)
	}
	var results []*symbolic.ConstrainedTerm
	matches := func(s *state) bool {
		return goal != nil && s.ct.MatchImplies(goal) != nil
	}

	start := newState(rw.Initial(t))
	visited := set.NewHashSet[*state, string](0)
	visited.Insert(start)
	rw.metrics.SearchStates.Inc()
	if matches(start) {
		results = append(results, start.ct)
	}

	frontier := []*state{start}
	for level := 0; len(frontier) > 0; level++ {
		if depth >= 0 && level == depth {
			if goal == nil {
				for _, s := range frontier {
					results = append(results, s.ct)
				}
			}
			break
		}
		runLog.Debug("expanding", "level", level, "states", len(frontier))

		successors := make([][]*symbolic.ConstrainedTerm, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(rw.config.Parallelism)
		for i, s := range frontier {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				next, err := rw.step(s.ct, AllMatches)
				if err != nil {
					return errors.Wrapf(err, "could not expand %v", s.ct.Term())
				}
				successors[i] = next
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}

		var next []*state
		for i, s := range frontier {
			if len(successors[i]) == 0 && goal == nil {
				results = append(results, s.ct)
			}
			for _, ct := range successors[i] {
				ns := newState(ct)
				if !visited.Insert(ns) {
					continue
				}
				rw.metrics.SearchStates.Inc()
				if matches(ns) {
					results = append(results, ns.ct)
				}
				next = append(next, ns)
			}
		}
		frontier = next
	}
	runLog.Debug("search done", "visited", visited.Size(), "results", len(results))
	return results, nil
}
