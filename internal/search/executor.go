package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/query"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// Config holds engine tunables.
type Config struct {
	// BatchSize is how many sessions are fetched concurrently (default: 8)
	BatchSize int

	// FetchTimeout bounds each individual repository fetch (default: 3s)
	FetchTimeout time.Duration

	// FetchRateLimit caps repository fetches per second (0 = unlimited)
	FetchRateLimit float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    8,
		FetchTimeout: 3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// Executor evaluates an AST against one corpus snapshot. It is built per
// search call and discarded afterwards.
type Executor struct {
	sessions      []Session
	loader        *contentLoader
	batchSize     int
	caseSensitive bool
}

// NewExecutor creates an executor over a validated snapshot.
func NewExecutor(sessions []Session, repo Repository, cfg Config, opts SearchOptions) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		sessions:      sessions,
		loader:        newContentLoader(repo, cfg, !opts.ExcludeSystemMessages),
		batchSize:     cfg.BatchSize,
		caseSensitive: opts.CaseSensitive,
	}
}

// Evaluate computes the sessions matched by node. The only error returned is
// the cancellation of ctx.
func (e *Executor) Evaluate(ctx context.Context, node query.Node) (MatchResult, error) {
	return e.eval(ctx, node, false)
}

func (e *Executor) eval(ctx context.Context, node query.Node, titleOnly bool) (MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return noMatch(), err
	}

	switch n := node.(type) {
	case *query.AndNode:
		return e.evalAnd(ctx, n, titleOnly)
	case *query.OrNode:
		return e.evalOr(ctx, n, titleOnly)
	case *query.TitleNode:
		return e.eval(ctx, n.Child, true)
	case *query.ExactNode:
		return e.evalTerm(ctx, n.Value, titleOnly)
	case *query.WordNode:
		return e.evalTerm(ctx, n.Value, titleOnly)
	case nil:
		return noMatch(), nil
	default:
		return noMatch(), fmt.Errorf("search: unknown node %T", node)
	}
}

// evalAnd folds children left to right, intersecting session sets, and stops
// as soon as the running set is empty. Terms of children that were never
// evaluated are not reported.
func (e *Executor) evalAnd(ctx context.Context, n *query.AndNode, titleOnly bool) (MatchResult, error) {
	if len(n.Children) == 0 {
		return noMatch(), nil
	}

	res, err := e.eval(ctx, n.Children[0], titleOnly)
	if err != nil {
		return noMatch(), err
	}
	terms := append([]string(nil), res.Terms...)

	for i := 1; res.Matched && i < len(n.Children); i++ {
		next, err := e.eval(ctx, n.Children[i], titleOnly)
		if err != nil {
			return noMatch(), err
		}
		sessions := res.Sessions.intersect(next.Sessions)
		terms = mergeTerms(terms, next.Terms)
		res = MatchResult{
			Matched:  next.Matched && len(sessions) > 0,
			Sessions: sessions,
		}
	}

	if !res.Matched {
		res.Sessions = make(SessionSet)
	}
	res.Terms = terms
	return res, nil
}

// evalOr evaluates every child and unions the results.
func (e *Executor) evalOr(ctx context.Context, n *query.OrNode, titleOnly bool) (MatchResult, error) {
	res := noMatch()
	for _, child := range n.Children {
		next, err := e.eval(ctx, child, titleOnly)
		if err != nil {
			return noMatch(), err
		}
		res.Sessions.union(next.Sessions)
		res.Terms = mergeTerms(res.Terms, next.Terms)
		res.Matched = res.Matched || next.Matched
	}
	return res, nil
}

// evalTerm checks one term against every session of the snapshot.
func (e *Executor) evalTerm(ctx context.Context, term string, titleOnly bool) (MatchResult, error) {
	if strings.TrimSpace(term) == "" {
		return noMatch(), nil
	}
	needle := e.fold(term)
	res := noMatch()

	if titleOnly {
		for _, s := range e.sessions {
			if err := ctx.Err(); err != nil {
				return noMatch(), err
			}
			if strings.Contains(e.fold(s.Title), needle) {
				res.Sessions[s.ID] = struct{}{}
			}
		}
	} else {
		err := e.forEachBatch(ctx, func(ctx context.Context, s Session) (bool, error) {
			return e.sessionContains(ctx, s, needle)
		}, func(s Session) {
			res.Sessions[s.ID] = struct{}{}
		})
		if err != nil {
			return noMatch(), err
		}
	}

	if len(res.Sessions) > 0 {
		res.Matched = true
		res.Terms = []string{term}
	}
	return res, nil
}

// sessionContains checks the title first and only fetches content when the
// title does not contain needle.
func (e *Executor) sessionContains(ctx context.Context, s Session, needle string) (bool, error) {
	if strings.Contains(e.fold(s.Title), needle) {
		return true, nil
	}
	content, err := e.loader.load(ctx, s.ID)
	if err != nil {
		return false, err
	}
	if content.failed {
		return false, nil
	}
	for _, m := range content.messages {
		if strings.Contains(e.fold(m.Content), needle) {
			return true, nil
		}
	}
	if content.system != nil && strings.Contains(e.fold(content.system.Text), needle) {
		return true, nil
	}
	return false, nil
}

// forEachBatch runs check over the snapshot in fixed-size batches: sessions of
// a batch run concurrently, batches run one after another. Hits are reported
// to onHit in snapshot order.
func (e *Executor) forEachBatch(
	ctx context.Context,
	check func(ctx context.Context, s Session) (bool, error),
	onHit func(s Session),
) error {
	for start := 0; start < len(e.sessions); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + e.batchSize
		if end > len(e.sessions) {
			end = len(e.sessions)
		}
		batch := e.sessions[start:end]
		hits := make([]bool, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, s := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				hit, err := check(gctx, s)
				hits[i] = hit
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		// errgroup cancels gctx on return; only the caller's ctx means cancellation.
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, hit := range hits {
			if hit {
				onHit(batch[i])
			}
		}
	}
	return nil
}

func (e *Executor) fold(s string) string {
	if e.caseSensitive {
		return s
	}
	return highlight.Fold(s)
}
