package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"knowledgecore/internal/cache"
)

// SearchFunc runs a semantic search for the predictive loader to warm the
// L2 search cache with; the retrieval engine supplies the concrete
// implementation.
type SearchFunc func(ctx context.Context, project, query string) error

// PredictiveLoader fires bounded-concurrency prefetch jobs off a session's
// current files, recent queries, tools, and active features, using
// golang.org/x/sync/errgroup instead of ad-hoc sync.WaitGroup fan-out.
// Every job is best-effort: failures are swallowed, matching spec.md's
// fire-and-forget contract for prefetching.
type PredictiveLoader struct {
	search      SearchFunc
	cache       *cache.Cache
	concurrency int
	timeout     time.Duration
}

// NewPredictiveLoader constructs a loader. concurrency <= 0 defaults to 4.
func NewPredictiveLoader(search SearchFunc, c *cache.Cache, concurrency int) *PredictiveLoader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &PredictiveLoader{search: search, cache: c, concurrency: concurrency, timeout: 5 * time.Second}
}

// Prefetch implements Prefetcher: for each recent query and each active
// feature name, run a warming search concurrently, bounded by concurrency,
// swallowing any error.
func (p *PredictiveLoader) Prefetch(ctx context.Context, project string, sc Context) {
	if p.search == nil {
		return
	}
	jobs := make([]string, 0, len(sc.RecentQueries)+len(sc.ActiveFeatures))
	jobs = append(jobs, sc.RecentQueries...)
	jobs = append(jobs, sc.ActiveFeatures...)
	if len(jobs) == 0 {
		return
	}

	go func() {
		prefetchCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		g, gctx := errgroup.WithContext(prefetchCtx)
		g.SetLimit(p.concurrency)
		for _, job := range jobs {
			job := job
			g.Go(func() error {
				_ = p.search(gctx, project, job)
				return nil
			})
		}
		_ = g.Wait()
	}()
}
