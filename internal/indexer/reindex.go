package indexer

import (
	"context"
	"fmt"
	"time"
)

// ReindexWithZeroDowntime implements spec.md §4.C: create
// `{project}_codebase_v{n+1}`, populate it, atomically swap the alias to
// point at it, then schedule deletion of the prior version after a drain
// window.
func (idx *Indexer) ReindexWithZeroDowntime(ctx context.Context, req IndexRequest, aliasName string) error {
	if aliasName == "" {
		aliasName = collectionFor(req.Project)
	}

	idx.mu.Lock()
	n := idx.versions[req.Project] + 1
	idx.versions[req.Project] = n
	idx.mu.Unlock()

	newCollection := fmt.Sprintf("%s_v%d", collectionFor(req.Project), n)
	if err := idx.vector.CreateCollection(ctx, newCollection, idx.emb.Dimension()); err != nil {
		return err
	}

	prior, hadPrior, err := idx.vector.GetAliasInfo(ctx, aliasName)
	if err != nil {
		return err
	}

	status := &Status{Project: req.Project, State: StateIndexing, LastUpdated: time.Now()}
	idx.mu.Lock()
	idx.statuses[req.Project] = status
	idx.mu.Unlock()
	idx.run(context.WithoutCancel(ctx), req, newCollection, status)

	if hadPrior {
		if err := idx.vector.SwitchAlias(ctx, aliasName, newCollection); err != nil {
			return err
		}
	} else if err := idx.vector.CreateAlias(ctx, aliasName, newCollection); err != nil {
		return err
	}

	if hadPrior && prior.Collection != newCollection {
		go idx.drainAndDelete(prior.Collection)
	}
	return nil
}

// drainAndDelete deletes the superseded collection version after
// drainWindow, giving in-flight reads against it time to finish.
func (idx *Indexer) drainAndDelete(collection string) {
	time.Sleep(drainWindow)
	_ = idx.vector.DeleteCollection(context.Background(), collection)
}
