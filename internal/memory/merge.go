package memory

import (
	"context"
	"fmt"

	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/reliability"
)

// Cluster is a set of near-duplicate memories discovered by MergeMemories.
type Cluster struct {
	Canonical Memory   `json:"canonical"`
	Members   []Memory `json:"members"`
}

// MergeOptions tunes MergeMemories.
type MergeOptions struct {
	Threshold float64 // clustering similarity threshold, default 0.9
	DryRun    bool
}

// MergeMemories scrolls the project's memories, clusters them by pairwise
// similarity >= threshold using the vector store's FindClusters, and for
// each cluster picks the canonical member as the one with the newest
// UpdatedAt, setting every other member's supersededBy. Memories are never
// hard-deleted by a merge. DryRun returns the cluster descriptors without
// mutating anything.
func (s *Service) MergeMemories(ctx context.Context, project string, opt MergeOptions) ([]Cluster, error) {
	threshold, err := reliability.ClusterThreshold(opt.Threshold, opt.Threshold != 0)
	if err != nil {
		return nil, err
	}

	all, err := s.List(ctx, project, RecallOptions{Limit: 10000})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	ids := make([]string, len(all))
	byID := make(map[string]Memory, len(all))
	for i, m := range all {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	var rawClusters []databases.Cluster
	err = s.breakers.Get("vectorStore").Execute(func() error {
		c, err := s.store.FindClusters(ctx, collectionFor(project), ids, len(ids), threshold)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "find clusters failed", err)
		}
		rawClusters = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	clusters := make([]Cluster, 0, len(rawClusters))
	now := s.clock.Now()
	for _, rc := range rawClusters {
		if len(rc.Items) == 0 {
			continue
		}
		members := make([]Memory, 0, len(rc.Items)+1)
		if seed, ok := byID[rc.SeedID]; ok {
			members = append(members, seed)
		}
		for _, item := range rc.Items {
			if m, ok := byID[item.ID]; ok {
				members = append(members, m)
			}
		}
		if len(members) < 2 {
			continue
		}
		canonical := newestOf(members)
		cl := Cluster{Canonical: canonical, Members: members}
		clusters = append(clusters, cl)

		if opt.DryRun {
			continue
		}
		for _, m := range members {
			if m.ID == canonical.ID || m.SupersededBy == canonical.ID {
				continue
			}
			m.SupersededBy = canonical.ID
			m.UpdatedAt = now
			vec, err := s.embed(ctx, fmt.Sprintf("%s: %s", m.Type, m.Content))
			if err != nil {
				return nil, err
			}
			if err := s.upsert(ctx, project, databases.Point{ID: m.ID, Vector: vec, Payload: payloadOf(m)}); err != nil {
				return nil, err
			}
		}
	}
	return clusters, nil
}

// newestOf picks the canonical member of a cluster as the one with the
// newest UpdatedAt, per spec.md's resolved Open Question.
func newestOf(members []Memory) Memory {
	best := members[0]
	for _, m := range members[1:] {
		if m.UpdatedAt.After(best.UpdatedAt) {
			best = m
		}
	}
	return best
}
