package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"qaforge/store"
	"qaforge/types"
)

// DefaultHammingThreshold is the largest fingerprint distance at which two
// test cases are still treated as the same case.
const DefaultHammingThreshold = 4

// Reconciler collapses near-duplicate test cases within a project down to
// one retained case per duplicate group.
type Reconciler struct {
	cases     store.CaseStorer
	threshold int
	logger    *slog.Logger
}

func NewReconciler(cases store.CaseStorer, threshold int) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultHammingThreshold
	}
	return &Reconciler{
		cases:     cases,
		threshold: threshold,
		logger:    slog.Default(),
	}
}

// Reconcile removes every duplicate except the kept case of each group and
// carries removed cases' tags over to the keeper. Running it again with no
// intervening changes removes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, projectID string) (*types.ReconcileSummary, error) {
	return r.run(ctx, projectID, false)
}

// Preview reports the same grouping as Reconcile without touching storage.
func (r *Reconciler) Preview(ctx context.Context, projectID string) (*types.ReconcileSummary, error) {
	return r.run(ctx, projectID, true)
}

func (r *Reconciler) run(ctx context.Context, projectID string, preview bool) (*types.ReconcileSummary, error) {
	all, err := r.cases.ListCasesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list cases for project %s: %w", projectID, err)
	}

	// Cases without a fingerprint are neither merged away nor used as merge
	// targets.
	cases := make([]types.TestCase, 0, len(all))
	for _, tc := range all {
		if tc.Signature.Valid {
			cases = append(cases, tc)
		}
	}

	groups := groupBySimilarity(cases, r.threshold)

	summary := &types.ReconcileSummary{}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		summary.DuplicateGroups++

		keep := selectKeeper(cases, group)
		keeper := cases[keep]

		dup := types.DuplicateGroup{KeepID: keeper.ID}
		mergedTags := append([]string(nil), keeper.Tags...)
		gained := false
		merged := 0

		for _, idx := range group {
			if idx == keep {
				continue
			}
			victim := cases[idx]
			dup.DuplicateIDs = append(dup.DuplicateIDs, victim.ID)

			contributed := false
			for _, tag := range victim.Tags {
				if !containsTag(mergedTags, tag) {
					mergedTags = append(mergedTags, tag)
					contributed = true
				}
			}
			if contributed {
				gained = true
				merged++
			}

			if !preview {
				if err := r.cases.DeleteCase(ctx, victim.ID); err != nil {
					return nil, fmt.Errorf("delete duplicate case %s: %w", victim.ID, err)
				}
			}
			summary.CasesRemoved++
		}

		if gained {
			summary.CasesMerged += merged
			if !preview {
				if err := r.cases.UpdateCaseTags(ctx, keeper.ID, mergedTags); err != nil {
					return nil, fmt.Errorf("merge tags into case %s: %w", keeper.ID, err)
				}
			}
		}

		summary.Groups = append(summary.Groups, dup)
	}

	r.logger.Info("reconciliation pass finished",
		"project", projectID,
		"preview", preview,
		"groups", summary.DuplicateGroups,
		"removed", summary.CasesRemoved,
		"merged", summary.CasesMerged)

	return summary, nil
}

// groupBySimilarity partitions case indices by the transitive closure of
// "fingerprints within threshold bits". If A~B and B~C then A, B and C end
// up in one group even when A and C are farther apart.
func groupBySimilarity(cases []types.TestCase, threshold int) [][]int {
	parent := make([]int, len(cases))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < len(cases); i++ {
		for j := i + 1; j < len(cases); j++ {
			a := uint64(cases[i].Signature.Int64)
			b := uint64(cases[j].Signature.Int64)
			if Hamming(a, b) <= threshold {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int)
	for i := range cases {
		root := find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	roots := make([]int, 0, len(byRoot))
	for root := range byRoot {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	groups := make([][]int, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, byRoot[root])
	}
	return groups
}

// selectKeeper picks the case to retain: earliest created, then the most
// complete one (longest step list, then most tags), then lowest id so the
// choice is deterministic.
func selectKeeper(cases []types.TestCase, group []int) int {
	keep := group[0]
	for _, idx := range group[1:] {
		a, b := cases[idx], cases[keep]
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			keep = idx
		case a.CreatedAt.Equal(b.CreatedAt):
			if len(a.Steps) > len(b.Steps) {
				keep = idx
			} else if len(a.Steps) == len(b.Steps) {
				if len(a.Tags) > len(b.Tags) {
					keep = idx
				} else if len(a.Tags) == len(b.Tags) && a.ID.String() < b.ID.String() {
					keep = idx
				}
			}
		}
	}
	return keep
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
