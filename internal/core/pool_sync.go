package core

import (
	"slices"

	"metacore/pkg/domain"
	"metacore/pkg/rangeset"
)

// SyncPlan lists the pool mutations needed to reconcile stored pools with
// freshly extracted candidates.
type SyncPlan struct {
	Created   []domain.Pool
	Updated   []domain.Pool
	Deleted   []domain.Pool
	Unchanged []domain.Pool
}

// HasChanges reports whether applying the plan mutates anything.
func (p SyncPlan) HasChanges() bool {
	return len(p.Created)+len(p.Updated)+len(p.Deleted) > 0
}

// SynchronizePools matches each candidate to an existing pool by
// case-insensitive name, falling back to an identical pooled-only sample
// set. Matched pools with the same composition are unchanged; otherwise the
// existing pool is updated in place, keeping its ID, name and mirrored
// columns. Unmatched candidates are created and unmatched existing pools
// are deleted.
func SynchronizePools(existing, candidates []domain.Pool) SyncPlan {
	var plan SyncPlan
	current := make([]domain.Pool, len(existing))
	for i, p := range existing {
		current[i] = normalizePool(p)
	}
	matched := make([]bool, len(current))

	for _, raw := range candidates {
		cand := normalizePool(raw)
		idx := -1
		for i, ex := range current {
			if !matched[i] && ex.NameEquals(cand.Name) {
				idx = i
				break
			}
		}
		if idx < 0 && len(cand.PooledOnlySamples) > 0 {
			for i, ex := range current {
				if !matched[i] && slices.Equal(ex.PooledOnlySamples, cand.PooledOnlySamples) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			plan.Created = append(plan.Created, cand)
			continue
		}
		matched[idx] = true
		ex := current[idx]
		if ex.SameComposition(cand) {
			plan.Unchanged = append(plan.Unchanged, ex)
			continue
		}
		ex.PooledOnlySamples = cand.PooledOnlySamples
		ex.PooledAndIndependentSamples = cand.PooledAndIndependentSamples
		ex.IsReference = cand.IsReference
		ex.SDRFValue = cand.SDRFValue
		plan.Updated = append(plan.Updated, ex)
	}

	for i, ex := range current {
		if !matched[i] {
			plan.Deleted = append(plan.Deleted, ex)
		}
	}
	return plan
}

func normalizePool(p domain.Pool) domain.Pool {
	cp := p.Clone()
	cp.PooledOnlySamples = rangeset.Normalize(cp.PooledOnlySamples)
	cp.PooledAndIndependentSamples = rangeset.Normalize(cp.PooledAndIndependentSamples)
	return cp
}
