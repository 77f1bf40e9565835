package core

import (
	"fmt"

	"metacore/pkg/domain"
	"metacore/pkg/rangeset"
)

// ChangeSummary reports what a value replacement did to a column.
type ChangeSummary struct {
	ModifiersMerged          int  `json:"modifiers_merged"`
	ModifiersDeleted         int  `json:"modifiers_deleted"`
	ModifiersCreated         int  `json:"modifiers_created"`
	SamplesRevertedToDefault int  `json:"samples_reverted_to_default"`
	DefaultChanged           bool `json:"default_changed"`
}

// IsZero reports whether the replacement left the column untouched.
func (s ChangeSummary) IsZero() bool {
	return s == ChangeSummary{}
}

// Add accumulates another summary.
func (s *ChangeSummary) Add(other ChangeSummary) {
	s.ModifiersMerged += other.ModifiersMerged
	s.ModifiersDeleted += other.ModifiersDeleted
	s.ModifiersCreated += other.ModifiersCreated
	s.SamplesRevertedToDefault += other.SamplesRevertedToDefault
	s.DefaultChanged = s.DefaultChanged || other.DefaultChanged
}

// ReplaceValue rewrites every sample resolving to oldValue so it resolves to
// newValue, keeping modifiers disjoint, unique by value and distinct from
// the default. The column is validated first; conflicts are returned, not
// repaired. On error col is left unchanged.
func ReplaceValue(col *domain.Column, oldValue, newValue string) (ChangeSummary, error) {
	var summary ChangeSummary
	if col == nil {
		return summary, fmt.Errorf("replace value: nil column")
	}
	if err := col.Validate(); err != nil {
		return summary, err
	}
	if oldValue == newValue {
		return summary, nil
	}

	var collected []int
	kept := make([]domain.Modifier, 0, len(col.Modifiers)+1)
	for _, m := range col.Modifiers {
		if m.Value != oldValue {
			kept = append(kept, m)
			continue
		}
		samples, err := rangeset.Decode(m.Samples)
		if err != nil {
			return ChangeSummary{}, err
		}
		collected = append(collected, samples...)
		summary.ModifiersDeleted++
	}

	if col.DefaultValue == oldValue {
		// A modifier already carrying newValue would now duplicate the default;
		// its samples resolve to the default unchanged.
		filtered := make([]domain.Modifier, 0, len(kept))
		for _, m := range kept {
			if m.Value != newValue {
				filtered = append(filtered, m)
				continue
			}
			samples, err := rangeset.Decode(m.Samples)
			if err != nil {
				return ChangeSummary{}, err
			}
			summary.ModifiersDeleted++
			summary.SamplesRevertedToDefault += len(samples)
		}
		col.DefaultValue = newValue
		col.Modifiers = filtered
		summary.DefaultChanged = true
		return summary, nil
	}

	if len(collected) == 0 {
		col.Modifiers = kept
		return summary, nil
	}

	for i := range kept {
		if kept[i].Value != newValue {
			continue
		}
		existing, err := rangeset.Decode(kept[i].Samples)
		if err != nil {
			return ChangeSummary{}, err
		}
		kept[i].Samples = rangeset.Encode(rangeset.Union(existing, collected))
		summary.ModifiersMerged++
		col.Modifiers = kept
		return summary, nil
	}

	if newValue == col.DefaultValue {
		summary.SamplesRevertedToDefault = len(rangeset.Normalize(collected))
	} else {
		kept = append(kept, domain.Modifier{Value: newValue, Samples: rangeset.Encode(collected)})
		summary.ModifiersCreated++
	}
	col.Modifiers = kept
	return summary, nil
}
