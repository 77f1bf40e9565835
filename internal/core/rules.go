package core

import (
	"context"
	"fmt"
	"strings"

	"metacore/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *RulesEngine {
	return domain.NewRulesEngine(NewModifierIntegrityRule(), NewPoolCompositionRule())
}

// NewModifierIntegrityRule blocks commits that leave a column without exactly
// one value per sample.
func NewModifierIntegrityRule() domain.Rule {
	return modifierIntegrityRule{}
}

type modifierIntegrityRule struct{}

func (modifierIntegrityRule) Name() string { return "modifier_integrity" }

func (r modifierIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for tableID := range touchedTables(changes) {
		table, ok := view.FindTable(tableID)
		if !ok {
			continue
		}
		for _, col := range view.ListColumns(tableID) {
			if col.SampleCount != table.SampleCount {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("column %s covers %d samples, table %s has %d", col.Name, col.SampleCount, table.Name, table.SampleCount),
					Entity:   domain.EntityColumn,
					EntityID: col.ID,
				})
				continue
			}
			if err := col.Validate(); err != nil {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  err.Error(),
					Entity:   domain.EntityColumn,
					EntityID: col.ID,
				})
			}
		}
	}
	return res, nil
}

// NewPoolCompositionRule blocks commits with pools referencing absent
// samples, overlapping membership sets, or duplicate names in one table.
func NewPoolCompositionRule() domain.Rule {
	return poolCompositionRule{}
}

type poolCompositionRule struct{}

func (poolCompositionRule) Name() string { return "pool_composition" }

func (r poolCompositionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for tableID := range touchedTables(changes) {
		table, ok := view.FindTable(tableID)
		if !ok {
			continue
		}
		names := make(map[string]string)
		for _, pool := range view.ListPools(tableID) {
			if err := pool.Validate(table.SampleCount); err != nil {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  err.Error(),
					Entity:   domain.EntityPool,
					EntityID: pool.ID,
				})
			}
			key := strings.ToLower(strings.TrimSpace(pool.Name))
			if other, dup := names[key]; dup {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("pools %s and %s share the name %q", other, pool.ID, pool.Name),
					Entity:   domain.EntityPool,
					EntityID: pool.ID,
				})
				continue
			}
			names[key] = pool.ID
		}
	}
	return res, nil
}

func touchedTables(changes []domain.Change) map[string]struct{} {
	out := make(map[string]struct{})
	add := func(v any) {
		switch e := v.(type) {
		case domain.Table:
			out[e.ID] = struct{}{}
		case domain.Column:
			out[e.TableID] = struct{}{}
		case domain.Pool:
			out[e.TableID] = struct{}{}
		}
	}
	for _, c := range changes {
		add(c.Before)
		add(c.After)
	}
	return out
}
