package core

import (
	"context"
	"errors"
	"testing"

	"metacore/internal/infra/persistence/memory"
	"metacore/pkg/domain"
)

func expectRuleViolation(t *testing.T, err error, rule string) {
	t.Helper()
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && v.Severity == domain.SeverityBlock {
			return
		}
	}
	t.Fatalf("expected blocking %s violation, got %+v", rule, violation.Result.Violations)
}

func TestDefaultRulesEngineRegistersInvariants(t *testing.T) {
	names := NewDefaultRulesEngine().Rules()
	if len(names) != 2 || names[0] != "modifier_integrity" || names[1] != "pool_composition" {
		t.Fatalf("unexpected rules %v", names)
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("bare engine should have no rules")
	}
}

func TestModifierIntegrityRule(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		column domain.Column
	}{
		{"sample count mismatch", domain.Column{Name: "a", SampleCount: 2}},
		{"overlapping modifiers", domain.Column{Name: "b", SampleCount: 3, DefaultValue: "x", Modifiers: []domain.Modifier{
			{Value: "y", Samples: "1-2"}, {Value: "z", Samples: "2"},
		}}},
		{"modifier equals default", domain.Column{Name: "c", SampleCount: 3, DefaultValue: "x", Modifiers: []domain.Modifier{{Value: "x", Samples: "1"}}}},
		{"duplicate modifier values", domain.Column{Name: "d", SampleCount: 3, DefaultValue: "x", Modifiers: []domain.Modifier{
			{Value: "y", Samples: "1"}, {Value: "y", Samples: "3"},
		}}},
		{"sample outside table", domain.Column{Name: "e", SampleCount: 3, DefaultValue: "x", Modifiers: []domain.Modifier{{Value: "y", Samples: "4"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore(NewDefaultRulesEngine())
			_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				table, err := tx.CreateTable(domain.Table{Name: "t", SampleCount: 3})
				if err != nil {
					return err
				}
				tc.column.TableID = table.ID
				_, err = tx.CreateColumn(tc.column)
				return err
			})
			expectRuleViolation(t, err, "modifier_integrity")
			if len(store.ListTables()) != 0 {
				t.Fatalf("blocked transaction must not commit")
			}
		})
	}
}

func TestModifierIntegrityRuleAcceptsValidColumns(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		table, err := tx.CreateTable(domain.Table{Name: "t", SampleCount: 3})
		if err != nil {
			return err
		}
		_, err = tx.CreateColumn(domain.Column{TableID: table.ID, Name: "a", SampleCount: 3, DefaultValue: "x",
			Modifiers: []domain.Modifier{{Value: "y", Samples: "1,3"}}})
		return err
	})
	if err != nil {
		t.Fatalf("valid column rejected: %v", err)
	}
}

func TestPoolCompositionRule(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		pools []domain.Pool
	}{
		{"sample beyond table", []domain.Pool{{Name: "p", PooledOnlySamples: []int{4}}}},
		{"overlapping membership", []domain.Pool{{Name: "p", PooledOnlySamples: []int{1}, PooledAndIndependentSamples: []int{1}}}},
		{"duplicate names", []domain.Pool{{Name: "Pool 1", PooledOnlySamples: []int{1}}, {Name: " pool 1", PooledOnlySamples: []int{2}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore(NewDefaultRulesEngine())
			_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				table, err := tx.CreateTable(domain.Table{Name: "t", SampleCount: 3})
				if err != nil {
					return err
				}
				for _, p := range tc.pools {
					p.TableID = table.ID
					if _, err := tx.CreatePool(p); err != nil {
						return err
					}
				}
				return nil
			})
			expectRuleViolation(t, err, "pool_composition")
		})
	}
}
