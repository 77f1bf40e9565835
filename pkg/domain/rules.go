package domain

import (
	"context"
	"fmt"
)

// RuleView is the read-only state a rule inspects before commit.
type RuleView interface {
	ListTables() []Table
	ListColumns(tableID string) []Column
	ListPools(tableID string) []Pool
	FindTable(id string) (Table, bool)
}

// Rule checks the pending state of a transaction. Blocking violations roll
// the transaction back.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine runs registered rules in order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with the given rules registered.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	e := &RulesEngine{}
	e.Register(rules...)
	return e
}

// Register appends rules; nil entries are skipped.
func (e *RulesEngine) Register(rules ...Rule) {
	for _, r := range rules {
		if r != nil {
			e.rules = append(e.rules, r)
		}
	}
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate runs every rule against view and merges the findings. Violations
// without a rule name are attributed to the rule that produced them.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}
