package dispatch

import (
	"context"
	"fmt"
	"slices"

	"github.com/voicebridge/voicebridge/internal/provider"
)

// Rule is a provider dispatch rule reduced to the fields reconciliation
// branches on. Raw keeps the full provider object for response payloads.
type Rule struct {
	ID             string
	Name           string
	TrunkIDs       []string
	InboundNumbers []string
	Raw            provider.Object
}

// ruleFromObject reads a rule from a loosely decoded provider object,
// tolerating camelCase and snake_case key variants.
func ruleFromObject(obj provider.Object) Rule {
	return Rule{
		ID:             provider.StringField(obj, "sipDispatchRuleId", "sip_dispatch_rule_id", "id"),
		Name:           provider.StringField(obj, "name"),
		TrunkIDs:       provider.StringsField(obj, "trunkIds", "trunk_ids"),
		InboundNumbers: provider.StringsField(obj, "inboundNumbers", "inbound_numbers"),
		Raw:            obj,
	}
}

// IsCatchAll reports whether the rule matches every number on its trunks.
func (r Rule) IsCatchAll() bool {
	return len(r.InboundNumbers) == 0
}

// MatchesTrunk reports whether the rule applies to the given trunk. An
// empty trunk-id set means the rule applies to all trunks.
func (r Rule) MatchesTrunk(trunkID string) bool {
	return len(r.TrunkIDs) == 0 || slices.Contains(r.TrunkIDs, trunkID)
}

// MatchesNumber reports whether the rule covers the given number, either
// as a catch-all or by explicit membership.
func (r Rule) MatchesNumber(number string) bool {
	return len(r.InboundNumbers) == 0 || slices.Contains(r.InboundNumbers, number)
}

// ContainsNumber reports explicit membership only, ignoring catch-all
// semantics. Used by forceReplace to find per-number rules to clear.
func (r Rule) ContainsNumber(number string) bool {
	return slices.Contains(r.InboundNumbers, number)
}

// RuleIndex lists and classifies the provider's dispatch rules. It holds
// no state; every query re-fetches from the provider.
type RuleIndex struct {
	client provider.Client
}

// NewRuleIndex creates a rule index over the given provider client.
func NewRuleIndex(client provider.Client) *RuleIndex {
	return &RuleIndex{client: client}
}

// List returns all dispatch rules currently known to the provider.
func (ix *RuleIndex) List(ctx context.Context) ([]Rule, error) {
	objs, err := ix.client.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing dispatch rules: %w", err)
	}
	rules := make([]Rule, len(objs))
	for i, obj := range objs {
		rules[i] = ruleFromObject(obj)
	}
	return rules, nil
}

// FindCovering returns the first rule whose trunk membership and number
// membership both match the given pair, or nil when no rule covers it.
// Empty sets are wildcards on both axes: an empty trunk-id set matches
// every trunk, an empty number set matches every number.
func (ix *RuleIndex) FindCovering(ctx context.Context, trunkID, number string) (*Rule, error) {
	rules, err := ix.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].MatchesTrunk(trunkID) && rules[i].MatchesNumber(number) {
			return &rules[i], nil
		}
	}
	return nil, nil
}
