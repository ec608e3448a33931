package dispatch

import (
	"context"
	"testing"

	"github.com/voicebridge/voicebridge/internal/provider"
)

func TestRuleFromObjectKeyVariants(t *testing.T) {
	camel := ruleFromObject(provider.Object{
		"sipDispatchRuleId": "R1",
		"trunkIds":          []any{"T1"},
		"inboundNumbers":    []any{"+15551230000"},
	})
	snake := ruleFromObject(provider.Object{
		"sip_dispatch_rule_id": "R1",
		"trunk_ids":            []any{"T1"},
		"inbound_numbers":      []any{"+15551230000"},
	})

	for _, r := range []Rule{camel, snake} {
		if r.ID != "R1" {
			t.Errorf("ID = %q, want R1", r.ID)
		}
		if len(r.TrunkIDs) != 1 || r.TrunkIDs[0] != "T1" {
			t.Errorf("TrunkIDs = %v", r.TrunkIDs)
		}
		if len(r.InboundNumbers) != 1 || r.InboundNumbers[0] != "+15551230000" {
			t.Errorf("InboundNumbers = %v", r.InboundNumbers)
		}
	}
}

func TestEmptySetsAreWildcards(t *testing.T) {
	// Empty trunk-id set matches every trunk.
	allTrunks := Rule{TrunkIDs: nil, InboundNumbers: []string{"+15551230000"}}
	if !allTrunks.MatchesTrunk("T1") || !allTrunks.MatchesTrunk("T99") {
		t.Error("empty trunkIds should match every trunk")
	}
	if allTrunks.IsCatchAll() {
		t.Error("rule with explicit numbers is not a catch-all")
	}
	if !allTrunks.MatchesNumber("+15551230000") || allTrunks.MatchesNumber("+15550000000") {
		t.Error("explicit number set should match listed numbers only")
	}

	// Empty number set matches every number on its trunks.
	catchAll := Rule{TrunkIDs: []string{"T1"}, InboundNumbers: nil}
	if !catchAll.IsCatchAll() {
		t.Error("empty inboundNumbers should classify as catch-all")
	}
	if !catchAll.MatchesNumber("+15551230000") || !catchAll.MatchesNumber("+10000000000") {
		t.Error("catch-all should match every number")
	}
	if !catchAll.MatchesTrunk("T1") || catchAll.MatchesTrunk("T2") {
		t.Error("explicit trunk set should match listed trunks only")
	}

	if catchAll.ContainsNumber("+15551230000") {
		t.Error("ContainsNumber must ignore catch-all semantics")
	}
}

func TestFindCovering(t *testing.T) {
	client := &fakeClient{rules: []provider.Object{
		{"sipDispatchRuleId": "R1", "trunkIds": []any{"T2"}, "inboundNumbers": []any{"+15551230000"}},
		{"sipDispatchRuleId": "R2", "trunkIds": []any{"T1"}, "inboundNumbers": []any{"+15559990000"}},
		{"sipDispatchRuleId": "R3", "trunkIds": []any{"T1"}, "inboundNumbers": []any{}},
	}}
	ix := NewRuleIndex(client)

	// R1 is on the wrong trunk, R2 lists a different number; the catch-all
	// R3 is the first rule covering (T1, +15551230000).
	rule, err := ix.FindCovering(context.Background(), "T1", "+15551230000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule == nil || rule.ID != "R3" {
		t.Fatalf("FindCovering = %+v, want R3", rule)
	}

	// No rule covers an unknown trunk with an unlisted number.
	rule, err = ix.FindCovering(context.Background(), "T9", "+15550000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule != nil {
		t.Errorf("FindCovering = %+v, want nil", rule)
	}
}

func TestFindCoveringAllTrunksRule(t *testing.T) {
	client := &fakeClient{rules: []provider.Object{
		{"sipDispatchRuleId": "R1", "trunkIds": []any{}, "inboundNumbers": []any{"+15551230000"}},
	}}
	ix := NewRuleIndex(client)

	rule, err := ix.FindCovering(context.Background(), "T7", "+15551230000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule == nil || rule.ID != "R1" {
		t.Fatalf("rule with empty trunkIds should cover any trunk, got %+v", rule)
	}
}
