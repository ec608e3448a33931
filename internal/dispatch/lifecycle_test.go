package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/voicebridge/voicebridge/internal/provider"
)

func TestCreateBuildsPerNumberRule(t *testing.T) {
	client := &fakeClient{}
	m := NewRuleLifecycle(client)

	rule, err := m.Create(context.Background(), "T1", "+15551230000", "ReceptionBot",
		`{"agentName":"ReceptionBot"}`, `{"phoneNumber":"+15551230000"}`, "call")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rule.ID == "" {
		t.Error("created rule has no id")
	}
	if rule.Name != "auto:ReceptionBot:+15551230000" {
		t.Errorf("name = %q", rule.Name)
	}
	if !reflect.DeepEqual(rule.TrunkIDs, []string{"T1"}) {
		t.Errorf("TrunkIDs = %v, want [T1]", rule.TrunkIDs)
	}
	if !reflect.DeepEqual(rule.InboundNumbers, []string{"+15551230000"}) {
		t.Errorf("InboundNumbers = %v", rule.InboundNumbers)
	}
	if rule.IsCatchAll() {
		t.Error("per-number rule classified as catch-all")
	}
}

func TestCreateConflictSurfaces(t *testing.T) {
	client := &fakeClient{rules: []provider.Object{
		{"sipDispatchRuleId": "R1", "trunkIds": []any{"T1"}, "inboundNumbers": []any{"+15551230000"}},
	}}
	m := NewRuleLifecycle(client)

	_, err := m.Create(context.Background(), "T1", "+15551230000", "Bot", "{}", "{}", "call")
	var createErr *RuleCreationError
	if !errors.As(err, &createErr) {
		t.Fatalf("expected RuleCreationError, got %v", err)
	}
	if createErr.Name != "auto:Bot:+15551230000" {
		t.Errorf("Name = %q", createErr.Name)
	}
}

func TestDeleteFirstSignatureSucceeds(t *testing.T) {
	client := &fakeClient{
		rules:        []provider.Object{{"sipDispatchRuleId": "R1"}},
		acceptShapes: map[string]bool{"camel": true, "bare": true, "snake": true},
	}
	m := NewRuleLifecycle(client)

	if err := m.Delete(context.Background(), "R1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(client.deleteCalls, []string{"camel"}) {
		t.Errorf("deleteCalls = %v, want probing to stop after first success", client.deleteCalls)
	}
	if client.ruleCount() != 0 {
		t.Error("rule not removed")
	}
}

func TestDeleteFallsBackThroughSignatures(t *testing.T) {
	// Older control planes reject the camelCase object and the bare value
	// but accept the snake_case object.
	client := &fakeClient{
		rules:        []provider.Object{{"sip_dispatch_rule_id": "R1"}},
		acceptShapes: map[string]bool{"snake": true},
	}
	m := NewRuleLifecycle(client)

	if err := m.Delete(context.Background(), "R1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(client.deleteCalls, []string{"camel", "bare", "snake"}) {
		t.Errorf("deleteCalls = %v, want fixed probing order", client.deleteCalls)
	}
	if client.ruleCount() != 0 {
		t.Error("rule not removed")
	}
}

func TestDeleteAllSignaturesFail(t *testing.T) {
	client := &fakeClient{
		rules:        []provider.Object{{"sipDispatchRuleId": "R1"}},
		acceptShapes: map[string]bool{},
	}
	m := NewRuleLifecycle(client)

	err := m.Delete(context.Background(), "R1")
	var delErr *RuleDeletionError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected RuleDeletionError, got %v", err)
	}
	if delErr.RuleID != "R1" || delErr.Attempts != 3 {
		t.Errorf("RuleID = %q, Attempts = %d", delErr.RuleID, delErr.Attempts)
	}
	if client.ruleCount() != 1 {
		t.Error("rule should remain when every signature fails")
	}
}
