package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/voicebridge/voicebridge/internal/provider"
)

// fakeClient is an in-memory provider.Client. Rules and trunks are stored
// as loose objects, mirroring what the HTTP client hands back.
type fakeClient struct {
	mu     sync.Mutex
	trunks []provider.Object
	rules  []provider.Object
	nextID int

	listTrunksErr  error
	listRulesErr   error
	createTrunkErr error
	createRuleErr  error

	// acceptShapes controls which delete signatures succeed. Keys are
	// "camel", "bare", "snake". A nil map accepts everything.
	acceptShapes map[string]bool
	deleteCalls  []string // shape labels, in call order
}

func (f *fakeClient) ListTrunks(ctx context.Context) ([]provider.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTrunksErr != nil {
		return nil, f.listTrunksErr
	}
	return append([]provider.Object(nil), f.trunks...), nil
}

func (f *fakeClient) CreateTrunk(ctx context.Context, req provider.CreateTrunkRequest) (provider.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTrunkErr != nil {
		return nil, f.createTrunkErr
	}
	f.nextID++
	// Generated ids live in their own namespace so they can never collide
	// with ids seeded by a test.
	trunk := provider.Object{
		"sipTrunkId": fmt.Sprintf("T-gen-%d", f.nextID),
		"name":       req.Name,
	}
	f.trunks = append(f.trunks, trunk)
	return trunk, nil
}

func (f *fakeClient) ListRules(ctx context.Context) ([]provider.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listRulesErr != nil {
		return nil, f.listRulesErr
	}
	return append([]provider.Object(nil), f.rules...), nil
}

func (f *fakeClient) CreateRule(ctx context.Context, req provider.CreateRuleRequest) (provider.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRuleErr != nil {
		return nil, f.createRuleErr
	}
	// The real provider rejects a create when a per-number rule already
	// lists one of the requested numbers on an overlapping trunk.
	for _, existing := range f.rules {
		for _, n := range provider.StringsField(existing, "inboundNumbers", "inbound_numbers") {
			for _, reqN := range req.InboundNumbers {
				if n == reqN {
					return nil, fmt.Errorf("conflicting rule %s already covers %s",
						provider.StringField(existing, "sipDispatchRuleId", "sip_dispatch_rule_id"), n)
				}
			}
		}
	}
	f.nextID++
	agents := make([]any, len(req.Agents))
	for i, a := range req.Agents {
		agents[i] = map[string]any{"agentName": a.AgentName, "metadata": a.Metadata}
	}
	rule := provider.Object{
		"sipDispatchRuleId": fmt.Sprintf("R-gen-%d", f.nextID),
		"name":              req.Name,
		"trunkIds":          req.TrunkIDs,
		"inboundNumbers":    req.InboundNumbers,
		"metadata":          req.Metadata,
		"roomConfig":        map[string]any{"agents": agents},
	}
	f.rules = append(f.rules, rule)
	return rule, nil
}

// classifyDeletePayload maps a delete payload to its shape label and the
// rule id it targets.
func classifyDeletePayload(payload any) (label, ruleID string) {
	switch p := payload.(type) {
	case string:
		return "bare", p
	case map[string]any:
		if id, ok := p["sipDispatchRuleId"].(string); ok {
			return "camel", id
		}
		if id, ok := p["sip_dispatch_rule_id"].(string); ok {
			return "snake", id
		}
	}
	return "unknown", ""
}

func (f *fakeClient) DeleteRule(ctx context.Context, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	label, ruleID := classifyDeletePayload(payload)
	f.deleteCalls = append(f.deleteCalls, label)

	if f.acceptShapes != nil && !f.acceptShapes[label] {
		return fmt.Errorf("unrecognized request shape %q", label)
	}

	for i, rule := range f.rules {
		if provider.StringField(rule, "sipDispatchRuleId", "sip_dispatch_rule_id", "id") == ruleID {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %q not found", ruleID)
}

func (f *fakeClient) ruleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rules)
}
