package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voicebridge/voicebridge/internal/provider"
)

// RuleLifecycle creates and deletes individual dispatch rules. It performs
// no policy decisions; the orchestrator decides what to create or clear.
type RuleLifecycle struct {
	client provider.Client
}

// NewRuleLifecycle creates a rule lifecycle manager.
func NewRuleLifecycle(client provider.Client) *RuleLifecycle {
	return &RuleLifecycle{client: client}
}

// RuleName returns the deterministic name for an auto-assigned per-number
// rule.
func RuleName(agentName, number string) string {
	return fmt.Sprintf("auto:%s:%s", agentName, number)
}

// Create submits a per-number rule scoped to a single trunk and number,
// with one agent entry carrying the agent metadata blob. A provider
// rejection (typically a conflicting rule that was not cleared first) is
// wrapped in RuleCreationError and surfaced, not retried.
func (m *RuleLifecycle) Create(ctx context.Context, trunkID, number, agentName, agentMetadata, ruleMetadata, roomPrefix string) (Rule, error) {
	name := RuleName(agentName, number)

	created, err := m.client.CreateRule(ctx, provider.CreateRuleRequest{
		Name:           name,
		TrunkIDs:       []string{trunkID},
		InboundNumbers: []string{number},
		RoomPrefix:     roomPrefix,
		Agents:         []provider.RuleAgent{{AgentName: agentName, Metadata: agentMetadata}},
		Metadata:       ruleMetadata,
	})
	if err != nil {
		return Rule{}, &RuleCreationError{Name: name, Err: err}
	}

	rule := ruleFromObject(created)
	slog.Info("created dispatch rule",
		"rule_id", rule.ID,
		"name", name,
		"trunk_id", trunkID,
		"number", number,
	)
	return rule, nil
}

// deleteSignature is one candidate payload shape for the delete RPC.
type deleteSignature struct {
	label   string
	payload func(ruleID string) any
}

// deleteSignatures is the ordered list of payload shapes the provider has
// accepted for rule deletion across versions. The order is fixed so that
// failures are diagnosable from logs; do not reorder.
var deleteSignatures = []deleteSignature{
	{"camelCase object", func(id string) any { return map[string]any{"sipDispatchRuleId": id} }},
	{"bare value", func(id string) any { return id }},
	{"snake_case object", func(id string) any { return map[string]any{"sip_dispatch_rule_id": id} }},
}

// Delete removes a rule by id, probing each known call signature in order
// and stopping at the first success. This is shape probing, not retry:
// two of the three attempts are expected to fail with an invalid-shape
// error under normal operation, and the logical operation is the same
// fixed delete each time. Only when every signature fails is the last
// error propagated as RuleDeletionError.
func (m *RuleLifecycle) Delete(ctx context.Context, ruleID string) error {
	var lastErr error
	for _, sig := range deleteSignatures {
		err := m.client.DeleteRule(ctx, sig.payload(ruleID))
		if err == nil {
			slog.Info("deleted dispatch rule", "rule_id", ruleID, "signature", sig.label)
			return nil
		}
		slog.Debug("dispatch rule delete signature failed",
			"rule_id", ruleID,
			"signature", sig.label,
			"error", err,
		)
		lastErr = err
	}
	return &RuleDeletionError{RuleID: ruleID, Attempts: len(deleteSignatures), Err: lastErr}
}
