package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voicebridge/voicebridge/internal/agent"
	"github.com/voicebridge/voicebridge/internal/provider"
)

// AssignRequest is one "assign this number to this agent" operation.
type AssignRequest struct {
	PhoneNumber string
	AgentName   string
	AssistantID string // explicit override; otherwise resolved from the lookup store
	TrunkID     string
	TrunkName   string
	RoomPrefix  string

	// ReplaceCatchAll controls whether an existing catch-all rule covering
	// the number is superseded. Defaults to true when nil.
	ReplaceCatchAll *bool
	// ForceReplace clears every per-number rule containing the number
	// before creating the new one, not just the first covering rule.
	ForceReplace bool

	LLMModel string
	STTModel string
	TTSModel string

	// ExtraMetadata is merged into the rule-level metadata object.
	ExtraMetadata map[string]string
}

func (r AssignRequest) replaceCatchAll() bool {
	return r.ReplaceCatchAll == nil || *r.ReplaceCatchAll
}

// AssignResult reports the outcome of a successful assignment.
type AssignResult struct {
	TrunkID     string
	PhoneNumber string
	RuleID      string
	Rule        provider.Object
	// Reused is true when an existing catch-all rule was left in place
	// instead of creating a per-number rule.
	Reused      bool
	AssistantID string

	// Diagnostics for the admin response.
	MetadataBytes int
	MetaPreview   string
	Note          string
}

// metaPreviewLen bounds the metadata preview echoed in admin responses.
const metaPreviewLen = 120

// Orchestrator composes trunk resolution, rule indexing and rule lifecycle
// into the top-level auto-assign operation, enforcing the invariant that
// each (trunk, number) pair is served by at most one per-number rule.
type Orchestrator struct {
	trunks    *TrunkResolver
	rules     *RuleIndex
	lifecycle *RuleLifecycle
	resolver  *agent.Resolver

	defaultAgentName string
	roomPrefix       string

	// locks serializes concurrent assignments of the same number within
	// this process. The provider offers no compare-and-swap, so without
	// this two concurrent callers can both observe "no existing rule" and
	// both create. Cross-process callers remain unserialized.
	locks numberLocks
}

// NewOrchestrator creates the reconciliation orchestrator.
func NewOrchestrator(client provider.Client, resolver *agent.Resolver, defaultTrunkID, defaultTrunkName, defaultAgentName, roomPrefix string) *Orchestrator {
	return &Orchestrator{
		trunks:           NewTrunkResolver(client, defaultTrunkID, defaultTrunkName),
		rules:            NewRuleIndex(client),
		lifecycle:        NewRuleLifecycle(client),
		resolver:         resolver,
		defaultAgentName: defaultAgentName,
		roomPrefix:       roomPrefix,
	}
}

// AutoAssign reconciles the routing for one phone number against live
// provider state. On success exactly one per-number rule covers the
// (trunk, number) pair with the requested agent, unless an existing
// catch-all was deliberately reused or an unrelated per-number rule was
// left alone. Failures abort the operation; deletions already performed
// are not rolled back and are corrected by a subsequent call against the
// then-current state.
func (o *Orchestrator) AutoAssign(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	agentName := req.AgentName
	if agentName == "" {
		agentName = o.defaultAgentName
	}
	if agentName == "" {
		return nil, fmt.Errorf("agent name is required and no default is configured")
	}

	number := NormalizeNumber(req.PhoneNumber)

	unlock := o.locks.lock(number)
	defer unlock()

	trunkID, err := o.trunks.Resolve(ctx, req.TrunkID, req.TrunkName)
	if err != nil {
		return nil, err
	}

	assistantID := o.resolver.Resolve(ctx, number, req.AssistantID)

	blob, err := agent.Metadata{
		AgentName:         agentName,
		AssistantID:       assistantID,
		ForceFirstMessage: true,
		LLMModel:          req.LLMModel,
		STTModel:          req.STTModel,
		TTSModel:          req.TTSModel,
	}.Encode()
	if err != nil {
		return nil, err
	}

	result := &AssignResult{
		TrunkID:       trunkID,
		PhoneNumber:   number,
		AssistantID:   assistantID,
		MetadataBytes: len(blob),
		MetaPreview:   truncate(blob, metaPreviewLen),
	}

	existing, err := o.rules.FindCovering(ctx, trunkID, number)
	if err != nil {
		return nil, err
	}

	switch classifyExisting(existing, number, req) {
	case actionForceClear:
		// Clear every per-number rule containing the number, not just
		// the first covering one.
		if err := o.deleteAllContaining(ctx, number); err != nil {
			return nil, err
		}
		result.Note = "forceReplace: cleared all rules containing the number"

	case actionSupersedeCatchAll:
		if err := o.lifecycle.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
		result.Note = "superseded catch-all rule " + existing.ID

	case actionReuseCatchAll:
		// replaceCatchAll=false: the catch-all already routes this
		// number; leave it in place and report reuse.
		slog.Info("reusing existing catch-all rule",
			"rule_id", existing.ID,
			"trunk_id", trunkID,
			"number", number,
		)
		result.Reused = true
		result.RuleID = existing.ID
		result.Rule = existing.Raw
		result.Note = "existing catch-all rule left in place (replaceCatchAll=false)"
		return result, nil

	case actionReplacePerNumber:
		// Stale per-number rule for this number: recreate fresh.
		if err := o.lifecycle.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
		result.Note = "replaced per-number rule " + existing.ID

	case actionLeaveUntouched:
		// A covering rule that neither is catch-all nor lists the
		// number belongs to someone else. Do not clobber it.
		result.Note = "unrelated rule " + existing.ID + " left untouched"
	}

	ruleMetadata, err := o.ruleMetadata(number, agentName, assistantID, req.ExtraMetadata)
	if err != nil {
		return nil, err
	}

	roomPrefix := req.RoomPrefix
	if roomPrefix == "" {
		roomPrefix = o.roomPrefix
	}

	rule, err := o.lifecycle.Create(ctx, trunkID, number, agentName, blob, ruleMetadata, roomPrefix)
	if err != nil {
		return nil, err
	}

	result.RuleID = rule.ID
	result.Rule = rule.Raw
	return result, nil
}

// ruleAction is what AutoAssign does about the covering rule (if any)
// before creating the new per-number rule.
type ruleAction int

const (
	// actionCreate proceeds straight to creation; nothing covers the pair.
	actionCreate ruleAction = iota
	// actionForceClear deletes every rule listing the number first.
	actionForceClear
	// actionSupersedeCatchAll deletes the covering catch-all first.
	actionSupersedeCatchAll
	// actionReuseCatchAll keeps the catch-all and skips creation entirely.
	actionReuseCatchAll
	// actionReplacePerNumber deletes the stale per-number rule first.
	actionReplacePerNumber
	// actionLeaveUntouched keeps a covering rule that does not list the
	// number: it belongs to someone else and must not be clobbered.
	actionLeaveUntouched
)

// classifyExisting maps the covering rule found for (trunk, number) to
// the action taken on it. existing is nil when nothing covers the pair;
// ForceReplace only widens deletion when a covering rule exists.
func classifyExisting(existing *Rule, number string, req AssignRequest) ruleAction {
	switch {
	case existing == nil:
		return actionCreate
	case req.ForceReplace:
		return actionForceClear
	case existing.IsCatchAll() && req.replaceCatchAll():
		return actionSupersedeCatchAll
	case existing.IsCatchAll():
		return actionReuseCatchAll
	case existing.ContainsNumber(number):
		return actionReplacePerNumber
	default:
		return actionLeaveUntouched
	}
}

// deleteAllContaining removes every rule whose inbound-number set lists
// the given number. Catch-all rules are not touched: they do not list the
// number explicitly.
func (o *Orchestrator) deleteAllContaining(ctx context.Context, number string) error {
	rules, err := o.rules.List(ctx)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if !rule.ContainsNumber(number) {
			continue
		}
		if err := o.lifecycle.Delete(ctx, rule.ID); err != nil {
			return err
		}
	}
	return nil
}

// ruleMetadata builds the rule-level metadata object: the assignment
// identity plus any extra operator-supplied keys.
func (o *Orchestrator) ruleMetadata(number, agentName, assistantID string, extra map[string]string) (string, error) {
	meta := map[string]string{
		"phoneNumber": number,
		"agentName":   agentName,
	}
	if assistantID != "" {
		meta["assistantId"] = assistantID
	}
	for k, v := range extra {
		meta[k] = v
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding rule metadata: %w", err)
	}
	return string(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// numberLocks is a keyed mutex over phone numbers. Entries are never
// evicted; the key space is bounded by the distinct numbers an operator
// assigns.
type numberLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (n *numberLocks) lock(number string) (unlock func()) {
	n.mu.Lock()
	if n.locks == nil {
		n.locks = make(map[string]*sync.Mutex)
	}
	l, ok := n.locks[number]
	if !ok {
		l = &sync.Mutex{}
		n.locks[number] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
