package agent

import (
	"context"
	"log/slog"
)

// MappingLookup resolves a phone number to its configured inbound
// assistant id. Implemented by the lookup store; "" means no mapping.
type MappingLookup interface {
	InboundAssistantID(ctx context.Context, number string) (string, error)
}

// Resolver maps a phone number to an assistant id. A nil mapping source
// means no lookup is configured and resolution falls through to "".
type Resolver struct {
	mappings MappingLookup
}

// NewResolver creates a resolver over the given mapping source, which may
// be nil when no lookup store is configured.
func NewResolver(mappings MappingLookup) *Resolver {
	return &Resolver{mappings: mappings}
}

// Resolve returns the assistant id for a number. An explicitly supplied id
// wins unchanged. Lookup failures are swallowed and treated as "no
// mapping": both call routing and reconciliation proceed in a degraded
// mode rather than abort.
func (r *Resolver) Resolve(ctx context.Context, number, explicitID string) string {
	if explicitID != "" {
		return explicitID
	}
	if r.mappings == nil {
		return ""
	}

	id, err := r.mappings.InboundAssistantID(ctx, number)
	if err != nil {
		slog.Warn("assistant lookup failed, continuing without mapping",
			"number", number,
			"error", err,
		)
		return ""
	}
	return id
}
