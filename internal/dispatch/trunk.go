package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voicebridge/voicebridge/internal/provider"
)

// TrunkResolver determines which inbound trunk should own a number.
// Resolution privileges caller intent over inference: an explicit id wins,
// then the configured default id, then lookup-or-create by name; only when
// no name is available at all does a single existing trunk count as a safe
// zero-configuration default.
type TrunkResolver struct {
	client      provider.Client
	defaultID   string
	defaultName string
}

// NewTrunkResolver creates a trunk resolver. defaultID and defaultName
// come from process configuration and may be empty.
func NewTrunkResolver(client provider.Client, defaultID, defaultName string) *TrunkResolver {
	return &TrunkResolver{client: client, defaultID: defaultID, defaultName: defaultName}
}

// trunkID reads a trunk identifier from a provider object, tolerating the
// key variants the API has shipped.
func trunkID(obj provider.Object) string {
	return provider.StringField(obj, "sipTrunkId", "sip_trunk_id", "id")
}

// Resolve returns the trunk id for an assignment. explicitID and
// explicitName are the per-request selectors and may be empty.
func (tr *TrunkResolver) Resolve(ctx context.Context, explicitID, explicitName string) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}
	if tr.defaultID != "" {
		return tr.defaultID, nil
	}

	name := explicitName
	if name == "" {
		name = tr.defaultName
	}

	trunks, err := tr.client.ListTrunks(ctx)
	if err != nil {
		return "", fmt.Errorf("listing trunks: %w", err)
	}

	if name != "" {
		// Match either the trunk's name or an id equal to the name, so
		// operators who configured an id in the name slot still resolve.
		for _, t := range trunks {
			if provider.StringField(t, "name") == name || trunkID(t) == name {
				return trunkID(t), nil
			}
		}

		created, err := tr.client.CreateTrunk(ctx, provider.CreateTrunkRequest{Name: name, Numbers: []string{}})
		if err != nil {
			return "", fmt.Errorf("creating trunk %q: %w", name, err)
		}
		id := trunkID(created)
		if id == "" {
			return "", fmt.Errorf("creating trunk %q: provider returned no id", name)
		}
		slog.Info("created inbound trunk", "trunk_id", id, "name", name)
		return id, nil
	}

	if len(trunks) == 1 {
		return trunkID(trunks[0]), nil
	}

	return "", &TrunkResolutionError{TrunkCount: len(trunks)}
}
