// Package route answers the telephony provider's inbound-call webhook:
// it maps the called number to an assistant and emits signaling markup
// that bridges the call into the voice-agent runtime.
package route

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/voicebridge/voicebridge/internal/dispatch"
	"github.com/voicebridge/voicebridge/internal/store"
	"github.com/voicebridge/voicebridge/internal/twiml"
)

// Outcome classifies a routed call for logging and metrics.
type Outcome string

const (
	OutcomeBridged      Outcome = "bridged"
	OutcomeUnmapped     Outcome = "unmapped"
	OutcomeLookupFailed Outcome = "lookup_failed"
	OutcomeMisconfig    Outcome = "misconfigured"
)

// Directory resolves inbound numbers to assistant configuration. *store.Store
// satisfies it.
type Directory interface {
	InboundAssistantID(ctx context.Context, number string) (string, error)
	AssistantByID(ctx context.Context, id string) (*store.Assistant, error)
}

// CallContext travels to the agent runtime inside the bridge target as a
// base64-encoded JSON header value. Unlike the blob stored on dispatch
// rules it carries the full prompt and greeting, since the SIP leg is
// encrypted end to end and never persisted provider-side.
type CallContext struct {
	AssistantID  string `json:"assistantId"`
	Name         string `json:"name"`
	Prompt       string `json:"prompt,omitempty"`
	FirstMessage string `json:"firstMessage,omitempty"`
	LLMProvider  string `json:"llm_provider,omitempty"`
	LLMModel     string `json:"llm_model,omitempty"`

	CalAPIKey      string `json:"cal_api_key,omitempty"`
	CalEventTypeID string `json:"cal_event_type_id,omitempty"`
	CalTimezone    string `json:"cal_timezone,omitempty"`
}

// metadataHeader is the URI header parameter the agent runtime reads its
// call context from.
const metadataHeader = "X-Livekit-Metadata"

// Router builds the signaling response for one inbound call. It performs
// no retries: the webhook must answer inside the provider's ring timeout,
// so every failure degrades to a spoken terminal message.
type Router struct {
	directory      Directory
	bridgeURI      string
	dialTimeout    int
	statusCallback string
}

func NewRouter(directory Directory, bridgeURI string, dialTimeoutSecs int, statusCallback string) *Router {
	return &Router{
		directory:      directory,
		bridgeURI:      bridgeURI,
		dialTimeout:    dialTimeoutSecs,
		statusCallback: statusCallback,
	}
}

// Route resolves the called number and returns the signaling document for
// the call plus the routing outcome.
func (r *Router) Route(ctx context.Context, calledNumber string) (twiml.Response, Outcome) {
	number := dispatch.NormalizeNumber(calledNumber)
	log := slog.With("number", number)

	if r.directory == nil || r.bridgeURI == "" {
		log.Error("inbound call with no lookup store or bridge target configured")
		return twiml.SpokenError("This service is not fully configured. Please try again later."), OutcomeMisconfig
	}

	assistantID, err := r.directory.InboundAssistantID(ctx, number)
	if err != nil {
		log.Error("mapping lookup failed", "error", err)
		return twiml.SpokenError("We are experiencing a configuration error. Please try again later."), OutcomeLookupFailed
	}
	if assistantID == "" {
		log.Warn("inbound call for unmapped number")
		return twiml.SpokenError("This number is not configured to receive calls. Goodbye."), OutcomeUnmapped
	}

	assistant, err := r.directory.AssistantByID(ctx, assistantID)
	if err != nil || assistant == nil {
		log.Error("assistant lookup failed", "assistant_id", assistantID, "error", err)
		return twiml.SpokenError("We are experiencing a configuration error. Please try again later."), OutcomeLookupFailed
	}

	target, err := r.bridgeTarget(assistant)
	if err != nil {
		log.Error("building bridge target", "assistant_id", assistantID, "error", err)
		return twiml.SpokenError("We are experiencing a configuration error. Please try again later."), OutcomeMisconfig
	}

	log.Info("bridging inbound call", "assistant_id", assistantID, "assistant", assistant.Name)
	return twiml.Bridge(target, r.dialTimeout, r.statusCallback), OutcomeBridged
}

// bridgeTarget appends the call context to the fixed SIP endpoint as a
// URI header parameter. The value is base64 JSON, URL-escaped so the
// padding survives the provider's URI parsing.
func (r *Router) bridgeTarget(assistant *store.Assistant) (string, error) {
	blob, err := json.Marshal(CallContext{
		AssistantID:    assistant.ID,
		Name:           assistant.Name,
		Prompt:         assistant.Prompt,
		FirstMessage:   assistant.FirstMessage,
		LLMProvider:    assistant.LLMProvider,
		LLMModel:       assistant.LLMModel,
		CalAPIKey:      assistant.CalAPIKey,
		CalEventTypeID: assistant.CalEventTypeID,
		CalTimezone:    assistant.CalTimezone,
	})
	if err != nil {
		return "", fmt.Errorf("encoding call context: %w", err)
	}

	encoded := url.QueryEscape(base64.StdEncoding.EncodeToString(blob))
	return fmt.Sprintf("%s;%s=%s", r.bridgeURI, metadataHeader, encoded), nil
}
