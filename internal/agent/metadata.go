// Package agent resolves which conversational agent serves a phone number
// and builds the minimal metadata blob the voice-agent runtime needs to
// self-configure.
package agent

import (
	"encoding/json"
	"fmt"
)

// Metadata is the blob attached to a dispatch rule's agent entry and to
// the call-bridge signaling target. It carries only what the runtime needs
// to self-configure; the full prompt and any credentials are deliberately
// excluded to bound payload size and keep secrets out of provider-side
// logs.
type Metadata struct {
	AgentName         string `json:"agentName"`
	AssistantID       string `json:"assistantId,omitempty"`
	ForceFirstMessage bool   `json:"forceFirstMessage"`
	LLMModel          string `json:"llm_model,omitempty"`
	STTModel          string `json:"stt_model,omitempty"`
	TTSModel          string `json:"tts_model,omitempty"`
}

// Encode serializes the blob to compact JSON.
func (m Metadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding agent metadata: %w", err)
	}
	return string(b), nil
}
