package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/internal/dispatch"
	"github.com/voicebridge/voicebridge/internal/provider"
	"github.com/voicebridge/voicebridge/internal/store"
)

// maxAdminBodyBytes bounds admin request bodies.
const maxAdminBodyBytes = 1 << 20

// autoAssignRequest is the reconciliation request body.
type autoAssignRequest struct {
	PhoneNumber     string            `json:"phoneNumber"`
	AgentName       string            `json:"agentName"`
	AssistantID     string            `json:"assistantId"`
	LLMModel        string            `json:"llm_model"`
	STTModel        string            `json:"stt_model"`
	TTSModel        string            `json:"tts_model"`
	ReplaceCatchAll *bool             `json:"replaceCatchAll"`
	ForceReplace    bool              `json:"forceReplace"`
	TrunkID         string            `json:"trunkId"`
	TrunkName       string            `json:"trunkName"`
	RoomPrefix      string            `json:"roomPrefix"`
	ExtraMetadata   map[string]string `json:"extraMetadata"`
}

// autoAssignResponse reports a completed reconciliation.
type autoAssignResponse struct {
	Success           bool            `json:"success"`
	Reused            bool            `json:"reused"`
	TrunkID           string          `json:"trunkId"`
	PhoneNumber       string          `json:"phoneNumber"`
	SIPDispatchRuleID string          `json:"sipDispatchRuleId"`
	Rule              provider.Object `json:"rule"`
	Debug             assignDebug     `json:"debug"`
}

type assignDebug struct {
	RequestID          string `json:"requestId"`
	AssistantID        string `json:"assistantId,omitempty"`
	AgentMetadataBytes int    `json:"agentMetadataBytes"`
	MetaPreview        string `json:"metaPreview,omitempty"`
	Note               string `json:"note,omitempty"`
}

// handleAutoAssign reconciles one phone number's routing toward the
// requested agent.
func (s *Server) handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	var req autoAssignRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxAdminBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	requestID := uuid.NewString()
	res, err := s.deps.Assigner.AutoAssign(r.Context(), dispatch.AssignRequest{
		PhoneNumber:     req.PhoneNumber,
		AgentName:       req.AgentName,
		AssistantID:     req.AssistantID,
		TrunkID:         req.TrunkID,
		TrunkName:       req.TrunkName,
		RoomPrefix:      req.RoomPrefix,
		ReplaceCatchAll: req.ReplaceCatchAll,
		ForceReplace:    req.ForceReplace,
		LLMModel:        req.LLMModel,
		STTModel:        req.STTModel,
		TTSModel:        req.TTSModel,
		ExtraMetadata:   req.ExtraMetadata,
	})
	if err != nil {
		slog.Error("auto-assign failed",
			"request_id", requestID,
			"number", req.PhoneNumber,
			"error", err,
		)
		s.countReconciliation("error")
		writeError(w, http.StatusInternalServerError, assignErrorMessage(err))
		return
	}

	outcome := "created"
	if res.Reused {
		outcome = "reused"
	}
	s.countReconciliation(outcome)

	writeJSON(w, http.StatusOK, autoAssignResponse{
		Success:           true,
		Reused:            res.Reused,
		TrunkID:           res.TrunkID,
		PhoneNumber:       res.PhoneNumber,
		SIPDispatchRuleID: res.RuleID,
		Rule:              res.Rule,
		Debug: assignDebug{
			RequestID:          requestID,
			AssistantID:        res.AssistantID,
			AgentMetadataBytes: res.MetadataBytes,
			MetaPreview:        res.MetaPreview,
			Note:               res.Note,
		},
	})
}

// assignErrorMessage keeps the taxonomy visible to operators without
// leaking provider response bodies beyond what the error already carries.
func assignErrorMessage(err error) string {
	var trunkErr *dispatch.TrunkResolutionError
	if errors.As(err, &trunkErr) {
		return trunkErr.Error()
	}
	var createErr *dispatch.RuleCreationError
	if errors.As(err, &createErr) {
		return createErr.Error()
	}
	var delErr *dispatch.RuleDeletionError
	if errors.As(err, &delErr) {
		return delErr.Error()
	}
	return err.Error()
}

// assistantResponse is the agent-lookup response body.
type assistantResponse struct {
	Success   bool             `json:"success"`
	Assistant assistantPayload `json:"assistant"`

	CalAPIKey      string `json:"cal_api_key,omitempty"`
	CalEventTypeID string `json:"cal_event_type_id,omitempty"`
	CalTimezone    string `json:"cal_timezone,omitempty"`
}

type assistantPayload struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Prompt       string  `json:"prompt,omitempty"`
	FirstMessage string  `json:"firstMessage,omitempty"`
	LLMProvider  string  `json:"llm_provider,omitempty"`
	LLMModel     string  `json:"llm_model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// handleAssistant returns one assistant's configuration by id.
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if s.deps.Directory == nil {
		writeError(w, http.StatusInternalServerError, "lookup store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	assistant, err := s.deps.Directory.AssistantByID(r.Context(), id)
	if err != nil {
		slog.Error("assistant lookup failed", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup store unreachable")
		return
	}
	if assistant == nil {
		writeError(w, http.StatusNotFound, "assistant not found")
		return
	}

	writeJSON(w, http.StatusOK, assistantResponseFrom(assistant))
}

func assistantResponseFrom(a *store.Assistant) assistantResponse {
	return assistantResponse{
		Success: true,
		Assistant: assistantPayload{
			ID:           a.ID,
			Name:         a.Name,
			Prompt:       a.Prompt,
			FirstMessage: a.FirstMessage,
			LLMProvider:  a.LLMProvider,
			LLMModel:     a.LLMModel,
			Temperature:  a.Temperature,
			MaxTokens:    a.MaxTokens,
		},
		CalAPIKey:      a.CalAPIKey,
		CalEventTypeID: a.CalEventTypeID,
		CalTimezone:    a.CalTimezone,
	}
}

func (s *Server) countReconciliation(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Reconciliation(outcome)
	}
}
