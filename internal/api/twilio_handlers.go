package api

import (
	"log/slog"
	"net/http"

	"github.com/voicebridge/voicebridge/internal/twiml"
)

// fallbackTwiML is served when even rendering a response document fails.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response><Say>An internal error occurred. Goodbye.</Say><Hangup></Hangup></Response>`

// handleVoiceWebhook answers the provider's inbound-call webhook with
// signaling markup. Every path responds 200 with a document; a non-2xx
// would make the provider play its own generic error at the caller.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("voice webhook: malformed form", "error", err)
		s.countCall("bad_request")
		s.respondTwiML(w, twiml.SpokenError("An internal error occurred. Goodbye."))
		return
	}

	to := r.PostFormValue("To")
	if to == "" {
		slog.Warn("voice webhook: missing To field", "from", r.PostFormValue("From"))
		s.countCall("bad_request")
		s.respondTwiML(w, twiml.SpokenError("This call cannot be routed. Goodbye."))
		return
	}

	resp, outcome := s.deps.Calls.Route(r.Context(), to)
	s.countCall(string(outcome))
	s.respondTwiML(w, resp)
}

// handleStatusCallback receives call-lifecycle events for bridged calls.
// Events are logged and counted; there is no per-call state to update.
func (s *Server) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("status callback: malformed form", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status := r.PostFormValue("CallStatus")
	slog.Info("call status event",
		"call_sid", r.PostFormValue("CallSid"),
		"status", status,
		"to", r.PostFormValue("To"),
		"duration", r.PostFormValue("CallDuration"),
	)
	if status != "" && s.deps.Metrics != nil {
		s.deps.Metrics.CallStatusEvent(status)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondTwiML(w http.ResponseWriter, resp twiml.Response) {
	doc, err := twiml.Render(resp)
	if err != nil {
		slog.Error("rendering twiml", "error", err)
		doc = fallbackTwiML
	}
	writeTwiML(w, doc)
}

func (s *Server) countCall(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.CallRouted(outcome)
	}
}
