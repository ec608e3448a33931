package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

// newTestServer returns a control-plane stub that records the last request
// and serves the given handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "APIkey", "secret"), srv
}

func TestCallSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"items":[]}`))
	})

	if _, err := client.ListTrunks(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/twirp/livekit.SIP/ListSIPInboundTrunk" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}

	// The token must be an HS256 JWT issued by the API key and carrying
	// the sip admin grant.
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "), claims, func(t *jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims["iss"] != "APIkey" {
		t.Errorf("iss = %v, want APIkey", claims["iss"])
	}
	grant, _ := claims["sip"].(map[string]any)
	if grant["admin"] != true {
		t.Errorf("sip grant = %v, want admin:true", claims["sip"])
	}
}

func TestListRulesToleratesAlternateListKeys(t *testing.T) {
	for _, body := range []string{
		`{"items":[{"sipDispatchRuleId":"R1"}]}`,
		`{"rules":[{"sip_dispatch_rule_id":"R1"}]}`,
	} {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		rules, err := client.ListRules(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("got %d rules for body %s, want 1", len(rules), body)
		}
		if StringField(rules[0], "sipDispatchRuleId", "sip_dispatch_rule_id") != "R1" {
			t.Errorf("rule id not readable from %s", body)
		}
	}
}

func TestCreateRulePayloadShape(t *testing.T) {
	var got map[string]any
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"sipDispatchRuleId":"R9"}`))
	})

	created, err := client.CreateRule(context.Background(), CreateRuleRequest{
		Name:           "auto:ReceptionBot:+15551230000",
		TrunkIDs:       []string{"T1"},
		InboundNumbers: []string{"+15551230000"},
		RoomPrefix:     "call",
		Agents:         []RuleAgent{{AgentName: "ReceptionBot", Metadata: `{"agentName":"ReceptionBot"}`}},
		Metadata:       `{"phoneNumber":"+15551230000"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["name"] != "auto:ReceptionBot:+15551230000" {
		t.Errorf("name = %v", got["name"])
	}
	rule, _ := got["rule"].(map[string]any)
	individual, _ := rule["dispatchRuleIndividual"].(map[string]any)
	if individual["roomPrefix"] != "call" {
		t.Errorf("roomPrefix = %v, want call", individual["roomPrefix"])
	}
	roomConfig, _ := got["roomConfig"].(map[string]any)
	agents, _ := roomConfig["agents"].([]any)
	if len(agents) != 1 {
		t.Fatalf("agents = %v, want one entry", roomConfig["agents"])
	}

	if StringField(created, "sipDispatchRuleId") != "R9" {
		t.Errorf("created rule id = %q, want R9", StringField(created, "sipDispatchRuleId"))
	}
}

func TestCreateRuleUnwrapsNestedResponse(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rule":{"sip_dispatch_rule_id":"R4","name":"auto:x:+1"}}`))
	})

	created, err := client.CreateRule(context.Background(), CreateRuleRequest{Name: "auto:x:+1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if StringField(created, "sipDispatchRuleId", "sip_dispatch_rule_id") != "R4" {
		t.Errorf("nested rule not unwrapped: %v", created)
	}
}

func TestDeleteRuleSubmitsPayloadVerbatim(t *testing.T) {
	var bodies []string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		w.Write([]byte(`{}`))
	})

	ctx := context.Background()
	if err := client.DeleteRule(ctx, map[string]any{"sipDispatchRuleId": "R1"}); err != nil {
		t.Fatal(err)
	}
	if err := client.DeleteRule(ctx, "R1"); err != nil {
		t.Fatal(err)
	}

	if bodies[0] != `{"sipDispatchRuleId":"R1"}` {
		t.Errorf("object payload = %s", bodies[0])
	}
	if bodies[1] != `"R1"` {
		t.Errorf("bare payload = %s", bodies[1])
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rule already exists", http.StatusConflict)
	})

	_, err := client.CreateRule(context.Background(), CreateRuleRequest{Name: "auto:x:+1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsStatus(err, http.StatusConflict) {
		t.Errorf("IsStatus(409) = false for %v", err)
	}
	if !strings.Contains(err.Error(), "rule already exists") {
		t.Errorf("error message missing body: %v", err)
	}
}

func TestObserveCallback(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	var observed []string
	client.Observe = func(method string, err error) {
		observed = append(observed, method)
	}

	client.ListTrunks(context.Background())
	client.ListRules(context.Background())

	if len(observed) != 2 || observed[0] != "ListSIPInboundTrunk" || observed[1] != "ListSIPDispatchRule" {
		t.Errorf("observed = %v", observed)
	}
}
