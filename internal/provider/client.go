package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Client is the subset of the SIP control-plane API this system uses. The
// provider exposes listing/insertion/deletion primitives only; there is no
// update and no transactional grouping, which is why reconciliation lives
// in the dispatch package rather than here.
type Client interface {
	ListTrunks(ctx context.Context) ([]Object, error)
	CreateTrunk(ctx context.Context, req CreateTrunkRequest) (Object, error)
	ListRules(ctx context.Context) ([]Object, error)
	CreateRule(ctx context.Context, req CreateRuleRequest) (Object, error)
	// DeleteRule submits the given payload verbatim. Callers own the
	// payload shape: the API has accepted at least three shapes for the
	// same delete across versions (see dispatch.RuleLifecycle).
	DeleteRule(ctx context.Context, payload any) error
}

// CreateTrunkRequest creates an inbound trunk, optionally scoped to a set
// of numbers. An empty number list leaves the trunk open to any number the
// carrier routes at it.
type CreateTrunkRequest struct {
	Name    string   `json:"name"`
	Numbers []string `json:"numbers"`
}

// RuleAgent is a named agent attached to a dispatch rule. Metadata is an
// opaque serialized blob handed to the agent runtime when the rule fires.
type RuleAgent struct {
	AgentName string `json:"agentName"`
	Metadata  string `json:"metadata,omitempty"`
}

// CreateRuleRequest creates a dispatch rule binding trunks and inbound
// numbers to agents. Empty TrunkIDs means all trunks; empty InboundNumbers
// means every number on the matched trunks (a catch-all rule).
type CreateRuleRequest struct {
	Name           string
	TrunkIDs       []string
	InboundNumbers []string
	RoomPrefix     string
	Agents         []RuleAgent
	Metadata       string
}

// payload shapes the request the way the control-plane RPC expects: the
// room prefix nested under an individual-dispatch rule object and the
// agents under roomConfig.
func (r CreateRuleRequest) payload() map[string]any {
	body := map[string]any{
		"name":           r.Name,
		"trunkIds":       r.TrunkIDs,
		"inboundNumbers": r.InboundNumbers,
		"rule": map[string]any{
			"dispatchRuleIndividual": map[string]any{
				"roomPrefix": r.RoomPrefix,
			},
		},
	}
	if r.Metadata != "" {
		body["metadata"] = r.Metadata
	}
	if len(r.Agents) > 0 {
		body["roomConfig"] = map[string]any{"agents": r.Agents}
	}
	return body
}

// apiError is a non-2xx response from the control plane.
type apiError struct {
	Method string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider: %s returned status %d: %s", e.Method, e.Status, e.Body)
	}
	return fmt.Sprintf("provider: %s returned status %d", e.Method, e.Status)
}

// IsStatus reports whether err is a provider API error with the given
// HTTP status.
func IsStatus(err error, status int) bool {
	if e, ok := err.(*apiError); ok {
		return e.Status == status
	}
	return false
}

// HTTPClient talks to the SIP control plane over twirp-style JSON RPC:
// POST {base}/twirp/livekit.SIP/{Method} with a short-lived HS256 bearer
// token minted from the API key/secret.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string

	// Observe, if non-nil, is called once per RPC with the method name
	// and outcome. Used to feed metrics without importing them here.
	Observe func(method string, err error)
}

// tokenTTL bounds the lifetime of a minted control-plane token. Tokens are
// minted per request; there is no refresh path.
const tokenTTL = 10 * time.Minute

// requestTimeout caps a single control-plane round trip. Reconciliation
// chains several of these, so individual calls must stay short.
const requestTimeout = 15 * time.Second

// NewHTTPClient creates a control-plane client for the given base URL and
// API credentials.
func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
	}
}

// accessToken mints a short-lived admin token for the SIP service.
func (c *HTTPClient) accessToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"sip": map[string]any{"admin": true},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		return "", fmt.Errorf("provider: signing access token: %w", err)
	}
	return signed, nil
}

// call performs one JSON RPC against the control plane and decodes the
// response body into a loose Object. A nil out skips decoding.
func (c *HTTPClient) call(ctx context.Context, method string, payload any, out *Object) (err error) {
	if c.Observe != nil {
		defer func() { c.Observe(method, err) }()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("provider: marshalling %s request: %w", method, err)
	}

	url := c.baseURL + "/twirp/livekit.SIP/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("provider: creating %s request: %w", method, err)
	}

	token, err := c.accessToken()
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("provider: sending %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("provider: reading %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Method: method, Status: resp.StatusCode, Body: truncate(string(respBody), 300)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("provider: decoding %s response: %w", method, err)
		}
	}

	slog.Debug("provider rpc", "method", method, "status", resp.StatusCode)
	return nil
}

// ListTrunks returns all inbound trunks known to the control plane.
func (c *HTTPClient) ListTrunks(ctx context.Context) ([]Object, error) {
	var out Object
	if err := c.call(ctx, "ListSIPInboundTrunk", struct{}{}, &out); err != nil {
		return nil, err
	}
	return ObjectsField(out, "items", "trunks"), nil
}

// CreateTrunk creates an inbound trunk and returns the created object.
func (c *HTTPClient) CreateTrunk(ctx context.Context, req CreateTrunkRequest) (Object, error) {
	var out Object
	payload := map[string]any{"trunk": map[string]any{"name": req.Name, "numbers": req.Numbers}}
	if err := c.call(ctx, "CreateSIPInboundTrunk", payload, &out); err != nil {
		return nil, err
	}
	if trunk, ok := ObjectField(out, "trunk"); ok {
		return trunk, nil
	}
	return out, nil
}

// ListRules returns all dispatch rules known to the control plane.
func (c *HTTPClient) ListRules(ctx context.Context) ([]Object, error) {
	var out Object
	if err := c.call(ctx, "ListSIPDispatchRule", struct{}{}, &out); err != nil {
		return nil, err
	}
	return ObjectsField(out, "items", "rules"), nil
}

// CreateRule creates a dispatch rule and returns the created object.
func (c *HTTPClient) CreateRule(ctx context.Context, req CreateRuleRequest) (Object, error) {
	var out Object
	if err := c.call(ctx, "CreateSIPDispatchRule", req.payload(), &out); err != nil {
		return nil, err
	}
	if rule, ok := ObjectField(out, "rule", "dispatch_rule", "dispatchRule"); ok {
		// Some versions nest the created rule; others return it flat.
		// Flat responses carry the id at the top level, nested ones here.
		if StringField(rule, "sipDispatchRuleId", "sip_dispatch_rule_id", "id") != "" {
			return rule, nil
		}
	}
	return out, nil
}

// DeleteRule submits the payload verbatim to the delete RPC.
func (c *HTTPClient) DeleteRule(ctx context.Context, payload any) error {
	return c.call(ctx, "DeleteSIPDispatchRule", payload, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
