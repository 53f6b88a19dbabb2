package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/dhth/agx/internal/logging"
)

// CopilotTokenURL exchanges a GitHub OAuth token for a short lived Copilot token.
var CopilotTokenURL = "https://api.github.com/copilot_internal/v2/token"

// Headers the Copilot API expects from an editor integration.
var copilotHeaders = map[string]string{
	"User-Agent":             "GitHubCopilotChat/0.32.4",
	"Editor-Version":         "vscode/1.105.1",
	"Editor-Plugin-Version":  "copilot-chat/0.32.4",
	"Copilot-Integration-Id": "vscode-chat",
}

// CopilotAuth is the response of the token exchange.
type CopilotAuth struct {
	Endpoints struct {
		API string `json:"api"`
	} `json:"endpoints"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func newHeaderTransport(headers map[string]string) *headerTransport {
	return &headerTransport{headers: headers, base: http.DefaultTransport}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func (t *headerTransport) client() *http.Client {
	return &http.Client{Transport: t}
}

// FetchCopilotAuth exchanges oauthToken for a Copilot API token.
func FetchCopilotAuth(ctx context.Context, client *http.Client, oauthToken string) (*CopilotAuth, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CopilotTokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+oauthToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed: %s", resp.Status)
	}

	var auth CopilotAuth
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("couldn't deserialize response: %w", err)
	}
	if auth.Token == "" || auth.Endpoints.API == "" {
		return nil, fmt.Errorf("token exchange returned an incomplete response")
	}

	return &auth, nil
}

func newCopilotModel(ctx context.Context, oauthToken, modelID string, transport *headerTransport) (model.ToolCallingChatModel, error) {
	if transport == nil {
		transport = newHeaderTransport(copilotHeaders)
	}

	auth, err := FetchCopilotAuth(ctx, transport.client(), oauthToken)
	if err != nil {
		return nil, fmt.Errorf("couldn't get a short lived GitHub Copilot token: %w", err)
	}

	// TODO: refresh the token once auth.ExpiresAt passes; long sessions currently need a restart.
	logging.Debug().
		Str("endpoint", auth.Endpoints.API).
		Time("expires_at", time.Unix(auth.ExpiresAt, 0)).
		Msg("obtained copilot token")

	return newOpenAIModel(ctx, auth.Token, auth.Endpoints.API, modelID, transport)
}
