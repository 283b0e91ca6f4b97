// Package identity talks to the external identity provider that owns account promotion.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/activitytimer/internal/domain"
)

// Credential is a permanent sign-in credential issued by an upstream provider.
type Credential struct {
	Provider string `json:"provider" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

// HTTPProvider provides minimal interactions with the identity provider's REST API.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider constructs a provider client. timeout <= 0 means ten seconds.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Link promotes the anonymous identity anonID by attaching cred. A credential that already
// belongs to another account yields domain.ErrCredentialAlreadyClaimed.
func (p *HTTPProvider) Link(ctx context.Context, anonID string, cred Credential) (domain.Identity, error) {
	return p.post(ctx, fmt.Sprintf("%s/identities/%s/link", p.baseURL, url.PathEscape(anonID)), cred)
}

// SignIn resolves cred to the permanent identity that owns it.
func (p *HTTPProvider) SignIn(ctx context.Context, cred Credential) (domain.Identity, error) {
	return p.post(ctx, p.baseURL+"/sessions", cred)
}

func (p *HTTPProvider) post(ctx context.Context, endpoint string, cred Credential) (domain.Identity, error) {
	body, err := json.Marshal(cred)
	if err != nil {
		return domain.Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return domain.Identity{}, domain.ErrCredentialAlreadyClaimed
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Identity{}, fmt.Errorf("identity provider error (%d): %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var payload struct {
		ID        string `json:"id"`
		Anonymous bool   `json:"anonymous"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Identity{}, err
	}
	if payload.ID == "" {
		return domain.Identity{}, fmt.Errorf("identity provider returned no id")
	}
	return domain.Identity{ID: payload.ID, Anonymous: payload.Anonymous}, nil
}
