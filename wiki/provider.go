// Package wiki talks to the external wiki platform: the verification
// provider that turns proof codes into verified account ids, and the
// identity service that resolves account metadata.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

var _ domain.IdentityProvider = (*Provider)(nil)

// ProviderConfig points at the wiki provider's consent and exchange
// endpoints.
type ProviderConfig struct {
	ConsentURL  string
	ExchangeURL string
	UserAgent   string
}

// Provider implements domain.IdentityProvider against the wiki provider's
// HTTP endpoints. Exchange is a single attempt per logical operation; any
// retry is the user restarting the flow.
type Provider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

func NewProvider(cfg ProviderConfig) *Provider {
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ConsentURL builds the consent page URL. The token travels as the OAuth
// state parameter and comes back on the callback redirect.
func (p *Provider) ConsentURL(token string) string {
	return fmt.Sprintf("%s?state=%s", p.cfg.ConsentURL, url.QueryEscape(token))
}

type exchangeResponse struct {
	AccountID int64  `json:"account_id"`
	Error     string `json:"error"`
}

// Exchange trades the proof code for a verified wiki account id.
func (p *Provider) Exchange(ctx context.Context, code string) (int64, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ExchangeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, linkerr.NewIdentityFetchError("exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, linkerr.NewIdentityFetchError("exchange", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, linkerr.NewIdentityFetchError("exchange",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, linkerr.NewIdentityFetchError("exchange", err)
	}
	if out.Error != "" {
		return 0, linkerr.NewIdentityFetchError("exchange", fmt.Errorf("provider error: %s", out.Error))
	}
	if out.AccountID <= 0 {
		return 0, linkerr.NewIdentityFetchError("exchange", fmt.Errorf("provider returned no account id"))
	}
	return out.AccountID, nil
}
