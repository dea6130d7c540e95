package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

// identityCacheTTL bounds staleness of resolved names. Renames are rare on
// the wiki side; five minutes keeps welcome messages fresh enough.
const identityCacheTTL = 5 * time.Minute

var _ domain.IdentityResolver = (*Resolver)(nil)

// Resolver implements domain.IdentityResolver against the wiki's action
// API (meta=globaluserinfo). Failures are transient by contract: callers
// degrade instead of aborting.
type Resolver struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	cache      *ttlcache.Cache[int64, *domain.WikiIdentity]
}

func NewResolver(apiURL, userAgent string) *Resolver {
	cache := ttlcache.New(
		ttlcache.WithTTL[int64, *domain.WikiIdentity](identityCacheTTL),
		ttlcache.WithDisableTouchOnHit[int64, *domain.WikiIdentity](),
	)
	go cache.Start()

	return &Resolver{
		apiURL:     apiURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
	}
}

type globalUserInfoResponse struct {
	Query struct {
		GlobalUserInfo struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Missing *bool  `json:"missing,omitempty"`
		} `json:"globaluserinfo"`
	} `json:"query"`
}

// Resolve returns the canonical account name and a profile link for the
// wiki account id.
func (r *Resolver) Resolve(ctx context.Context, wikiAccountID int64) (*domain.WikiIdentity, error) {
	if item := r.cache.Get(wikiAccountID); item != nil {
		return item.Value(), nil
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("meta", "globaluserinfo")
	q.Set("guiid", strconv.FormatInt(wikiAccountID, 10))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, linkerr.NewIdentityFetchError("resolve", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, linkerr.NewIdentityFetchError("resolve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, linkerr.NewIdentityFetchError("resolve", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out globalUserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, linkerr.NewIdentityFetchError("resolve", err)
	}
	info := out.Query.GlobalUserInfo
	if info.Missing != nil || info.Name == "" {
		return nil, linkerr.NewIdentityFetchError("resolve", fmt.Errorf("account %d not found", wikiAccountID))
	}

	identity := &domain.WikiIdentity{
		AccountID:  info.ID,
		Name:       info.Name,
		ProfileURL: profileURL(r.apiURL, info.Name),
	}
	r.cache.Set(wikiAccountID, identity, ttlcache.DefaultTTL)
	return identity, nil
}

// Close stops the identity cache's cleanup goroutine.
func (r *Resolver) Close() {
	r.cache.Stop()
}

// profileURL derives the user page link from the API endpoint, e.g.
// https://meta.wikimedia.org/w/api.php -> https://meta.wikimedia.org/wiki/User:Name.
func profileURL(apiURL, name string) string {
	base := apiURL
	if i := strings.Index(base, "/w/api.php"); i >= 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s/wiki/User:%s", base, url.PathEscape(strings.ReplaceAll(name, " ", "_")))
}
