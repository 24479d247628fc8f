package amadeus

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Tokens are refreshed this long before they actually expire.
const tokenExpirySkew = 60 * time.Second

type TokenFetcher interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// TokenCache holds one bearer token for the client-credentials grant.
// The lock only guards the cell: two callers racing on an expired token may both
// refresh, which is harmless because the token endpoint is not quota-limited.
type TokenCache struct {
	fetcher TokenFetcher
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenCache(fetcher TokenFetcher) *TokenCache {
	return &TokenCache{fetcher: fetcher, now: time.Now}
}

// NewClientCredentials builds the grant against baseURL's OAuth2 token endpoint.
func NewClientCredentials(baseURL, clientID, clientSecret string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	now := c.now()

	c.mu.Lock()
	if c.token != "" && now.Add(tokenExpirySkew).Before(c.expiry) {
		t := c.token
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	tok, err := c.fetcher.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, "amadeus token")
	}
	if tok.AccessToken == "" {
		return "", errors.New("amadeus token: empty access token")
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		// No expires_in in the response; keep it for one skew window only.
		expiry = now.Add(2 * tokenExpirySkew)
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiry = expiry
	c.mu.Unlock()

	return tok.AccessToken, nil
}

func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}
