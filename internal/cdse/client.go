// Package cdse is a client for the Copernicus Data Space Ecosystem: the
// OpenID Connect identity service, the OData product catalog and the
// download service.
package cdse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "sentinel-pipeline/1.0"

// Endpoints are the service URLs used by the client.
type Endpoints struct {
	Auth     string // token endpoint
	Catalog  string // OData root, e.g. https://catalogue.dataspace.copernicus.eu/odata/v1
	Download string // OData root of the download service
}

// Client handles communication with the CDSE services.
type Client struct {
	endpoints Endpoints
	clientID  string

	httpClient     *http.Client
	downloadClient *http.Client
	limiter        *rate.Limiter

	token    string
	progress io.Writer

	logger *slog.Logger
}

// NewClient creates a new CDSE client. timeout bounds catalog and identity
// requests; downloads use WithDownloadTimeout.
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		endpoints: endpoints,
		clientID:  "cdse-public",
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		downloadClient: &http.Client{
			Timeout:   2 * time.Hour,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithClientID sets the OIDC client id.
func (c *Client) WithClientID(id string) *Client {
	c.clientID = id
	return c
}

// WithRateLimit limits catalog and identity requests to rps per second.
// Zero or negative disables limiting.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	return c
}

// WithDownloadTimeout bounds a single archive transfer.
func (c *Client) WithDownloadTimeout(d time.Duration) *Client {
	c.downloadClient.Timeout = d
	return c
}

// WithProgress renders download progress bars to w. Nil disables them.
func (c *Client) WithProgress(w io.Writer) *Client {
	c.progress = w
	return c
}

// Authenticate exchanges username and password for an access token using
// the OIDC password grant.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrAuthentication)
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Auth, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.DebugContext(ctx, "requesting access token",
		slog.String("url", c.endpoints.Auth),
		slog.String("client_id", c.clientID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: identity request failed: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "identity service returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return fmt.Errorf("%w: identity service returned status %d: %s", ErrAuthentication, resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("%w: failed to decode token response: %v", ErrAuthentication, err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: token response has no access_token", ErrAuthentication)
	}

	c.token = token.AccessToken
	c.logger.InfoContext(ctx, "authenticated",
		slog.Int("expires_in", token.ExpiresIn),
	)
	return nil
}

// Authenticated reports whether a token is held.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Search runs q against the catalog and follows @odata.nextLink until
// maxResults products are collected or the result set ends. maxResults <= 0
// means no limit.
func (c *Client) Search(ctx context.Context, q Query, maxResults int) ([]Product, error) {
	if maxResults > 0 && (q.Top <= 0 || q.Top > maxResults) {
		q.Top = maxResults
	}

	searchURL, err := c.buildSearchURL(q)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	var products []Product
	for page := 1; searchURL != ""; page++ {
		c.logger.DebugContext(ctx, "executing catalog search",
			slog.String("url", searchURL),
			slog.Int("page", page),
		)

		result, err := c.fetchPage(ctx, searchURL)
		if err != nil {
			return nil, err
		}
		products = append(products, result.Value...)

		if maxResults > 0 && len(products) >= maxResults {
			products = products[:maxResults]
			break
		}
		searchURL = result.NextLink
	}

	c.logger.DebugContext(ctx, "catalog search completed",
		slog.String("collection", q.Collection),
		slog.Int("product_count", len(products)),
	)
	return products, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*ProductsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "catalog request failed",
			slog.String("error", err.Error()),
			slog.String("url", pageURL),
		)
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "catalog returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		if rejected(resp.StatusCode) {
			return nil, fmt.Errorf("%w: catalog returned status %d: %s", ErrAuthentication, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ProductsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return &result, nil
}

// rejected reports whether status means the token was refused.
func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// buildSearchURL constructs the Products URL with OData query options.
func (c *Client) buildSearchURL(q Query) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(c.endpoints.Catalog, "/") + "/Products")
	if err != nil {
		return "", fmt.Errorf("invalid catalog URL: %w", err)
	}

	// OData expects %20 rather than + between filter terms
	base.RawQuery = strings.ReplaceAll(q.ToURLValues().Encode(), "+", "%20")
	return base.String(), nil
}

// downloadURL returns the $value URL of a product.
func (c *Client) downloadURL(id string) string {
	return fmt.Sprintf("%s/Products(%s)/$value", strings.TrimSuffix(c.endpoints.Download, "/"), id)
}
