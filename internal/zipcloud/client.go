// Package zipcloud resolves Japanese postal codes to address fragments via
// the zipcloud search API.
package zipcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
)

// DefaultBaseURL is the public zipcloud API endpoint.
const DefaultBaseURL = "https://zipcloud.ibsnet.co.jp"

// Result is the outcome of a successful lookup call. Found is false when the
// service knows no address for the code; the caller may still proceed with a
// manually entered address.
type Result struct {
	PostalCode string
	Address    string
	Found      bool
}

// Resolver resolves a normalized 7-digit postal code to an address fragment.
// Errors are transient: the lookup is advisory and never blocks manual entry.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*Result, error)
}

// Client implements Resolver against the zipcloud HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a zipcloud Client with a 5 second default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse mirrors the zipcloud JSON payload. Only the address parts
// are used; they are concatenated prefecture + city + remainder.
type searchResponse struct {
	Results []struct {
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		Address3 string `json:"address3"`
	} `json:"results"`
}

// Resolve looks up code against the zipcloud API. Network, HTTP, and decode
// failures are returned as errors; an empty result list yields Found=false.
func (c *Client) Resolve(ctx context.Context, code string) (*Result, error) {
	u := c.baseURL + "/api/search?zipcode=" + url.QueryEscape(code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call zipcloud")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("zipcloud returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	if len(body.Results) == 0 {
		return &Result{PostalCode: code, Found: false}, nil
	}

	r := body.Results[0]
	return &Result{
		PostalCode: code,
		Address:    r.Address1 + r.Address2 + r.Address3,
		Found:      true,
	}, nil
}
