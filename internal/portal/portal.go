// Package portal provides the HTTP plumbing the school adapters share: a
// cookie-carrying client, form helpers, and parsed-document responses.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Client wraps an http.Client with a cookie jar and the request helpers the
// school portals need. The portals track their ASP.NET sessions through
// cookies; token-based endpoints get an Authorization header on top.
type Client struct {
	http   *http.Client
	header http.Header
}

// New builds a client with a fresh cookie jar.
func New() *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		header: make(http.Header),
	}
}

// SetAuthorization attaches an Authorization header to every later request.
func (c *Client) SetAuthorization(scheme, token string) {
	c.header.Set("Authorization", scheme+" "+token)
}

// Cookie returns the named cookie's value as stored for rawURL, or "".
func (c *Client) Cookie(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

// Get fetches rawURL and parses the response body. The returned URL is the
// one the final response came from, after any redirects.
func (c *Client) Get(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return c.document(req)
}

// PostForm posts form values to rawURL and parses the response body like
// Get does.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*goquery.Document, *url.URL, error) {
	req, err := c.formRequest(ctx, rawURL, form)
	if err != nil {
		return nil, nil, err
	}
	return c.document(req)
}

// PostFormJSON posts form values to rawURL and decodes a JSON response
// into out.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := c.formRequest(ctx, rawURL, form)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) formRequest(ctx context.Context, rawURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) document(req *http.Request) (*goquery.Document, *url.URL, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return doc, resp.Request.URL, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	for name, values := range c.header {
		req.Header[name] = values
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp, nil
}
