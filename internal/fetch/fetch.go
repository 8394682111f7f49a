package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Client fetches and parses HTML documents. Outlet adapters share one client
// so timeouts and the User-Agent header are applied uniformly.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds a fetch client. A nil httpClient gets a 20 second timeout.
func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "truelens-sync/1.0"
	}
	return &Client{http: httpClient, userAgent: userAgent}
}

// Document fetches pageURL and parses the response body as HTML.
func (c *Client) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// Favicon resolves the site icon URL for the origin of pageURL. It returns an
// empty string when the site declares no icon.
func (c *Client) Favicon(ctx context.Context, pageURL string) (string, error) {
	origin, err := Origin(pageURL)
	if err != nil {
		return "", err
	}

	doc, err := c.Document(ctx, origin)
	if err != nil {
		return "", err
	}

	for _, selector := range []string{
		"link[rel='apple-touch-icon']",
		"link[rel='icon']",
		"link[rel='shortcut icon']",
	} {
		if href, ok := doc.Find(selector).First().Attr("href"); ok && href != "" {
			if resolved, err := resolveRef(origin, href); err == nil {
				return resolved, nil
			}
		}
	}

	return "", nil
}

// Origin returns the scheme://host portion of rawURL.
func Origin(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %s has no origin", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

func resolveRef(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
