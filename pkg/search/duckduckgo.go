package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anaskhan96/soup"
	"github.com/pkg/errors"
)

// Result is a single entry returned by the search provider. Snippet is the
// provider's own summary text and survives even when the page itself cannot
// be fetched later.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
	maxBodyBytes = 1 << 20
)

// DuckDuckGo queries the DuckDuckGo HTML endpoint, which needs no API key.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

type Option func(*DuckDuckGo)

// WithBaseURL points the provider at a different endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(d *DuckDuckGo) {
		d.baseURL = u
	}
}

func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	d := &DuckDuckGo{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://html.duckduckgo.com",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	searchURL := fmt.Sprintf("%s/html/?q=%s", d.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build search request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru,en-US;q=0.7,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "could not read search response")
	}

	return parseResults(string(body), maxResults), nil
}

// parseResults walks the result anchors in DuckDuckGo's HTML. Each hit has a
// result__a link carrying URL and title and usually a result__snippet sibling.
func parseResults(body string, maxResults int) []Result {
	doc := soup.HTMLParse(body)
	if doc.Error != nil {
		return nil
	}

	links := doc.FindAll("a", "class", "result__a")
	snippets := doc.FindAll("a", "class", "result__snippet")

	results := make([]Result, 0, len(links))
	for i, link := range links {
		if len(results) >= maxResults {
			break
		}

		href := cleanRedirect(link.Attrs()["href"])
		title := strings.TrimSpace(link.FullText())
		if href == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = strings.TrimSpace(snippets[i].FullText())
		}

		results = append(results, Result{URL: href, Title: title, Snippet: snippet})
	}

	return results
}

// cleanRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the target URL.
func cleanRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}

	return href
}
