package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pnibot/pnibot/pkg/apis/cache"
)

var (
	urlRE     = regexp.MustCompile(`https://[\w\.-]+[/\w\.-]*`)
	docIDRE   = regexp.MustCompile(`/document/d/([\w-]+)`)
	sheetIDRE = regexp.MustCompile(`/spreadsheets/d/([\w-]+)`)
)

const (
	linkFetchTimeout  = 7 * time.Second
	maxDocChars       = 3000
	linkCacheDuration = 8 * time.Hour
)

// LinkFetcher resolves recognized document and spreadsheet share links to
// their exported plain-text content. Unrecognized URLs are ignored, not
// errors.
type LinkFetcher struct {
	client *http.Client
	cache  cache.Cache

	// export URL bases, overridable in tests
	docExportBase   string
	sheetExportBase string
}

func NewLinkFetcher(cacheClient cache.Cache) *LinkFetcher {
	return &LinkFetcher{
		client:          &http.Client{},
		cache:           cacheClient,
		docExportBase:   "https://docs.google.com/document/d/",
		sheetExportBase: "https://docs.google.com/spreadsheets/d/",
	}
}

// exportURL maps a recognized share link to its plain-text export endpoint.
// The second return is false when the URL matches neither pattern.
func (f *LinkFetcher) exportURL(raw string) (string, bool) {
	if m := docIDRE.FindStringSubmatch(raw); m != nil {
		return f.docExportBase + m[1] + "/export?format=txt", true
	}
	if m := sheetIDRE.FindStringSubmatch(raw); m != nil {
		return f.sheetExportBase + m[1] + "/export?format=csv", true
	}
	return "", false
}

// Fetch resolves one URL. The boolean is false when the URL is not a
// recognized document link; when true, the string is either exported content
// or a bracketed inline failure notice — never an error to the caller.
func (f *LinkFetcher) Fetch(ctx context.Context, raw string) (string, bool) {
	exportURL, ok := f.exportURL(raw)
	if !ok {
		return "", false
	}

	if f.cache != nil {
		if cached, err := f.cache.Get(exportURL); err == nil {
			return string(cached), true
		}
	}

	log.WithField("url", exportURL).Debug("fetching document export")

	ctx, cancel := context.WithTimeout(ctx, linkFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return fmt.Sprintf("[Ошибка при загрузке URL %s: %v]", raw, err), true
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Sprintf("[Не удалось загрузить URL: %s (тайм-аут)]", raw), true
		}
		return fmt.Sprintf("[Ошибка при загрузке URL %s: %v]", raw, err), true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("[Не удалось загрузить URL: %s (статус: %d)]", raw, resp.StatusCode), true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Sprintf("[Ошибка при загрузке URL %s: %v]", raw, err), true
	}

	content, err := decodeText(body)
	if err != nil {
		return fmt.Sprintf("[Не удалось декодировать контент из %s]", raw), true
	}

	if runes := []rune(content); len(runes) > maxDocChars {
		content = string(runes[:maxDocChars]) + "..."
	}

	if f.cache != nil {
		if err := f.cache.Set(exportURL, []byte(content), linkCacheDuration); err != nil {
			log.WithError(err).Warn("could not cache document export")
		}
	}

	return content, true
}

// FetchAll finds every URL in the message, fetches the recognized ones
// concurrently, and combines their content. The boolean is false when no URL
// resolved to a recognized document link.
func (f *LinkFetcher) FetchAll(ctx context.Context, message string) (string, bool) {
	urls := urlRE.FindAllString(message, -1)
	if len(urls) == 0 {
		return "", false
	}

	log.WithField("count", len(urls)).Debug("resolving message URLs")

	type fetched struct {
		content string
		ok      bool
	}
	results := make([]fetched, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			content, ok := f.Fetch(ctx, u)
			results[i] = fetched{content: content, ok: ok}
		}(i, u)
	}
	wg.Wait()

	var sections []string
	for i, r := range results {
		if r.ok {
			sections = append(sections, fmt.Sprintf("Контент из %s:\n%s", urls[i], r.content))
		}
	}
	if len(sections) == 0 {
		return "", false
	}

	return strings.Join(sections, "\n\n---\n\n"), true
}
