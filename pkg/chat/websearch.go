package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pnibot/pnibot/pkg/apis/cache"
	"github.com/pnibot/pnibot/pkg/search"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes      = 1 << 20
	maxPageChars      = 10000
	pageFetchTimeout  = 5 * time.Second
	pageCacheDuration = 4 * time.Hour

	searchHeader          = "Результаты Поиска (используй их для ответа, в конце ответа приведи источники):"
	searchProviderFailure = "Результаты Поиска: Ошибка при выполнении."
	searchNoResults       = "Результаты Поиска: Не найдено."
)

// Searcher is the query side of the web evidence gatherer.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// WebGatherer runs a search query and fetches the full text of each hit
// concurrently, falling back to the hit's snippet when a page cannot be
// read.
type WebGatherer struct {
	searcher Searcher
	client   *http.Client
	cache    cache.Cache
}

func NewWebGatherer(searcher Searcher, cacheClient cache.Cache) *WebGatherer {
	return &WebGatherer{
		searcher: searcher,
		client:   &http.Client{},
		cache:    cacheClient,
	}
}

// coerceResultCount clamps a model-proposed result count to an allowed value.
func coerceResultCount(count int) int {
	switch count {
	case 1, 3, 5:
		return count
	default:
		return 3
	}
}

// Gather searches for the query and returns a formatted evidence block. It
// never returns an error: provider failures and empty result sets each become
// a fixed context string the model is told about.
func (g *WebGatherer) Gather(ctx context.Context, query string, resultCount int) string {
	resultCount = coerceResultCount(resultCount)

	results, err := g.searcher.Search(ctx, query, resultCount)
	if err != nil {
		log.WithError(err).WithField("query", query).Error("web search failed")
		return searchProviderFailure
	}
	if len(results) == 0 {
		return searchNoResults
	}

	texts := make([]string, len(results))
	var wg sync.WaitGroup
	for i, result := range results {
		wg.Add(1)
		go func(i int, result search.Result) {
			defer wg.Done()
			texts[i] = g.pageText(ctx, result)
		}(i, result)
	}
	wg.Wait()

	var sources []string
	for i, result := range results {
		sources = append(sources, fmt.Sprintf("Источник %d: [URL: %s] [ТЕКСТ: %s]", i+1, result.URL, texts[i]))
	}

	return searchHeader + "\n\n" + strings.Join(sources, "\n\n")
}

// pageText returns the page's extracted text, or the result's snippet when
// the page cannot be fetched or read.
func (g *WebGatherer) pageText(ctx context.Context, result search.Result) string {
	text := g.fetchPage(ctx, result.URL)
	if isFetchFailure(text) {
		log.WithFields(log.Fields{"url": result.URL, "reason": text}).Debug("falling back to search snippet")
		if result.Snippet != "" {
			return result.Snippet
		}
	}
	return text
}

// fetchPage downloads a search hit and extracts its text. Failures come back
// as human-readable notices rather than errors so they can stand in for the
// page content.
func (g *WebGatherer) fetchPage(ctx context.Context, pageURL string) string {
	if g.cache != nil {
		if cached, err := g.cache.Get(pageURL); err == nil {
			return string(cached)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, pageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Sprintf("Ошибка при загрузке контента: %v", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "Не удалось загрузить (тайм-аут)."
		}
		return fmt.Sprintf("Ошибка при загрузке контента: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Не удалось загрузить (статус: %d)", resp.StatusCode)
	}

	if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "text/html") {
		return "Контент не является HTML-страницей."
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Sprintf("Ошибка при загрузке контента: %v", err)
	}

	text := htmlToText(string(body))
	if strings.TrimSpace(text) == "" {
		return "Не удалось извлечь текст из HTML."
	}

	if runes := []rune(text); len(runes) > maxPageChars {
		text = string(runes[:maxPageChars]) + "..."
	}

	if g.cache != nil {
		if err := g.cache.Set(pageURL, []byte(text), pageCacheDuration); err != nil {
			log.WithError(err).Warn("could not cache page text")
		}
	}

	return text
}

// isFetchFailure reports whether a fetchPage return is a failure notice
// rather than page text.
func isFetchFailure(text string) bool {
	return strings.HasPrefix(text, "Не удалось загрузить") ||
		strings.HasPrefix(text, "Ошибка при загрузке контента") ||
		text == "Контент не является HTML-страницей." ||
		text == "Не удалось извлечь текст из HTML."
}
