// Package images finds a representative photo for a recipe title.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Searcher returns the URL of a photo for query, or "" when none was found.
// Lookup errors are never returned to the caller.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Noop is used when image search is not configured.
type Noop struct{}

func (Noop) Search(context.Context, string) string { return "" }

// HTMLSearcher scrapes an HTML image-search results page. The URL template
// must contain a {query} placeholder.
type HTMLSearcher struct {
	urlTemplate string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewHTMLSearcher creates a new HTMLSearcher.
func NewHTMLSearcher(urlTemplate string, logger *slog.Logger) *HTMLSearcher {
	return &HTMLSearcher{
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// New returns an HTMLSearcher for urlTemplate, or Noop when it is empty.
func New(urlTemplate string, logger *slog.Logger) Searcher {
	if urlTemplate == "" {
		return Noop{}
	}
	return NewHTMLSearcher(urlTemplate, logger)
}

func (s *HTMLSearcher) Search(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	found, err := s.search(ctx, query)
	if err != nil {
		s.logger.Debug("image search failed", "query", query, "error", err)
		return ""
	}
	return found
}

func (s *HTMLSearcher) search(ctx context.Context, query string) (string, error) {
	target := strings.ReplaceAll(s.urlTemplate, "{query}", url.QueryEscape(query+" receta"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; meal-planner/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image search: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	var found string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		for _, attr := range []string{"data-src", "src"} {
			if v, ok := img.Attr(attr); ok && isPhotoURL(v) {
				found = v
				return false
			}
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("image search: no result for %q", query)
	}
	return found, nil
}

func isPhotoURL(v string) bool {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return false
	}
	lower := strings.ToLower(v)
	return !strings.HasSuffix(lower, ".svg") && !strings.Contains(lower, "logo")
}
