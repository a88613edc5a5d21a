// Package crawler walks a retailer site from a seed URL and streams
// candidate product pages to the pipeline. It stays on the seed host,
// favors product-looking links and stops at a configured page ceiling.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/extract"
	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Page is a fetched document before pipeline handoff.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	UsedJS     bool
}

// Fetcher retrieves one page over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer retrieves one page with JavaScript executed.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// Detector decides whether a fetched page needs the renderer.
type Detector interface {
	NeedsJS(ctx context.Context, page Page) bool
}

// Config controls a crawl.
type Config struct {
	MaxPages       int
	RequestTimeout time.Duration
	UserAgent      string
	// RateLimitPerHost is requests per second against one host.
	RateLimitPerHost float64
}

// productPathHints mark links worth visiting before anything else.
var productPathHints = []string{
	"/product", "/item", "/p/", "/jewelry", "/jewellery",
	"/ring", "/necklace", "/bracelet", "/earring", "/pendant",
}

// browsePathHints mark listing pages that lead to products.
var browsePathHints = []string{
	"/collection", "/category", "/shop", "/catalog", "/all",
}

// Crawler runs the frontier loop.
type Crawler struct {
	fetcher  Fetcher
	renderer Renderer
	detector Detector
	cfg      Config
	logger   *zap.Logger
	clock    pipeline.Clock
}

// New builds a Crawler. renderer and detector may be nil to disable the
// headless path.
func New(fetcher Fetcher, renderer Renderer, detector Detector, cfg Config, clock pipeline.Clock, logger *zap.Logger) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &Crawler{
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
		clock:    clock,
	}
}

// Crawl walks the site breadth-first from seed and sends each fetched page
// with product-detail signals to out; listing pages only contribute links.
// It returns the number of pages fetched. The returned error is fatal: an
// unreachable or unparseable seed. Individual page failures are counted on
// the observer and skipped.
func (c *Crawler) Crawl(ctx context.Context, seed string, obs pipeline.StatsObserver, out chan<- pipeline.CandidatePage) (int, error) {
	seedURL, err := url.Parse(seed)
	if err != nil || seedURL.Host == "" {
		return 0, fmt.Errorf("%w: invalid seed url %q", pipeline.ErrJobFatal, seed)
	}

	frontier := newFrontier(seedURL.Host)
	frontier.push(seed, true)

	fetched := 0
	for fetched < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		next, ok := frontier.pop()
		if !ok {
			break
		}

		page, err := c.fetchPage(ctx, next)
		if err != nil {
			if fetched == 0 && next == seed {
				return 0, fmt.Errorf("%w: seed unreachable: %v", pipeline.ErrJobFatal, err)
			}
			c.logger.Warn("page fetch failed", zap.String("url", next), zap.Error(err))
			obs.ErrorOccurred()
			continue
		}
		fetched++
		obs.PageCrawled()

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			c.logger.Warn("page parse failed", zap.String("url", next), zap.Error(err))
			obs.ErrorOccurred()
			continue
		}

		for _, link := range c.extractLinks(doc, page) {
			frontier.push(link, isProductPath(link))
		}

		// Listing and navigation pages only feed the frontier; the
		// pipeline sees product-detail pages.
		if !extract.IsProductPage(page.Body) {
			obs.PageSkipped()
			continue
		}

		select {
		case out <- pipeline.CandidatePage{
			URL:          page.FinalURL,
			Body:         page.Body,
			Title:        strings.TrimSpace(doc.Find("title").First().Text()),
			FetchedAt:    c.clock.Now(),
			UsedHeadless: page.UsedJS,
		}:
		case <-ctx.Done():
			return fetched, ctx.Err()
		}
	}

	if fetched == 0 {
		return 0, fmt.Errorf("%w: no pages fetched from %s", pipeline.ErrJobFatal, seed)
	}
	return fetched, nil
}

// fetchPage retrieves the URL, promoting to the renderer when the plain
// fetch looks like an empty JS shell.
func (c *Crawler) fetchPage(ctx context.Context, rawURL string) (Page, error) {
	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	if page.StatusCode >= 400 {
		return Page{}, fmt.Errorf("status %d", page.StatusCode)
	}
	if page.FinalURL == "" {
		page.FinalURL = rawURL
	}

	if c.renderer != nil && c.detector != nil && c.detector.NeedsJS(ctx, page) {
		rendered, renderErr := c.renderer.Render(ctx, rawURL)
		if renderErr != nil {
			c.logger.Warn("render failed, keeping plain fetch",
				zap.String("url", rawURL), zap.Error(renderErr))
			return page, nil
		}
		if rendered.FinalURL == "" {
			rendered.FinalURL = rawURL
		}
		return rendered, nil
	}
	return page, nil
}

func (c *Crawler) extractLinks(doc *goquery.Document, page Page) []string {
	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		if !followWorthy(resolved.Path) {
			return
		}
		links = append(links, resolved.String())
	})
	return links
}

func isProductPath(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lower := strings.ToLower(parsed.Path)
	for _, hint := range productPathHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func followWorthy(path string) bool {
	lower := strings.ToLower(path)
	for _, hint := range productPathHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	for _, hint := range browsePathHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return lower == "" || lower == "/"
}

// frontier is a two-tier same-host URL queue: product-looking links drain
// before browse links.
type frontier struct {
	host    string
	product []string
	browse  []string
	seen    map[string]struct{}
}

func newFrontier(host string) *frontier {
	return &frontier{host: host, seen: make(map[string]struct{})}
}

func (f *frontier) push(rawURL string, priority bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(parsed.Host, f.host) {
		return
	}
	key := parsed.String()
	if _, dup := f.seen[key]; dup {
		return
	}
	f.seen[key] = struct{}{}
	if priority {
		f.product = append(f.product, key)
	} else {
		f.browse = append(f.browse, key)
	}
}

func (f *frontier) pop() (string, bool) {
	if len(f.product) > 0 {
		next := f.product[0]
		f.product = f.product[1:]
		return next, true
	}
	if len(f.browse) > 0 {
		next := f.browse[0]
		f.browse = f.browse[1:]
		return next, true
	}
	return "", false
}
