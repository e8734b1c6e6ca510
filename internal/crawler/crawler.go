package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"rag-knowledge-platform/internal/logger"
)

// Page is one fetched and parsed web page.
type Page struct {
	URL   string
	Title string
	Text  string
	HTML  []byte
}

// Fetcher pulls a single page and reduces it to readable text so the
// ingestion pipeline can treat a URL like an uploaded document.
type Fetcher struct {
	userAgent string
	jsRender  bool
	timeout   time.Duration
}

func NewFetcher(userAgent string, jsRender bool) *Fetcher {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	}
	return &Fetcher{
		userAgent: userAgent,
		jsRender:  jsRender,
		timeout:   60 * time.Second,
	}
}

// Fetch retrieves the page, decodes it to UTF-8 and extracts readable text.
// With JS rendering enabled the page is loaded in headless chrome first so
// client-rendered content is visible to extraction.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	var html []byte
	if f.jsRender {
		html, err = f.fetchRendered(ctx, rawURL)
		if err != nil {
			logger.Warn("js render failed, falling back to plain fetch", "url", rawURL, "error", err)
			html = nil
		}
	}
	if html == nil {
		html, err = f.fetchStatic(ctx, parsed)
		if err != nil {
			return nil, err
		}
	}

	title, text, err := ExtractReadable(html)
	if err != nil {
		return nil, err
	}
	return &Page{URL: rawURL, Title: title, Text: text, HTML: html}, nil
}

// fetchStatic uses a fresh colly collector per fetch. Brotli bodies are
// decoded manually since the standard transport only handles gzip.
func (f *Fetcher) fetchStatic(ctx context.Context, target *url.URL) ([]byte, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(target.Hostname()),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(f.timeout)
	c.UserAgent = f.userAgent
	c.Context = ctx

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") &&
			!strings.Contains(contentType, "application/xhtml+xml") {
			fetchErr = fmt.Errorf("unsupported content type %q", contentType)
			return
		}

		var reader io.Reader = bytes.NewReader(r.Body)
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			decompressed, err := io.ReadAll(brotli.NewReader(reader))
			if err != nil {
				fetchErr = fmt.Errorf("decode brotli body: %w", err)
				return
			}
			reader = bytes.NewReader(decompressed)
		}

		utf8Reader, err := charset.NewReader(reader, contentType)
		if err != nil {
			// Body may already be UTF-8.
			utf8Reader = reader
		}
		body, fetchErr = io.ReadAll(utf8Reader)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", target, err)
	})

	if err := c.Visit(target.String()); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", target)
	}
	return body, nil
}

// fetchRendered loads the page in headless chrome and returns the settled DOM.
func (f *Fetcher) fetchRendered(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(f.userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return []byte(html), nil
}
