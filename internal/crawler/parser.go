package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order; the first match with substantial text
// wins over a whole-body sweep.
var contentSelectors = []string{
	"article",
	"main",
	"[role='main']",
	"#content",
	".content",
	".post-content",
	".article-body",
}

// ExtractReadable reduces an HTML page to its title and readable body text.
func ExtractReadable(html []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse page: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, header, footer, aside, iframe, form").Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if extracted := collectText(sel); len(extracted) > 200 {
			return title, extracted, nil
		}
	}

	return title, collectText(doc.Find("body")), nil
}

func collectText(sel *goquery.Selection) string {
	var builder strings.Builder
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			builder.WriteString(t)
			builder.WriteString("\n")
		}
	})
	if builder.Len() == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(builder.String())
}
