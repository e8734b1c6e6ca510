package crawler

import (
	"strings"
	"testing"
)

func TestExtractReadablePrefersMainContent(t *testing.T) {
	html := `<html><head><title>Docs Page</title></head><body>
<nav>site navigation</nav>
<article>
<h1>Getting Started</h1>
<p>` + strings.Repeat("installation instructions ", 20) + `</p>
</article>
<footer>copyright notice</footer>
</body></html>`

	title, text, err := ExtractReadable([]byte(html))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if title != "Docs Page" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "Getting Started") || !strings.Contains(text, "installation instructions") {
		t.Errorf("article content missing: %q", text)
	}
	if strings.Contains(text, "site navigation") || strings.Contains(text, "copyright notice") {
		t.Errorf("page chrome leaked: %q", text)
	}
}

func TestExtractReadableFallsBackToBody(t *testing.T) {
	html := `<html><body><div>just a bare div with some words</div></body></html>`

	_, text, err := ExtractReadable([]byte(html))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "just a bare div with some words") {
		t.Errorf("fallback missed body text: %q", text)
	}
}

func TestExtractReadableStripsScripts(t *testing.T) {
	html := `<html><body><main><p>visible paragraph</p><script>var secret = 1;</script></main></body></html>`

	_, text, err := ExtractReadable([]byte(html))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(text, "secret") {
		t.Errorf("script content leaked: %q", text)
	}
}
