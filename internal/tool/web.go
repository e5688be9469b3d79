package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxFetchBytes    = 1 << 20
	maxSearchResults = 8
	searchEndpoint   = "https://html.duckduckgo.com/html/"
	userAgent        = "lair/1.0 (+https://github.com/lair-ai/lair)"
)

const fetchDescription = `Fetches a URL and returns its content converted to Markdown.

Only http and https URLs are supported. Responses are capped at 1MB.`

// WebFetchTool retrieves a web page as Markdown.
type WebFetchTool struct {
	base
	client *http.Client
}

type fetchInput struct {
	URL string `json:"url"`
}

// NewWebFetchTool creates a fetch tool. A nil client uses http.DefaultClient;
// call deadlines come from the invoker's context.
func NewWebFetchTool(client *http.Client) *WebFetchTool {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebFetchTool{
		base: base{
			name:        "web_fetch",
			category:    "web",
			description: fetchDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"url": {"type": "string", "description": "The URL to fetch"}
				},
				"required": ["url"]
			}`),
		},
		client: client,
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in fetchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("unsupported URL: %s", in.URL)
	}

	body, contentType, err := t.get(ctx, in.URL)
	if err != nil {
		return "", err
	}

	if !strings.Contains(contentType, "html") {
		return body, nil
	}
	return htmlToMarkdown(body)
}

func (t *WebFetchTool) get(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", "", err
	}
	return string(data), resp.Header.Get("Content-Type"), nil
}

// htmlToMarkdown strips non-content elements and converts the remainder.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(cleaned)
}

const searchDescription = `Searches the web and returns the top results as a titled list with URLs
and snippets.`

// WebSearchTool queries the DuckDuckGo HTML endpoint and scrapes results.
type WebSearchTool struct {
	base
	client   *http.Client
	endpoint string
}

type searchInput struct {
	Query string `json:"query"`
}

// NewWebSearchTool creates a search tool. endpoint overrides the search URL
// for tests; empty means the default.
func NewWebSearchTool(client *http.Client, endpoint string) *WebSearchTool {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = searchEndpoint
	}
	return &WebSearchTool{
		base: base{
			name:        "web_search",
			category:    "web",
			description: searchDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"}
				},
				"required": ["query"]
			}`),
		},
		client:   client,
		endpoint: endpoint,
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in searchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.endpoint+"?q="+url.QueryEscape(in.Query), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	count := 0
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())
		if title == "" || href == "" {
			return true
		}
		count++
		fmt.Fprintf(&b, "%d. %s\n   %s\n", count, title, resolveRedirect(href))
		if snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
		return count < maxSearchResults
	})

	if count == 0 {
		return "no results", nil
	}
	return b.String(), nil
}

// resolveRedirect unwraps DuckDuckGo's uddg redirect parameter when present.
func resolveRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" {
		return "https:" + href
	}
	return href
}
