package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Default DuckDuckGo endpoints.
const (
	DefaultDuckDuckGoAPIURL  = "https://api.duckduckgo.com/"
	DefaultDuckDuckGoHTMLURL = "https://html.duckduckgo.com/html/"
)

// DuckDuckGo asks the instant-answer API first and falls back to scraping the
// HTML results page.
type DuckDuckGo struct {
	apiURL     string
	htmlURL    string
	httpClient *http.Client
}

// NewDuckDuckGo creates a provider. Empty URLs select the public endpoints.
func NewDuckDuckGo(apiURL, htmlURL string, httpClient *http.Client) *DuckDuckGo {
	if apiURL == "" {
		apiURL = DefaultDuckDuckGoAPIURL
	}
	if htmlURL == "" {
		htmlURL = DefaultDuckDuckGoHTMLURL
	}
	return &DuckDuckGo{apiURL: apiURL, htmlURL: htmlURL, httpClient: newHTTPClient(httpClient)}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string { return "DuckDuckGo" }

// Search implements Provider. An instant-answer failure is logged and the HTML
// page is tried; only the HTML failure is returned.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	answer, err := d.instantAnswer(ctx, query)
	if err != nil {
		log.Debug().Err(err).Msg("duckduckgo instant answer unavailable")
	}
	if answer != "" {
		return answer, nil
	}

	results, err := d.htmlResults(ctx, query)
	if err != nil {
		return "", err
	}
	return formatBundle("DuckDuckGo search results", results), nil
}

// ─── instant answers ────────────────────────────────────────────────────────

type ddgTopic struct {
	Text string `json:"Text"`
}

type ddgInstantAnswer struct {
	Abstract        string          `json:"Abstract"`
	AbstractText    string          `json:"AbstractText"`
	AbstractURL     string          `json:"AbstractURL"`
	Definition      string          `json:"Definition"`
	Answer          json.RawMessage `json:"Answer"`
	RelatedTopics   []ddgTopic      `json:"RelatedTopics"`
	Results         []ddgTopic      `json:"Results"`
	OfficialWebsite string          `json:"OfficialWebsite"`
}

func (d *DuckDuckGo) instantAnswer(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	body, err := d.get(ctx, d.apiURL, params)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	var ia ddgInstantAnswer
	if err := json.NewDecoder(body).Decode(&ia); err != nil {
		return "", errors.Wrap(err, "duckduckgo: decode instant answer")
	}
	return formatInstantAnswer(ia), nil
}

func formatInstantAnswer(ia ddgInstantAnswer) string {
	var parts []string
	switch {
	case ia.Abstract != "":
		parts = append(parts, "📋 **Summary:**\n"+ia.Abstract)
	case ia.AbstractText != "":
		parts = append(parts, "📋 **Summary:**\n"+ia.AbstractText)
	}
	if ia.Definition != "" {
		parts = append(parts, "📖 **Definition:**\n"+ia.Definition)
	}
	// Answer is a string for most queries and an object for calculators and the like.
	var answer string
	if json.Unmarshal(ia.Answer, &answer) == nil && answer != "" {
		parts = append(parts, "💡 **Quick answer:**\n"+answer)
	}

	var topics []string
	for _, t := range head(ia.RelatedTopics, 3) {
		if t.Text != "" {
			topics = append(topics, "• "+string(firstRunes(t.Text, 100))+"...")
		}
	}
	if len(topics) > 0 {
		parts = append(parts, "🔗 **Related topics:**\n"+strings.Join(topics, "\n"))
	}

	var more []string
	for _, r := range head(ia.Results, 2) {
		if r.Text != "" {
			more = append(more, "• "+r.Text)
		}
	}
	if len(more) > 0 {
		parts = append(parts, "🔎 **More results:**\n"+strings.Join(more, "\n"))
	}

	if len(parts) == 0 {
		return ""
	}
	out := strings.Join(parts, "\n\n")
	switch {
	case ia.AbstractURL != "":
		out += "\n\n📚 **Source:** " + ia.AbstractURL
	case ia.OfficialWebsite != "":
		out += "\n\n🌐 **Official site:** " + ia.OfficialWebsite
	}
	return "🔍 **DuckDuckGo:**\n\n" + out
}

func head(ts []ddgTopic, n int) []ddgTopic {
	if len(ts) > n {
		return ts[:n]
	}
	return ts
}

func firstRunes(s string, n int) []rune {
	r := []rune(s)
	if len(r) > n {
		return r[:n]
	}
	return r
}

// ─── HTML results page ──────────────────────────────────────────────────────

func (d *DuckDuckGo) htmlResults(ctx context.Context, query string) ([]Result, error) {
	body, err := d.get(ctx, d.htmlURL, url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	doc, err := html.Parse(body)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo: parse html")
	}
	var results []Result
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, Result{Title: nodeText(n), URL: resolveRedirect(attr(n, "href"))})
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Text results without a body are ads or navigation links.
	kept := results[:0]
	for _, r := range results {
		if r.Title != "" && r.Snippet != "" {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (d *DuckDuckGo) get(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo: build request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck,gosec
		return nil, errors.Errorf("duckduckgo: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" click-tracking links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
