package abstracts

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/lueurxax/acitrack/internal/platform/htmlutils"
)

const (
	maxAbstractRunes = 4000
	maxTextRunes     = 20000
	// Descriptions shorter than this are usually a site tagline, not an abstract.
	minAbstractRunes = 80
)

// Page is what could be read from a publication landing page.
type Page struct {
	Title       string
	Abstract    string
	Authors     []string
	DOI         string
	PublishedAt time.Time
	// Text is the readable article body, when readability found one.
	Text string
}

// Extract reads a publication page. Scholarly metadata (Highwire citation_*
// tags, Dublin Core, schema.org JSON-LD) wins over generic descriptions, which
// win over the readability excerpt.
func Extract(htmlBytes []byte, rawURL string) *Page {
	meta := extractMetaTags(htmlBytes)
	ld := extractJSONLD(htmlBytes)

	page := &Page{
		Title:       coalesce(meta.CitationTitle, ld.Title, meta.OGTitle, meta.Title),
		Authors:     meta.CitationAuthors,
		DOI:         coalesce(meta.CitationDOI, ld.DOI),
		PublishedAt: coalesceTime(parseDate(meta.CitationDate), parseDate(ld.PublishedAt), parseDate(meta.DCDate)),
	}

	if len(page.Authors) == 0 && ld.Author != "" {
		page.Authors = []string{ld.Author}
	}

	abstract := coalesce(meta.CitationAbstract, ld.Abstract, meta.DCDescription)

	u, _ := url.Parse(rawURL) //nolint:errcheck // a nil URL only disables link resolution

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), u)
	if err == nil {
		page.Text = htmlutils.Truncate(htmlutils.CollapseWhitespace(article.TextContent), maxTextRunes)
		page.Title = coalesce(page.Title, article.Title)

		if len(page.Authors) == 0 && article.Byline != "" {
			page.Authors = []string{article.Byline}
		}
	}

	if abstract == "" {
		abstract = longEnough(coalesce(ld.Description, meta.OGDescription, meta.Description))
	}

	if abstract == "" && err == nil {
		abstract = longEnough(article.Excerpt)
	}

	page.Abstract = htmlutils.Truncate(htmlutils.ToText(abstract), maxAbstractRunes)

	return page
}

func longEnough(s string) string {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < minAbstractRunes {
		return ""
	}

	return s
}

type metaTags struct {
	Title            string
	Description      string
	OGTitle          string
	OGDescription    string
	CitationTitle    string
	CitationAbstract string
	CitationAuthors  []string
	CitationDate     string
	CitationDOI      string
	DCDescription    string
	DCDate           string
}

func extractMetaTags(htmlBytes []byte) metaTags {
	var meta metaTags

	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return meta
	}

	var traverse func(*html.Node)

	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			processMetaElement(n, &meta)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	return meta
}

func processMetaElement(n *html.Node, meta *metaTags) {
	switch n.Data {
	case "title":
		if meta.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			meta.Title = strings.TrimSpace(n.FirstChild.Data)
		}
	case "meta":
		applyMetaTag(n, meta)
	}
}

func applyMetaTag(n *html.Node, meta *metaTags) {
	name, content := getMetaAttrs(n)
	content = strings.TrimSpace(content)

	if content == "" {
		return
	}

	switch strings.ToLower(name) {
	case "description":
		meta.Description = content
	case "og:title":
		meta.OGTitle = content
	case "og:description":
		meta.OGDescription = content
	case "citation_title":
		meta.CitationTitle = content
	case "citation_abstract":
		meta.CitationAbstract = content
	case "citation_author":
		meta.CitationAuthors = append(meta.CitationAuthors, content)
	case "citation_publication_date", "citation_date", "citation_online_date":
		if meta.CitationDate == "" {
			meta.CitationDate = content
		}
	case "citation_doi":
		meta.CitationDOI = strings.TrimPrefix(content, "doi:")
	case "dc.description", "dcterms.abstract":
		meta.DCDescription = content
	case "dc.date", "dcterms.issued":
		meta.DCDate = content
	}
}

func getMetaAttrs(n *html.Node) (string, string) {
	var name, content string

	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "name", "property":
			name = attr.Val
		case "content":
			content = attr.Val
		}
	}

	return name, content
}

type jsonLD struct {
	Title       string
	Description string
	Abstract    string
	Author      string
	PublishedAt string
	DOI         string
}

var scholarlyTypes = map[string]bool{
	"ScholarlyArticle":        true,
	"MedicalScholarlyArticle": true,
	"Article":                 true,
	"NewsArticle":             true,
	"Report":                  true,
}

func extractJSONLD(htmlBytes []byte) jsonLD {
	var ld jsonLD

	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return ld
	}

	var traverse func(*html.Node)

	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "type" && attr.Val == "application/ld+json" {
					if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
						parseLDJSON(n.FirstChild.Data, &ld)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	return ld
}

func parseLDJSON(data string, ld *jsonLD) {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return
	}

	processLDValue(v, ld)
}

func processLDValue(v any, ld *jsonLD) {
	switch m := v.(type) {
	case map[string]any:
		extractFromLDMap(m, ld)

		if graph, ok := m["@graph"].([]any); ok {
			for _, item := range graph {
				processLDValue(item, ld)
			}
		}
	case []any:
		for _, item := range m {
			processLDValue(item, ld)
		}
	}
}

func extractFromLDMap(m map[string]any, ld *jsonLD) {
	if !isScholarlyType(m["@type"]) {
		return
	}

	if title, ok := m["headline"].(string); ok {
		ld.Title = title
	} else if name, ok := m["name"].(string); ok {
		ld.Title = name
	}

	if desc, ok := m["description"].(string); ok {
		ld.Description = desc
	}

	if abstract, ok := m["abstract"].(string); ok {
		ld.Abstract = abstract
	}

	if date, ok := m["datePublished"].(string); ok {
		ld.PublishedAt = date
	}

	if author, ok := m["author"]; ok {
		ld.Author = extractLDAuthor(author)
	}

	if doi, ok := m["doi"].(string); ok {
		ld.DOI = doi
	}
}

// isScholarlyType accepts "@type" as a string or a list of strings.
func isScholarlyType(v any) bool {
	switch t := v.(type) {
	case string:
		return scholarlyTypes[t]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && scholarlyTypes[s] {
				return true
			}
		}
	}

	return false
}

func extractLDAuthor(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return name
		}
	case []any:
		if len(a) > 0 {
			return extractLDAuthor(a[0])
		}
	}

	return ""
}

func coalesce(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}

	return ""
}

func coalesceTime(times ...time.Time) time.Time {
	for _, t := range times {
		if !t.IsZero() {
			return t
		}
	}

	return time.Time{}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}

	return t
}
