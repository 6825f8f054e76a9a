package listscrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// DefaultCategoryMarkers are the href substrings that mark category links.
var DefaultCategoryMarkers = []string{"category", "blog_categories"}

// Content containers in priority order.
var contentSelectors = []string{"div.post-content", "article", "div.content"}

// Date candidates in priority order. A datetime attribute wins over the
// element's text. A matching element with an empty value falls through to
// the next selector.
var dateSelectors = []string{"time[datetime]", ".date", ".post-date", ".published"}

// FieldOptions controls article field extraction.
type FieldOptions struct {
	// CategoryMarkers are href substrings identifying category links. Nil
	// means DefaultCategoryMarkers.
	CategoryMarkers []string
	// ReadabilityFallback runs a readability pass over the whole page when
	// no content container matches.
	ReadabilityFallback bool
}

// page is what every extraction rule sees.
type page struct {
	doc    *goquery.Document
	base   *url.URL
	markup string
}

// rule extracts one candidate value for a field; "" means no match.
type rule func(p *page) string

// firstOf returns the first non-empty value produced by rules.
func firstOf(p *page, rules ...rule) string {
	for _, r := range rules {
		if v := r(p); v != "" {
			return v
		}
	}
	return ""
}

// ExtractFields builds an ArticleRecord from an article page. It never
// fails: markup that cannot be parsed, or that matches no rule, yields a
// record with only URL set.
func ExtractFields(markup, sourceURL string, opts FieldOptions) ArticleRecord {
	doc, err := ParseDocument(markup, sourceURL)
	if err != nil {
		return ArticleRecord{URL: sourceURL}
	}
	return ExtractFieldsFromDocument(doc, markup, sourceURL, opts)
}

// ParseDocument parses markup into a goquery document.
func ParseDocument(markup, sourceURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ParseError{URL: sourceURL, Err: err}
	}
	return doc, nil
}

// ExtractFieldsFromDocument is ExtractFields for an already parsed page.
// markup is only read by the readability fallback.
func ExtractFieldsFromDocument(doc *goquery.Document, markup, sourceURL string, opts FieldOptions) ArticleRecord {
	p := &page{doc: doc, markup: markup}
	if base, err := url.Parse(sourceURL); err == nil {
		p.base = base
	}

	contentRules := make([]rule, 0, len(contentSelectors)+1)
	for _, sel := range contentSelectors {
		contentRules = append(contentRules, containerText(sel))
	}
	if opts.ReadabilityFallback {
		contentRules = append(contentRules, readabilityText)
	}

	markers := opts.CategoryMarkers
	if markers == nil {
		markers = DefaultCategoryMarkers
	}

	return ArticleRecord{
		Title:           firstOf(p, elementText("h1"), elementText("title")),
		URL:             sourceURL,
		Date:            firstOf(p, dateRules()...),
		Categories:      categories(p, markers),
		MetaDescription: firstOf(p, metaDescription),
		FeaturedImage:   firstOf(p, ogImage, firstImage),
		Content:         firstOf(p, contentRules...),
	}
}

func elementText(selector string) rule {
	return func(p *page) string {
		return normalizeSpace(p.doc.Find(selector).First().Text())
	}
}

// containerText returns the text of the first element matching selector,
// with script and style subtrees removed.
func containerText(selector string) rule {
	return func(p *page) string {
		container := p.doc.Find(selector).First()
		if container.Length() == 0 {
			return ""
		}

		clean := container.Clone()
		clean.Find("script, style, noscript").Remove()
		return blockText(clean)
	}
}

func readabilityText(p *page) string {
	if strings.TrimSpace(p.markup) == "" {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(p.markup), p.base)
	if err != nil {
		return ""
	}
	return normalizeSpace(article.TextContent)
}

func metaDescription(p *page) string {
	var content string
	p.doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("name", ""), "description") {
			content = strings.TrimSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})
	return content
}

func ogImage(p *page) string {
	raw := strings.TrimSpace(p.doc.Find(`meta[property="og:image"]`).First().AttrOr("content", ""))
	return resolveURL(p.base, raw)
}

func firstImage(p *page) string {
	raw := strings.TrimSpace(p.doc.Find("img[src]").First().AttrOr("src", ""))
	return resolveURL(p.base, raw)
}

func dateRules() []rule {
	rules := make([]rule, 0, len(dateSelectors))
	for _, sel := range dateSelectors {
		rules = append(rules, dateValue(sel))
	}
	return rules
}

// dateValue reads the first element matching selector. The raw token is
// kept as-is; no date parsing happens here.
func dateValue(selector string) rule {
	return func(p *page) string {
		el := p.doc.Find(selector).First()
		if el.Length() == 0 {
			return ""
		}
		if dt := strings.TrimSpace(el.AttrOr("datetime", "")); dt != "" {
			return dt
		}
		return normalizeSpace(el.Text())
	}
}

// categories collects the text of every link whose href contains one of
// markers, in document order.
func categories(p *page, markers []string) []string {
	var found []string
	p.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		for _, marker := range markers {
			if marker != "" && strings.Contains(href, marker) {
				if text := normalizeSpace(s.Text()); text != "" {
					found = append(found, text)
				}
				return
			}
		}
	})
	return found
}

// resolveURL makes raw absolute against base. Unparsable values are kept
// verbatim.
func resolveURL(base *url.URL, raw string) string {
	if raw == "" || base == nil {
		return raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// blockText extracts text from a selection, separating block-level
// elements with a space so paragraphs do not run together.
func blockText(s *goquery.Selection) string {
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}

		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}

	for _, n := range s.Nodes {
		walk(n)
	}

	return normalizeSpace(b.String())
}
