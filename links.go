package listscrape

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// DefaultArticleMarker is the path segment that marks article links.
const DefaultArticleMarker = "/blog/"

// LinkOptions controls article link discovery.
type LinkOptions struct {
	// ArticleMarker must appear in a link's path for it to count as an
	// article. Empty means DefaultArticleMarker.
	ArticleMarker string
}

// ExtractLinks returns the unique article URLs found in a listing page, in
// the order they first appear. Relative links are resolved against
// originURL. Listing pages served as RSS or Atom are read through their
// item links. A page without matching links yields an empty slice.
func ExtractLinks(markup, originURL string, opts LinkOptions) ([]string, error) {
	origin, err := url.Parse(originURL)
	if err != nil || !origin.IsAbs() {
		return nil, &ValidationError{URL: originURL, Reason: "origin must be an absolute URL", Err: err}
	}

	targets, err := linkTargets(markup, originURL)
	if err != nil {
		return nil, err
	}

	marker := opts.ArticleMarker
	if marker == "" {
		marker = DefaultArticleMarker
	}

	seen := make(map[string]struct{}, len(targets))
	links := []string{}
	for _, target := range targets {
		link, ok := normalizeLink(origin, target)
		if !ok || !isArticlePath(link, marker) {
			continue
		}

		key := link.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, key)
	}

	return links, nil
}

// linkTargets collects raw hyperlink targets, from feed items when the
// markup is a feed and from anchors otherwise.
func linkTargets(markup, sourceURL string) ([]string, error) {
	if gofeed.DetectFeedType(strings.NewReader(markup)) != gofeed.FeedTypeUnknown {
		feed, err := gofeed.NewParser().ParseString(markup)
		if err == nil {
			targets := make([]string, 0, len(feed.Items))
			for _, item := range feed.Items {
				if item.Link != "" {
					targets = append(targets, item.Link)
				}
			}
			return targets, nil
		}
		// Looked like a feed but was not one; treat it as HTML.
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ParseError{URL: sourceURL, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	var targets []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			targets = append(targets, href)
		}
	})

	return targets, nil
}

// normalizeLink resolves href against base and drops the fragment. Only
// http and https links survive.
func normalizeLink(base *url.URL, href string) (*url.URL, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	link := base.ResolveReference(ref)
	if link.Scheme != "http" && link.Scheme != "https" {
		return nil, false
	}
	if link.Host == "" {
		return nil, false
	}

	link.Host = strings.ToLower(link.Host)
	link.Fragment = ""
	link.RawFragment = ""

	return link, true
}

// isArticlePath applies the marker heuristic to the path only. The index
// page itself ("/blog/") and its slashless form ("/blog") are rejected.
func isArticlePath(link *url.URL, marker string) bool {
	path := link.Path
	bare := strings.TrimSuffix(marker, "/")

	return strings.Contains(path, marker) &&
		path != marker &&
		(bare == "" || !strings.HasSuffix(path, bare))
}
