package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractMeta collects the title, meta description, Open Graph and Twitter
// card tags, and the page's outbound links.
func extractMeta(doc *goquery.Document, pageURL string) (map[string]any, float64) {
	data := map[string]any{}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data["title"] = title
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		content := strings.TrimSpace(sel.AttrOr("content", ""))
		if content == "" {
			return
		}
		if name, _ := sel.Attr("name"); name == "description" {
			data["description"] = content
		}
		prop := sel.AttrOr("property", sel.AttrOr("name", ""))
		switch {
		case strings.HasPrefix(prop, "og:"):
			data["og_"+strings.TrimPrefix(prop, "og:")] = content
		case strings.HasPrefix(prop, "twitter:"):
			data["twitter_"+strings.TrimPrefix(prop, "twitter:")] = content
		}
	})

	links := extractLinks(doc, pageURL)
	if len(links) > 0 {
		data["links"] = links
	}

	return data, metaConfidence(data)
}

// extractLinks keeps absolute http(s) hrefs and resolves rooted paths
// against the page URL.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, baseErr := url.Parse(pageURL)
	var links []string
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		switch {
		case strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://"):
		case strings.HasPrefix(href, "/") && baseErr == nil:
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			href = base.ResolveReference(ref).String()
		default:
			return
		}
		if !seen[href] {
			seen[href] = true
			links = append(links, href)
		}
	})

	return links
}

func metaConfidence(data map[string]any) float64 {
	conf := 0.0
	if data["title"] != nil {
		conf += 0.3
	}
	if data["description"] != nil {
		conf += 0.3
	}
	if data["og_title"] != nil || data["og_description"] != nil {
		conf += 0.2
	}
	if links, ok := data["links"].([]string); ok && len(links) > 0 {
		conf += 0.1
	}
	if data["og_image"] != nil {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
