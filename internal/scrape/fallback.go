package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fallbackPenalty discounts plain-request extractions against the rendered
// ones, since client-side content is invisible to a plain GET.
const fallbackPenalty = 0.8

// extractFallback pulls the rendered-tier fields out of a static document.
// Used when the browser tier errors or cannot launch.
func extractFallback(doc *goquery.Document, pageURL string) (map[string]any, float64) {
	data := map[string]any{
		"title":                  strings.TrimSpace(doc.Find("title").First().Text()),
		"url":                    pageURL,
		"potential_company_name": companyNameFromHost(pageURL),
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		content := strings.TrimSpace(sel.AttrOr("content", ""))
		if content == "" {
			return
		}
		if name, _ := sel.Attr("name"); name == "description" {
			data["meta_description"] = content
		}
		if prop, _ := sel.Attr("property"); prop == "og:description" {
			data["og_description"] = content
		}
	})

	var jsonld []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		jsonld = append(jsonld, sel.Text())
	})
	data["jsonld"] = jsonld

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			links = append(links, href)
		}
	})
	data["links"] = uniqueStrings(links)

	// Visible text only. Scripts, styles, and nav chrome are stripped first.
	doc.Find("script, style, nav").Remove()
	body := doc.Find("body").Text()
	data["text_content"] = collapseText(body)
	data["emails"] = findEmails(body)
	data["phones"] = findPhones(body)

	return data, pageConfidence(data) * fallbackPenalty
}
