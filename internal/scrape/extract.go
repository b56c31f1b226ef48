package scrape

import (
	"net/url"
	"regexp"
	"strings"
)

const maxTextContent = 8000

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d{1,2}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// findEmails returns the distinct email addresses in the text, in order of
// first appearance. Matching runs over the lowercased text.
func findEmails(text string) []string {
	return uniqueStrings(emailRe.FindAllString(strings.ToLower(text), -1))
}

// findPhones returns the distinct phone-number candidates in the text.
func findPhones(text string) []string {
	return uniqueStrings(phoneRe.FindAllString(strings.ToLower(text), -1))
}

func uniqueStrings(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// companyNameFromHost derives a candidate company name from the URL host:
// the first label after stripping a leading www.
func companyNameFromHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" {
		return ""
	}
	return strings.SplitN(host, ".", 2)[0]
}

// pageConfidence scores a rendered-page extraction. Base 0.3 for a page
// that loaded at all, plus increments per field found.
func pageConfidence(data map[string]any) float64 {
	conf := 0.3
	if s, _ := data["title"].(string); s != "" {
		conf += 0.2
	}
	desc, _ := data["meta_description"].(string)
	ogDesc, _ := data["og_description"].(string)
	if desc != "" || ogDesc != "" {
		conf += 0.2
	}
	if emails, ok := data["emails"].([]string); ok && len(emails) > 0 {
		conf += 0.2
	}
	if phones, ok := data["phones"].([]string); ok && len(phones) > 0 {
		conf += 0.1
	}
	if links, ok := data["links"].([]string); ok && len(links) > 5 {
		conf += 0.1
	}
	if s, _ := data["potential_company_name"].(string); s != "" {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// collapseText normalizes whitespace and caps the text length.
func collapseText(text string) string {
	text = strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
	if len(text) > maxTextContent {
		text = text[:maxTextContent]
	}
	return text
}
