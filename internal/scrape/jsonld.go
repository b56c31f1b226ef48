package scrape

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// businessProps are JSON-LD property names that indicate a real company
// profile rather than boilerplate markup. Each one found adds confidence.
var businessProps = []string{
	"employeeCount", "revenue", "founded", "industry",
	"contactPoint", "location", "logo",
}

// extractJSONLD decodes every ld+json block on the page and flattens the
// combined structure into one map. Invalid blocks are skipped.
func extractJSONLD(doc *goquery.Document) (map[string]any, float64) {
	data := map[string]any{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var block any
		if err := json.Unmarshal([]byte(sel.Text()), &block); err != nil {
			return
		}
		flattenJSON("", block, data)
	})

	if len(data) == 0 {
		return nil, 0
	}
	return data, jsonLDConfidence(data)
}

// flattenJSON flattens nested maps and arrays into out with "_"-joined
// keys. Array elements use their numeric index as the key segment.
func flattenJSON(prefix string, v any, out map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			flattenJSON(joinKey(prefix, k), val, out)
		}
	case []any:
		for i, val := range t {
			flattenJSON(joinKey(prefix, strconv.Itoa(i)), val, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

// jsonLDConfidence scores how complete the structured data looks.
func jsonLDConfidence(data map[string]any) float64 {
	conf := 0.0
	if hasField(data, "name") || hasField(data, "legalName") {
		conf += 0.3
	}
	if hasField(data, "description") {
		conf += 0.2
	}
	if hasField(data, "url") {
		conf += 0.1
	}
	if hasField(data, "email") || hasField(data, "telephone") {
		conf += 0.1
	}
	if hasField(data, "address") {
		conf += 0.2
	}
	if hasField(data, "foundingDate") {
		conf += 0.1
	}

	serialized := strings.ToLower(fmt.Sprintf("%v", data))
	for _, prop := range businessProps {
		if strings.Contains(serialized, strings.ToLower(prop)) {
			conf += 0.1
		}
	}

	if conf > 1 {
		conf = 1
	}
	return conf
}

// hasField reports whether a flattened key matches the property name, either
// exactly, as a nested leaf ("contactPoint_email"), or as an object prefix
// ("address_streetAddress").
func hasField(data map[string]any, name string) bool {
	for k := range data {
		if k == name || strings.HasSuffix(k, "_"+name) || strings.HasPrefix(k, name+"_") {
			return true
		}
	}
	return false
}
