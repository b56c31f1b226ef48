package scrape

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
)

// pageSnapshot is what the in-page collection script returns.
type pageSnapshot struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	MetaDescription string   `json:"meta_description"`
	OGDescription   string   `json:"og_description"`
	JSONLD          []string `json:"jsonld"`
	TextContent     string   `json:"text_content"`
	Links           []string `json:"links"`
	BodyText        string   `json:"body_text"`
}

// snapshotJS collects everything in one evaluation so the page round-trips
// once.
const snapshotJS = `() => {
	const meta = (name) => {
		const el = document.querySelector('meta[name="' + name + '"]')
			|| document.querySelector('meta[property="' + name + '"]');
		return el ? (el.getAttribute('content') || '') : '';
	};
	const jsonld = Array.from(
		document.querySelectorAll('script[type="application/ld+json"]')
	).map(s => s.textContent);
	const links = Array.from(document.querySelectorAll('a[href]'))
		.map(a => a.href)
		.filter(h => h.startsWith('http'));
	const text = document.body ? document.body.innerText : '';
	return {
		title: document.title,
		url: location.href,
		meta_description: meta('description'),
		og_description: meta('og:description'),
		jsonld: jsonld,
		text_content: text.slice(0, 8000),
		links: links,
		body_text: text,
	};
}`

// scrapeHeadless renders the page in a stealth browser and extracts fields
// from the live DOM. A fresh browser is launched per call and always closed
// before returning.
func (s *TieredScraper) scrapeHeadless(ctx context.Context, targetURL string) (map[string]any, float64, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-plugins").
		Set("disable-images")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: launch browser")
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: connect browser")
	}
	defer func() { _ = browser.Close() }()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: open page")
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.cfg.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: set user agent")
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1366,
		Height:            768,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: set viewport")
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(targetURL); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: navigate")
	}
	wait()

	// Let client-side rendering settle before reading the DOM.
	settle := time.Duration(s.cfg.HeadlessWaitSecs) * time.Second
	if settle == 0 {
		settle = 3 * time.Second
	}
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return nil, 0, eris.Wrap(ctx.Err(), "scrape: settle wait")
	}

	obj, err := page.Eval(snapshotJS)
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: evaluate page")
	}
	raw, err := obj.Value.MarshalJSON()
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: encode snapshot")
	}
	var snap pageSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: decode snapshot")
	}

	data := map[string]any{
		"title":                  snap.Title,
		"url":                    snap.URL,
		"meta_description":       snap.MetaDescription,
		"og_description":         snap.OGDescription,
		"jsonld":                 snap.JSONLD,
		"text_content":           collapseText(snap.TextContent),
		"links":                  snap.Links,
		"emails":                 findEmails(snap.BodyText),
		"phones":                 findPhones(snap.BodyText),
		"potential_company_name": companyNameFromHost(targetURL),
	}
	return data, pageConfidence(data), nil
}
