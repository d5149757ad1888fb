package enrich

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Nardjo/leadster/internal/validate"
)

// emailFromMailto returns the first valid address found in a mailto: link,
// with the scheme prefix and any ?subject= style suffix stripped.
func emailFromMailto(doc *goquery.Document) string {
	var email string
	doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.Index(addr, "?"); i >= 0 {
			addr = addr[:i]
		}
		if validate.IsValidEmail(addr) {
			email = addr
			return false
		}
		return true
	})
	return email
}

// emailFromJSONLD scans embedded JSON-LD blocks for an email field, either at
// the top level or nested under contactPoint. Malformed blocks are skipped.
func emailFromJSONLD(doc *goquery.Document) string {
	var email string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if found := jsonLDEmail(data); found != "" {
			email = found
			return false
		}
		return true
	})
	return email
}

// jsonLDEmail walks a decoded JSON-LD value. Top-level arrays (@graph style
// documents) and contactPoint objects or arrays are all accepted shapes.
func jsonLDEmail(data any) string {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if email := jsonLDEmail(item); email != "" {
				return email
			}
		}
	case map[string]any:
		if email, ok := v["email"].(string); ok && validate.IsValidEmail(email) {
			return email
		}
		if cp, ok := v["contactPoint"]; ok {
			if email := jsonLDEmail(cp); email != "" {
				return email
			}
		}
	}
	return ""
}

var instagramLinkRe = regexp.MustCompile(`instagram\.com/[A-Za-z0-9_.-]+`)

// extractHandle finds an Instagram handle: first via anchor hrefs, then by a
// whole-document regex sweep for sites that bury the link in scripts or
// widget markup.
func extractHandle(p *page) string {
	var handle string
	p.doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "instagram.com") {
			return true
		}
		if h := validate.ExtractInstagramHandle(href); h != "" {
			handle = h
			return false
		}
		return true
	})
	if handle != "" {
		return handle
	}

	for _, m := range instagramLinkRe.FindAllString(p.raw, -1) {
		if h := validate.ExtractInstagramHandle(m); h != "" {
			return h
		}
	}
	return ""
}
