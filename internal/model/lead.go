// Package model defines the canonical lead and candidate schema shared by
// every component. Sink adapters translate to their own field names at the
// boundary; nothing outside internal/sink should see a French column label.
package model

import (
	"strings"
	"time"
)

// LeadStatus tracks where a lead sits in the outreach workflow. Status is
// mutated only in the external sink, never by the harvest pipeline.
type LeadStatus string

const (
	StatusNotContacted LeadStatus = "not_contacted"
	StatusContacted    LeadStatus = "contacted"
	StatusArchived     LeadStatus = "archived"
)

// ShopType maps a geodata tag (e.g. "shop=clothes") to its display label.
type ShopType struct {
	Tag   string `yaml:"tag" mapstructure:"tag"`
	Label string `yaml:"label" mapstructure:"label"`
}

// Key returns the tag split into its key/value halves. The second return is
// empty when the tag is malformed.
func (t ShopType) Key() (string, string) {
	k, v, ok := strings.Cut(t.Tag, "=")
	if !ok {
		return k, ""
	}
	return k, v
}

// Candidate is a prospective lead straight out of the geodata source, before
// website enrichment. It is ephemeral: converted to a Lead or discarded
// within a single run.
type Candidate struct {
	Name            string `json:"name,omitempty"`
	City            string `json:"city"`
	Postcode        string `json:"postcode,omitempty"`
	ShopType        string `json:"shop_type"`
	Website         string `json:"website,omitempty"`
	InstagramHandle string `json:"instagram_handle,omitempty"`
	Email           string `json:"email,omitempty"`
}

// Enrichable reports whether the candidate carries at least one contact
// signal worth keeping. Candidates with neither a website nor a handle are
// dropped before enrichment.
func (c Candidate) Enrichable() bool {
	return c.Website != "" || c.InstagramHandle != ""
}

// NeedsScrape reports whether the enricher should fetch the candidate's
// website. A handle already provided by the source is never re-derived by
// scraping.
func (c Candidate) NeedsScrape() bool {
	return c.Website != "" && c.InstagramHandle == ""
}

// EnrichmentResult is the output of scraping one website. Empty strings mean
// "not found"; absence of both fields is a normal outcome, not an error.
type EnrichmentResult struct {
	Email           string `json:"email,omitempty"`
	InstagramHandle string `json:"instagram_handle,omitempty"`
}

// Lead is the persisted unit. Name holds the Instagram handle when one was
// found and is empty otherwise.
type Lead struct {
	Name        string     `json:"name"`
	WebsiteURL  string     `json:"website_url,omitempty"`
	City        string     `json:"city"`
	ShopType    string     `json:"shop_type"`
	Email       string     `json:"email,omitempty"`
	LastContact *time.Time `json:"last_contact"`
	Status      LeadStatus `json:"status"`
}

// HasContact reports whether the lead carries at least one usable contact
// signal (handle or email). The store splits result files on this.
func (l Lead) HasContact() bool {
	return l.Name != "" || l.Email != ""
}

// FromCandidate converts an enriched candidate into a persistable lead.
// The postcode stands in for the city when the source has no city tag.
func FromCandidate(c Candidate) Lead {
	city := c.City
	if city == "" {
		city = c.Postcode
	}
	return Lead{
		Name:       c.InstagramHandle,
		WebsiteURL: c.Website,
		City:       city,
		ShopType:   c.ShopType,
		Email:      c.Email,
		Status:     StatusNotContacted,
	}
}

// NormalizeURL lowercases a URL, strips the http(s) scheme, and strips any
// trailing slash. This is the only notion of "same URL" used for dedup; it
// must be applied before every URL comparison. Idempotent.
func NormalizeURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}
