// Package dedup answers "have we seen this shop before?" across every prior
// knowledge source. Two records are the same real-world shop if their handles
// match exactly OR their normalized URL and shop type both match; the two
// signals are tracked in separate lookup structures because either one alone
// can identify a duplicate.
package dedup

import (
	"github.com/Nardjo/leadster/internal/model"
)

type urlTypeKey struct {
	url      string
	shopType string
}

// Index is a membership test built from prior leads. Once built it can be
// queried from any goroutine; Add is only safe from a single goroutine with
// no concurrent queries.
type Index struct {
	handles  map[string]struct{}
	urlTypes map[urlTypeKey]struct{}
}

// NewIndex builds an Index from any number of prior-knowledge sources.
// Empty-string handles are treated as absent, never as a matchable value.
func NewIndex(sources ...[]model.Lead) *Index {
	idx := &Index{
		handles:  make(map[string]struct{}),
		urlTypes: make(map[urlTypeKey]struct{}),
	}
	for _, leads := range sources {
		for _, l := range leads {
			idx.Add(l)
		}
	}
	return idx
}

// Add indexes one more lead. Used for within-run dedup, where each accepted
// lead must block later duplicates in the same harvest.
func (idx *Index) Add(l model.Lead) {
	if l.Name != "" {
		idx.handles[l.Name] = struct{}{}
	}
	if l.WebsiteURL != "" {
		idx.urlTypes[urlTypeKey{model.NormalizeURL(l.WebsiteURL), l.ShopType}] = struct{}{}
	}
}

// Known reports whether the lead matches any prior record by handle or by
// normalized URL + shop type. The check is disjunctive: either hit is enough.
func (idx *Index) Known(l model.Lead) bool {
	if l.Name != "" {
		if _, ok := idx.handles[l.Name]; ok {
			return true
		}
	}
	return idx.KnownByURL(l.WebsiteURL, l.ShopType)
}

// KnownByURL is the pre-enrichment filter: before scraping, the handle is
// usually unknown, so only the (url, type) pair can be consulted.
func (idx *Index) KnownByURL(website, shopType string) bool {
	if website == "" {
		return false
	}
	_, ok := idx.urlTypes[urlTypeKey{model.NormalizeURL(website), shopType}]
	return ok
}

// FilterNew returns the leads not present in the index, preserving input
// order so the emitted set is deterministic for a fixed input.
func (idx *Index) FilterNew(leads []model.Lead) []model.Lead {
	fresh := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		if !idx.Known(l) {
			fresh = append(fresh, l)
		}
	}
	return fresh
}

// Len returns the number of distinct keys indexed, for progress logging.
func (idx *Index) Len() int {
	return len(idx.handles) + len(idx.urlTypes)
}
