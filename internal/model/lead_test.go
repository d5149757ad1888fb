package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https scheme stripped", "https://Example.com/", "example.com"},
		{"http scheme stripped", "http://example.com", "example.com"},
		{"no scheme", "example.com", "example.com"},
		{"trailing slash only once", "https://shopx.fr/boutique/", "shopx.fr/boutique"},
		{"mixed case lowered", "HTTPS://ShopX.FR", "shopx.fr"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.com/",
		"http://shopx.fr",
		"shopx.fr/page/",
		"",
	}
	for _, u := range urls {
		once := NormalizeURL(u)
		assert.Equal(t, once, NormalizeURL(once), "NormalizeURL must be idempotent for %q", u)
	}
}

func TestShopTypeKey(t *testing.T) {
	k, v := ShopType{Tag: "shop=clothes"}.Key()
	assert.Equal(t, "shop", k)
	assert.Equal(t, "clothes", v)

	k, v = ShopType{Tag: "craft=jeweller"}.Key()
	assert.Equal(t, "craft", k)
	assert.Equal(t, "jeweller", v)

	_, v = ShopType{Tag: "malformed"}.Key()
	assert.Empty(t, v)
}

func TestCandidateEnrichable(t *testing.T) {
	assert.True(t, Candidate{Website: "https://shopx.fr"}.Enrichable())
	assert.True(t, Candidate{InstagramHandle: "shopx"}.Enrichable())
	assert.False(t, Candidate{Name: "Shop X", City: "Lyon"}.Enrichable())
}

func TestCandidateNeedsScrape(t *testing.T) {
	assert.True(t, Candidate{Website: "https://shopx.fr"}.NeedsScrape())
	// Source-provided handle suppresses scraping.
	assert.False(t, Candidate{Website: "https://shopx.fr", InstagramHandle: "shopx"}.NeedsScrape())
	assert.False(t, Candidate{InstagramHandle: "shopx"}.NeedsScrape())
}

func TestFromCandidate(t *testing.T) {
	lead := FromCandidate(Candidate{
		City:            "Lyon",
		ShopType:        "Vêtements",
		Website:         "https://shopx.fr",
		InstagramHandle: "shopx",
		Email:           "hello@shopx.fr",
	})
	assert.Equal(t, "shopx", lead.Name)
	assert.Equal(t, "https://shopx.fr", lead.WebsiteURL)
	assert.Equal(t, StatusNotContacted, lead.Status)
	assert.Nil(t, lead.LastContact)
	assert.True(t, lead.HasContact())

	bare := FromCandidate(Candidate{City: "Lyon", ShopType: "Bijoux", Website: "https://bare.fr"})
	assert.False(t, bare.HasContact())

	byPostcode := FromCandidate(Candidate{Postcode: "69001", ShopType: "Bijoux"})
	assert.Equal(t, "69001", byPostcode.City, "postcode stands in for a missing city")
}
