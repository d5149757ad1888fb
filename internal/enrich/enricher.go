// Package enrich fetches a candidate's website and extracts contact signals
// (email, Instagram handle) through an ordered cascade of strategies.
package enrich

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/resilience"
	"github.com/Nardjo/leadster/internal/validate"
)

// maxBodyBytes caps how much of a page is read. Shop sites are small; anything
// past this is media or a misbehaving server.
const maxBodyBytes = 2 << 20

var nonWebSchemeRe = regexp.MustCompile(`(?i)^(tel|javascript):`)

// Verifier probes whether an email address plausibly exists. Best-effort: a
// failed or negative probe discards the email candidate, never the enrichment.
type Verifier interface {
	Verify(ctx context.Context, email string) bool
}

// Enricher scrapes websites for contact details.
type Enricher struct {
	httpClient *http.Client
	userAgent  string
	retry      resilience.RetryConfig
	verifier   Verifier // nil disables verification
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Enricher) { e.httpClient = hc }
}

// WithVerifier enables email existence probing for regex-derived emails.
func WithVerifier(v Verifier) Option {
	return func(e *Enricher) { e.verifier = v }
}

// WithRetry overrides the per-fetch retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Enricher) { e.retry = cfg }
}

// New creates an Enricher.
func New(timeout time.Duration, userAgent string, opts ...Option) *Enricher {
	e := &Enricher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich scrapes the candidate's website. It never returns an error: any
// fetch or parse failure for this one candidate yields an empty result so the
// run continues with the next one.
func (e *Enricher) Enrich(ctx context.Context, c model.Candidate) model.EnrichmentResult {
	rawURL := c.Website
	if rawURL == "" || nonWebSchemeRe.MatchString(rawURL) {
		return model.EnrichmentResult{}
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	page, err := e.fetch(ctx, rawURL)
	if err != nil {
		zap.L().Debug("enrich: fetch failed", zap.String("url", rawURL), zap.Error(err))
		return model.EnrichmentResult{}
	}

	email := e.extractEmail(ctx, page, rawURL)
	handle := extractHandle(page)

	return model.EnrichmentResult{Email: email, InstagramHandle: handle}
}

// page bundles the parsed document with the raw HTML, which the whole-document
// handle fallback needs.
type page struct {
	doc *goquery.Document
	raw string
}

func (e *Enricher) fetch(ctx context.Context, rawURL string) (*page, error) {
	return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*page, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "enrich: build request")
		}
		req.Header.Set("User-Agent", e.userAgent)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "enrich: fetch")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("enrich: status %d for %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, eris.Wrap(err, "enrich: read body")
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			return nil, eris.Wrap(err, "enrich: parse html")
		}
		return &page{doc: doc, raw: string(body)}, nil
	})
}

// extractEmail runs the four-stage cascade, stopping at the first hit.
// Verification (when enabled) applies only to regex-derived emails from
// stages 3 and 4; mailto and structured-data emails are trusted as published.
func (e *Enricher) extractEmail(ctx context.Context, p *page, baseURL string) string {
	if email := emailFromMailto(p.doc); email != "" {
		return email
	}
	if email := emailFromJSONLD(p.doc); email != "" {
		return email
	}

	email := validate.ExtractEmail(p.doc.Find("body").Text())
	if email == "" {
		email = e.emailFromContactPage(ctx, p.doc, baseURL)
	}
	if email == "" {
		return ""
	}
	if e.verifier != nil && !e.verifier.Verify(ctx, email) {
		zap.L().Debug("enrich: email failed existence probe", zap.String("email", email))
		return ""
	}
	return email
}

// emailFromContactPage follows the first same-page link whose href mentions
// "contact" and regex-scans that page's visible text.
func (e *Enricher) emailFromContactPage(ctx context.Context, doc *goquery.Document, baseURL string) string {
	href, ok := doc.Find(`a[href*="contact"]`).First().Attr("href")
	if !ok || nonWebSchemeRe.MatchString(href) {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	contactURL := base.ResolveReference(ref).String()

	contact, err := e.fetch(ctx, contactURL)
	if err != nil {
		zap.L().Debug("enrich: contact page fetch failed", zap.String("url", contactURL), zap.Error(err))
		return ""
	}
	return validate.ExtractEmail(contact.doc.Find("body").Text())
}
