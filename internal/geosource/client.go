// Package geosource queries the Overpass geodata API for shops matching a
// configured area and type taxonomy, and normalizes the raw tag soup into
// flat Candidate records.
package geosource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/resilience"
)

// element is one raw Overpass result with its free-form tag map.
type element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []element `json:"elements"`
}

// EmailValidator tightens source-provided email tags before they are trusted.
type EmailValidator func(string) bool

// HandleExtractor turns a URL-shaped instagram tag into a bare handle.
type HandleExtractor func(string) string

// Client issues compound queries against an ordered chain of Overpass
// endpoints and filters the results.
type Client struct {
	endpoints      []string
	excludedBrands []string
	httpClient     *http.Client
	retry          resilience.RetryConfig
	validEmail     EmailValidator
	extractHandle  HandleExtractor
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry policy applied per endpoint.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a geodata client. validEmail and extractHandle are the
// validators from internal/validate, injected to keep this package free of a
// dependency edge on them in tests.
func NewClient(endpoints, excludedBrands []string, timeout time.Duration, validEmail EmailValidator, extractHandle HandleExtractor, opts ...Option) *Client {
	c := &Client{
		endpoints:      endpoints,
		excludedBrands: excludedBrands,
		httpClient:     &http.Client{Timeout: timeout},
		retry:          resilience.DefaultRetryConfig(),
		validEmail:     validEmail,
		extractHandle:  extractHandle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCandidates runs one compound query covering all areas and types, and
// returns the filtered, normalized candidates. Endpoint failures fall through
// the configured chain; when every endpoint fails the error is logged and an
// empty slice is returned so the caller can treat it as "no shops".
func (c *Client) FetchCandidates(ctx context.Context, areas []string, types []model.ShopType) []model.Candidate {
	query := BuildQuery(areas, types)

	var elements []element
	var lastErr error
	for _, endpoint := range c.endpoints {
		els, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]element, error) {
			return c.post(ctx, endpoint, query)
		})
		if err != nil {
			lastErr = err
			zap.L().Warn("geosource: endpoint failed, trying next",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			continue
		}
		elements = els
		lastErr = nil
		break
	}
	if lastErr != nil {
		zap.L().Error("geosource: all endpoints failed", zap.Error(lastErr))
		return nil
	}

	candidates := make([]model.Candidate, 0, len(elements))
	for _, el := range elements {
		cand, ok := c.toCandidate(el, types)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}

	zap.L().Info("geosource: fetched candidates",
		zap.Int("elements", len(elements)),
		zap.Int("candidates", len(candidates)),
		zap.Strings("areas", areas),
	)
	return candidates
}

func (c *Client) post(ctx context.Context, endpoint, query string) ([]element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return nil, eris.Wrap(err, "geosource: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geosource: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geosource: status %d from %s", resp.StatusCode, endpoint)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geosource: read body")
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geosource: parse response")
	}
	return parsed.Elements, nil
}

// toCandidate normalizes one raw element. It drops tagless elements,
// excluded-brand chains, and elements whose tags match no configured type.
func (c *Client) toCandidate(el element, types []model.ShopType) (model.Candidate, bool) {
	if len(el.Tags) == 0 {
		return model.Candidate{}, false
	}
	if c.isExcludedBrand(el.Tags) {
		return model.Candidate{}, false
	}

	label := matchShopType(el.Tags, types)
	if label == "" {
		return model.Candidate{}, false
	}

	website := el.Tags["website"]
	if website == "" {
		website = el.Tags["contact:website"]
	}
	if website == "" {
		website = el.Tags["url"]
	}
	website = normalizeWebsite(website)

	handle := el.Tags["contact:instagram"]
	if handle == "" {
		handle = el.Tags["social:instagram"]
	}
	// Tag values are sometimes full profile URLs rather than bare handles.
	if strings.HasPrefix(handle, "http") {
		if extracted := c.extractHandle(handle); extracted != "" {
			handle = extracted
		}
	}

	email := el.Tags["email"]
	if email == "" {
		email = el.Tags["contact:email"]
	}
	if !c.validEmail(email) {
		email = ""
	}

	return model.Candidate{
		Name:            el.Tags["name"],
		City:            el.Tags["addr:city"],
		Postcode:        el.Tags["addr:postcode"],
		ShopType:        label,
		Website:         website,
		InstagramHandle: handle,
		Email:           email,
	}, true
}

// isExcludedBrand suppresses chain stores by substring match over the
// element's name, brand, and operator tags.
func (c *Client) isExcludedBrand(tags map[string]string) bool {
	for _, field := range []string{"name", "brand", "operator"} {
		val := strings.ToLower(tags[field])
		if val == "" {
			continue
		}
		for _, brand := range c.excludedBrands {
			if strings.Contains(val, strings.ToLower(brand)) {
				return true
			}
		}
	}
	return false
}

// matchShopType returns the label of the first configured type whose tag
// key/value pair appears in the element's tags, or "".
func matchShopType(tags map[string]string, types []model.ShopType) string {
	for _, st := range types {
		k, v := st.Key()
		if v != "" && tags[k] == v {
			return st.Label
		}
	}
	return ""
}

// normalizeWebsite prefixes https:// when the scheme is missing.
func normalizeWebsite(website string) string {
	if website == "" {
		return ""
	}
	if !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
		return "https://" + website
	}
	return website
}
