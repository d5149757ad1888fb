// Package airtable provides a minimal client for the Airtable REST API:
// listing table records with pagination and creating records in batches.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// MaxBatchSize is Airtable's per-request record creation limit.
const MaxBatchSize = 10

// Record is one Airtable row. Fields is the raw column map; callers own the
// column-name translation.
type Record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// Client defines the Airtable operations used by this application.
type Client interface {
	// List returns every record in the table, following pagination offsets.
	// filterFormula is an optional Airtable formula (e.g. `{Statut} = 'Archivé'`).
	List(ctx context.Context, filterFormula string) ([]Record, error)
	// Create inserts up to MaxBatchSize records and returns the created rows.
	Create(ctx context.Context, records []Record) ([]Record, error)
}

// APIError is an Airtable error response with its HTTP status.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// Option configures the Airtable client.
type Option func(*httpClient)

// WithBaseURL sets a custom endpoint URL (for testing or proxies).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default Airtable rate limit (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseID  string
	table   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Airtable client bound to one base and table. By
// default API calls are throttled to 5 req/s (Airtable's rate limit).
func NewClient(apiKey, baseID, table string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseID:  baseID,
		table:   table,
		baseURL: "https://api.airtable.com/v0",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table))
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

func (c *httpClient) List(ctx context.Context, filterFormula string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "airtable: rate limit")
		}

		q := url.Values{}
		if filterFormula != "" {
			q.Set("filterByFormula", filterFormula)
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		reqURL := c.tableURL()
		if len(q) > 0 {
			reqURL += "?" + q.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "airtable: build list request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var page listResponse
		if err := c.do(req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)

		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

type createRequest struct {
	Records []Record `json:"records"`
}

func (c *httpClient) Create(ctx context.Context, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > MaxBatchSize {
		return nil, eris.Errorf("airtable: batch of %d exceeds limit of %d", len(records), MaxBatchSize)
	}

	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "airtable: rate limit")
	}

	payload, err := json.Marshal(createRequest{Records: records})
	if err != nil {
		return nil, eris.Wrap(err, "airtable: marshal records")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "airtable: build create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var created createRequest
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return created.Records, nil
}

// do executes the request, mapping non-2xx responses to *APIError.
func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "airtable: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "airtable: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Type = parsed.Error.Type
			apiErr.Message = parsed.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "airtable: parse response")
	}
	return nil
}
