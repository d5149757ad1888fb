package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/resilience"
	"github.com/Nardjo/leadster/pkg/airtable"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"unauthorized", &airtable.APIError{StatusCode: 401}, ErrAuth, false},
		{"forbidden", &airtable.APIError{StatusCode: 403}, ErrAuth, false},
		{"not found", &airtable.APIError{StatusCode: 404}, ErrNotFound, false},
		{"payload too large", &airtable.APIError{StatusCode: 413}, ErrTooLarge, false},
		{"rate limited", &airtable.APIError{StatusCode: 429}, ErrRateLimited, true},
		{"server error", &airtable.APIError{StatusCode: 502}, ErrServer, true},
		{"validation", &airtable.APIError{StatusCode: 422}, ErrUnknown, false},
		{"transient network", resilience.NewTransientError(errors.New("connection reset"), 0), ErrServer, true},
		{"plain error", errors.New("boom"), ErrUnknown, false},
		{"nil", nil, ErrUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, retryable := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

// fakeAirtable records Create calls and replays scripted errors.
type fakeAirtable struct {
	records    []airtable.Record
	listErr    error
	batches    [][]airtable.Record
	createErrs []error
}

var _ airtable.Client = (*fakeAirtable)(nil)

func (f *fakeAirtable) List(_ context.Context, _ string) ([]airtable.Record, error) {
	return f.records, f.listErr
}

func (f *fakeAirtable) Create(_ context.Context, records []airtable.Record) ([]airtable.Record, error) {
	f.batches = append(f.batches, records)
	if len(f.createErrs) == 0 {
		return records, nil
	}
	err := f.createErrs[0]
	f.createErrs = f.createErrs[1:]
	if err != nil {
		return nil, err
	}
	return records, nil
}

func someLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			Name:     "handle",
			City:     "Lyon",
			ShopType: "Vêtements",
			Status:   model.StatusNotContacted,
		}
	}
	return leads
}

func TestAirtableSinkInsertBatches(t *testing.T) {
	fake := &fakeAirtable{}
	s := NewAirtableSink(fake)

	n, err := s.Insert(context.Background(), someLeads(23))
	require.NoError(t, err)
	assert.Equal(t, 23, n)
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 10)
	assert.Len(t, fake.batches[2], 3)
}

func TestAirtableSinkInsertRetriesRateLimit(t *testing.T) {
	fake := &fakeAirtable{
		createErrs: []error{&airtable.APIError{StatusCode: 429}},
	}
	s := NewAirtableSink(fake)

	n, err := s.Insert(context.Background(), someLeads(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, fake.batches, 2)
}

func TestAirtableSinkInsertAbortsOnAuth(t *testing.T) {
	fake := &fakeAirtable{
		createErrs: []error{&airtable.APIError{StatusCode: 401}},
	}
	s := NewAirtableSink(fake)

	n, err := s.Insert(context.Background(), someLeads(15))
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, fake.batches, 1)
}

func TestAirtableSinkInsertSkipsFailedBatch(t *testing.T) {
	// A validation error is not retryable and not fatal; later batches
	// still upload.
	fake := &fakeAirtable{
		createErrs: []error{&airtable.APIError{StatusCode: 422}},
	}
	s := NewAirtableSink(fake)

	n, err := s.Insert(context.Background(), someLeads(15))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, fake.batches, 2)
}

func TestAirtableSinkFetchExisting(t *testing.T) {
	fake := &fakeAirtable{
		records: []airtable.Record{
			{ID: "rec1", Fields: map[string]any{
				"Nom":              "boutique_lyon",
				"Site web":         "https://boutique.fr",
				"Ville":            "Lyon",
				"Type de Commerce": "Vêtements",
				"Statut":           "Contacté",
				"Dernier contact":  "2026-07-14",
			}},
			{ID: "rec2", Fields: map[string]any{"Ville": "Paris"}},
		},
	}
	s := NewAirtableSink(fake)

	leads, err := s.FetchExisting(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1, "record without name or website is skipped")

	lead := leads[0]
	assert.Equal(t, "boutique_lyon", lead.Name)
	assert.Equal(t, "https://boutique.fr", lead.WebsiteURL)
	assert.Equal(t, model.StatusContacted, lead.Status)
	require.NotNil(t, lead.LastContact)
	assert.Equal(t, time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC), *lead.LastContact)
}

func TestAirtableSinkFetchArchived(t *testing.T) {
	fake := &fakeAirtable{
		records: []airtable.Record{
			{ID: "recA", Fields: map[string]any{"Nom": "archived_shop", "Statut": "Archivé"}},
		},
	}
	s := NewAirtableSink(fake)

	recs, err := s.FetchArchived(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "recA", recs[0].ID)
	assert.Equal(t, model.StatusArchived, recs[0].Lead.Status)
}

func TestFieldsFromLeadOmitsEmpty(t *testing.T) {
	fields := fieldsFromLead(model.Lead{
		Name:     "shop",
		City:     "Nice",
		ShopType: "Chaussures",
		Status:   model.StatusNotContacted,
	})
	assert.Equal(t, "Non contacté", fields["Statut"])
	assert.NotContains(t, fields, "Site web")
	assert.NotContains(t, fields, "Email")
	assert.NotContains(t, fields, "Dernier contact")
}
