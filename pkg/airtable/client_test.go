package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServerClient(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("key-test", "appBase", "Shops",
		WithBaseURL(srv.URL),
		WithRateLimit(0),
	)
	return c, srv
}

func TestListFollowsPagination(t *testing.T) {
	calls := 0
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer key-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/appBase/Shops", r.URL.Path)

		switch r.URL.Query().Get("offset") {
		case "":
			_ = json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "rec1", Fields: map[string]any{"Nom": "shopx"}}},
				Offset:  "next",
			})
		case "next":
			_ = json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "rec2", Fields: map[string]any{"Nom": "shopy"}}},
			})
		}
	})

	records, err := c.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "shopx", records[0].Fields["Nom"])
}

func TestListFilterFormula(t *testing.T) {
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "{Statut} = 'Archivé'", r.URL.Query().Get("filterByFormula"))
		_ = json.NewEncoder(w).Encode(listResponse{})
	})

	_, err := c.List(context.Background(), "{Statut} = 'Archivé'")
	require.NoError(t, err)
}

func TestCreate(t *testing.T) {
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Records, 2)
		for i := range req.Records {
			req.Records[i].ID = "rec-created"
		}
		_ = json.NewEncoder(w).Encode(req)
	})

	created, err := c.Create(context.Background(), []Record{
		{Fields: map[string]any{"Nom": "a"}},
		{Fields: map[string]any{"Nom": "b"}},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestCreateEmptyIsNoop(t *testing.T) {
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	created, err := c.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestCreateRejectsOversizedBatch(t *testing.T) {
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	records := make([]Record, MaxBatchSize+1)
	for i := range records {
		records[i].Fields = map[string]any{}
	}
	_, err := c.Create(context.Background(), records)
	assert.Error(t, err)
}

func TestAPIErrorMapping(t *testing.T) {
	c, _ := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"AUTHENTICATION_REQUIRED","message":"bad key"}}`))
	})

	_, err := c.List(context.Background(), "")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", apiErr.Type)
}
