package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nardjo/leadster/internal/model"
)

func newTestPostgres(t *testing.T) (pgxmock.PgxPoolIface, *PostgresSink) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, &PostgresSink{pool: mock}
}

var leadColumns = []string{"name", "website_url", "normalized_url", "city", "shop_type", "email", "last_contact", "status"}

func TestPostgresSinkInsert(t *testing.T) {
	mock, s := newTestPostgres(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_leads"}, leadColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.Insert(context.Background(), []model.Lead{
		{Name: "shop", WebsiteURL: "https://shop.fr", City: "Lyon",
			ShopType: "Vêtements", Status: model.StatusNotContacted},
		{Name: "shop_dup", WebsiteURL: "http://SHOP.fr/", City: "Lyon",
			ShopType: "Vêtements", Status: model.StatusNotContacted},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "COPY loads both rows, conflict clause drops the duplicate URL")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkInsertEmpty(t *testing.T) {
	_, s := newTestPostgres(t)
	n, err := s.Insert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresSinkInsertBeginError(t *testing.T) {
	mock, s := newTestPostgres(t)
	mock.ExpectBegin().WillReturnError(assert.AnError)

	_, err := s.Insert(context.Background(), []model.Lead{
		{Name: "shop", ShopType: "Bijoux", Status: model.StatusNotContacted},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkFetchExisting(t *testing.T) {
	mock, s := newTestPostgres(t)
	contact := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"name", "website_url", "city", "shop_type", "email", "last_contact", "status"}).
		AddRow("boutique_lyon", "https://boutique.fr", "Lyon", "Vêtements", "hello@boutique.fr", &contact, "contacted").
		AddRow("insta_only", "", "Paris", "Bijoux", "", (*time.Time)(nil), "not_contacted")
	mock.ExpectQuery("SELECT name, website_url").WillReturnRows(rows)

	leads, err := s.FetchExisting(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "boutique_lyon", leads[0].Name)
	assert.Equal(t, model.StatusContacted, leads[0].Status)
	require.NotNil(t, leads[0].LastContact)
	assert.Equal(t, contact, *leads[0].LastContact)

	assert.Nil(t, leads[1].LastContact)
	assert.Equal(t, model.StatusNotContacted, leads[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newTestSQLite(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := NewSQLiteSink(context.Background(), filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	contact := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	n, err := s.Insert(ctx, []model.Lead{
		{Name: "boutique_lyon", WebsiteURL: "https://Boutique.fr/", City: "Lyon",
			ShopType: "Vêtements", Email: "hello@boutique.fr",
			LastContact: &contact, Status: model.StatusContacted},
		{Name: "insta_only", City: "Paris", ShopType: "Bijoux", Status: model.StatusNotContacted},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	leads, err := s.FetchExisting(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "boutique_lyon", leads[0].Name)
	assert.Equal(t, "https://Boutique.fr/", leads[0].WebsiteURL)
	assert.Equal(t, model.StatusContacted, leads[0].Status)
	require.NotNil(t, leads[0].LastContact)
	assert.Equal(t, contact, *leads[0].LastContact)

	assert.Nil(t, leads[1].LastContact)
	assert.Equal(t, model.StatusNotContacted, leads[1].Status)
}

func TestSQLiteSinkIgnoresDuplicateURL(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lead := model.Lead{Name: "shop", WebsiteURL: "https://shop.fr", ShopType: "Vêtements",
		Status: model.StatusNotContacted}
	n, err := s.Insert(ctx, []model.Lead{lead})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same URL modulo scheme and trailing slash, same type: skipped.
	lead.WebsiteURL = "http://SHOP.fr/"
	n, err = s.Insert(ctx, []model.Lead{lead})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Same URL but a different shop type is a distinct lead.
	lead.ShopType = "Chaussures"
	n, err = s.Insert(ctx, []model.Lead{lead})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSinkAllowsManyURLLessLeads(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.Insert(ctx, []model.Lead{
		{Name: "first_handle", ShopType: "Bijoux", Status: model.StatusNotContacted},
		{Name: "second_handle", ShopType: "Bijoux", Status: model.StatusNotContacted},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "URL-less leads are outside the unique index")
}

func TestSQLiteSinkInsertEmpty(t *testing.T) {
	s := newTestSQLite(t)
	n, err := s.Insert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
