package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkInsertIgnore_EmptyRows(t *testing.T) {
	n, err := BulkInsertIgnore(context.Background(), nil, InsertConfig{
		Table:    "leads",
		Columns:  []string{"name", "normalized_url"},
		Conflict: "(normalized_url, shop_type)",
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkInsertIgnore_NoColumns(t *testing.T) {
	_, err := BulkInsertIgnore(context.Background(), nil, InsertConfig{
		Table:    "leads",
		Conflict: "(normalized_url, shop_type)",
	}, [][]any{{"a", "a.fr"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkInsertIgnore_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"name", "normalized_url", "shop_type"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_leads"}, cols).WillReturnResult(3)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"a", "a.fr", "clothes"},
		{"b", "b.fr", "clothes"},
		{"c", "a.fr", "clothes"},
	}
	n, err := BulkInsertIgnore(context.Background(), mock, InsertConfig{
		Table:    "leads",
		Columns:  cols,
		Conflict: "(normalized_url, shop_type) WHERE normalized_url <> ''",
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n, "COPY loads all rows, conflict clause drops the duplicate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertIgnore_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"name", "normalized_url"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_leads"}, cols).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkInsertIgnore(context.Background(), mock, InsertConfig{
		Table:    "leads",
		Columns:  cols,
		Conflict: "(normalized_url, shop_type)",
	}, [][]any{{"a", "a.fr"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"name", "website_url", "city"})
	assert.Equal(t, `"name", "website_url", "city"`, result)
}
