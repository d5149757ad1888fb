package sink

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Nardjo/leadster/internal/db"
	"github.com/Nardjo/leadster/internal/model"
)

// The unique index is partial: leads found only through a source-provided
// Instagram handle have no URL, and two of those are never the same row.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	website_url    TEXT NOT NULL DEFAULT '',
	normalized_url TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	shop_type      TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	last_contact   DATE,
	status         TEXT NOT NULL DEFAULT 'not_contacted',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_url_type
	ON leads(normalized_url, shop_type) WHERE normalized_url <> '';
`

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	website_url    TEXT NOT NULL DEFAULT '',
	normalized_url TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	shop_type      TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	last_contact   TEXT,
	status         TEXT NOT NULL DEFAULT 'not_contacted',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_url_type
	ON leads(normalized_url, shop_type) WHERE normalized_url <> '';
`

const selectLeads = `SELECT name, website_url, city, shop_type, email, last_contact, status FROM leads`

// PostgresSink writes leads to a Postgres table through a pgx pool.
type PostgresSink struct {
	pool db.Pool
}

func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: migrate")
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Close() { s.pool.Close() }

func (s *PostgresSink) FetchExisting(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, selectLeads)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			lead        model.Lead
			lastContact *time.Time
			status      string
		)
		if err := rows.Scan(&lead.Name, &lead.WebsiteURL, &lead.City,
			&lead.ShopType, &lead.Email, &lastContact, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		lead.LastContact = lastContact
		lead.Status = model.LeadStatus(status)
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

// Insert loads all rows through the COPY bulk path. Duplicate URLs are
// skipped by the conflict clause, so re-uploading a checkpoint file is safe.
func (s *PostgresSink) Insert(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, []any{
			lead.Name, lead.WebsiteURL, model.NormalizeURL(lead.WebsiteURL),
			lead.City, lead.ShopType, lead.Email, lead.LastContact, string(lead.Status),
		})
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:    "leads",
		Columns:  []string{"name", "website_url", "normalized_url", "city", "shop_type", "email", "last_contact", "status"},
		Conflict: "(normalized_url, shop_type) WHERE normalized_url <> ''",
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert leads")
	}
	return int(n), nil
}

// SQLiteSink writes leads to a local SQLite file, for runs without a server.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) FetchExisting(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, selectLeads)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			lead        model.Lead
			lastContact sql.NullString
			status      string
		)
		if err := rows.Scan(&lead.Name, &lead.WebsiteURL, &lead.City,
			&lead.ShopType, &lead.Email, &lastContact, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if lastContact.Valid && lastContact.String != "" {
			if t, err := time.Parse("2006-01-02", lastContact.String); err == nil {
				lead.LastContact = &t
			}
		}
		lead.Status = model.LeadStatus(status)
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func (s *SQLiteSink) Insert(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (name, website_url, normalized_url, city, shop_type, email, last_contact, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized_url, shop_type) WHERE normalized_url <> '' DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	inserted := 0
	for _, lead := range leads {
		var lastContact any
		if lead.LastContact != nil {
			lastContact = lead.LastContact.Format("2006-01-02")
		}
		res, err := stmt.ExecContext(ctx,
			lead.Name, lead.WebsiteURL, model.NormalizeURL(lead.WebsiteURL),
			lead.City, lead.ShopType, lead.Email, lastContact, string(lead.Status))
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: insert lead")
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit")
	}
	return inserted, nil
}
