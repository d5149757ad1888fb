package store

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Nardjo/leadster/internal/model"
)

var csvHeader = []string{"name", "website_url", "city", "shop_type", "email", "last_contact", "status"}

func writeLeadsCSV(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "store: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return eris.Wrap(err, "store: write csv header")
	}
	for _, l := range leads {
		lastContact := ""
		if l.LastContact != nil {
			lastContact = l.LastContact.Format(time.RFC3339)
		}
		row := []string{l.Name, l.WebsiteURL, l.City, l.ShopType, l.Email, lastContact, string(l.Status)}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "store: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "store: flush csv")
	}
	return nil
}

func readLeadsCSV(path string) ([]model.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	if len(records) < 2 {
		return nil, nil
	}

	// Map header positions so column reordering in old files stays readable.
	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[h] = i
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	leads := make([]model.Lead, 0, len(records)-1)
	for _, row := range records[1:] {
		l := model.Lead{
			Name:       field(row, "name"),
			WebsiteURL: field(row, "website_url"),
			City:       field(row, "city"),
			ShopType:   field(row, "shop_type"),
			Email:      field(row, "email"),
			Status:     model.LeadStatus(field(row, "status")),
		}
		if raw := field(row, "last_contact"); raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				l.LastContact = &ts
			}
		}
		leads = append(leads, l)
	}
	return leads, nil
}
