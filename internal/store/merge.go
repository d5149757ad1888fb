package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// MergeResult reports what MergeByDate produced.
type MergeResult struct {
	WithContact    string // path to merged with-contact file, "" when no input
	WithoutContact string
	Merged         int // total unique leads across both files
}

// MergeByDate consolidates every CSV from the given date (YYYY-MM-DD), chunk
// checkpoints and partials included, into one with-contact and one
// without-contact file. The union dedups by lowercase (name|website) key;
// records missing both name and website are kept as-is.
func (s *FileStore) MergeByDate(date string) (*MergeResult, error) {
	if !dateRe.MatchString(date) {
		return nil, eris.Errorf("store: invalid date %q, want YYYY-MM-DD", date)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrap(err, "store: read results dir")
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") || !strings.Contains(name, date) {
			continue
		}
		// Skip output of a previous merge so reruns stay idempotent.
		if strings.Contains(name, "_merged_") {
			continue
		}
		files = append(files, filepath.Join(s.dir, name))
	}

	if len(files) == 0 {
		zap.L().Info("store: no files to merge", zap.String("date", date))
		return &MergeResult{}, nil
	}

	all, err := s.union(files)
	if err != nil {
		return nil, err
	}

	var withLeads, withoutLeads []model.Lead
	for _, l := range all {
		if l.HasContact() {
			withLeads = append(withLeads, l)
		} else {
			withoutLeads = append(withoutLeads, l)
		}
	}

	res := &MergeResult{Merged: len(all)}
	if res.WithContact, err = s.WriteCSV(withLeads, date+"_merged_with_contact.csv"); err != nil {
		return nil, err
	}
	if res.WithoutContact, err = s.WriteCSV(withoutLeads, date+"_merged_without_contact.csv"); err != nil {
		return nil, err
	}

	zap.L().Info("store: merged result files",
		zap.String("date", date),
		zap.Int("with_contact", len(withLeads)),
		zap.Int("without_contact", len(withoutLeads)),
	)
	return res, nil
}

// union loads every file and set-unions the records by (name|website) key.
func (s *FileStore) union(paths []string) ([]model.Lead, error) {
	seen := make(map[string]struct{})
	var merged []model.Lead
	for _, p := range paths {
		leads, err := readLeadsCSV(p)
		if err != nil {
			zap.L().Warn("store: skipping unreadable file", zap.String("path", p), zap.Error(err))
			continue
		}
		for _, l := range leads {
			if l.Name == "" && l.WebsiteURL == "" {
				merged = append(merged, l)
				continue
			}
			key := strings.ToLower(l.Name + "|" + l.WebsiteURL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, l)
		}
	}
	return merged, nil
}
