// Package store persists harvest results as timestamped files in a results
// directory, and maintains the local archived-exclusion cache.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
)

// Store is the result persistence interface consumed by the pipeline.
type Store interface {
	// ListPrior returns prior result file paths, oldest first. The naming
	// scheme sorts chronologically and lexically at once.
	ListPrior() ([]string, error)
	// LoadLatest returns the leads from the most recent result file, or an
	// empty slice when none exists.
	LoadLatest() ([]model.Lead, error)
	// LoadPriorLeads unions the leads of every prior result file. Unreadable
	// files are skipped, not fatal.
	LoadPriorLeads() ([]model.Lead, error)
	// Write persists leads as JSON under the given file name and returns
	// the full path.
	Write(leads []model.Lead, name string) (string, error)
	// WriteCSV persists leads as CSV under the given file name and returns
	// the full path.
	WriteCSV(leads []model.Lead, name string) (string, error)
}

// FileStore implements Store over a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create results dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the results directory path.
func (s *FileStore) Dir() string { return s.dir }

// Stamp formats a timestamp for result file names: YYYY-MM-DD_HH-mm.
func Stamp(t time.Time) string {
	return t.Format("2006-01-02_15-04")
}

// ListPrior lists final JSON result files, oldest first.
func (s *FileStore) ListPrior() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrap(err, "store: read results dir")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadLatest loads the most recent result file, or nil when the directory
// holds no results yet.
func (s *FileStore) LoadLatest() ([]model.Lead, error) {
	files, err := s.ListPrior()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", latest)
	}
	var leads []model.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", latest)
	}
	return leads, nil
}

// LoadPriorLeads unions every prior result file, oldest first. A file that
// cannot be read or parsed is logged and skipped so one corrupt result does
// not erase the rest of the dedup knowledge.
func (s *FileStore) LoadPriorLeads() ([]model.Lead, error) {
	files, err := s.ListPrior()
	if err != nil {
		return nil, err
	}
	var all []model.Lead
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			zap.L().Warn("store: skipping unreadable result file", zap.String("path", f), zap.Error(err))
			continue
		}
		var leads []model.Lead
		if err := json.Unmarshal(data, &leads); err != nil {
			zap.L().Warn("store: skipping unparseable result file", zap.String("path", f), zap.Error(err))
			continue
		}
		all = append(all, leads...)
	}
	return all, nil
}

// Write persists leads as pretty-printed JSON.
func (s *FileStore) Write(leads []model.Lead, name string) (string, error) {
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "store: marshal leads")
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "store: write %s", path)
	}
	return path, nil
}

// WriteCSV persists leads as CSV.
func (s *FileStore) WriteCSV(leads []model.Lead, name string) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := writeLeadsCSV(path, leads); err != nil {
		return "", err
	}
	return path, nil
}
