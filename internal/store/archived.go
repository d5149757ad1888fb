package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
)

const archivedFileName = "archived.json"

// ArchivedRecord is one remotely-archived lead cached locally for exclusion.
// The remote record ID keeps cache refreshes idempotent.
type ArchivedRecord struct {
	ID   string     `json:"id"`
	Lead model.Lead `json:"lead"`
}

// ArchivedCache is the locally cached list of archived/excluded leads. The
// pipeline only reads it; a separate maintenance command refreshes it from
// the remote sink.
type ArchivedCache struct {
	path string
}

// NewArchivedCache creates a cache stored under dataDir.
func NewArchivedCache(dataDir string) (*ArchivedCache, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create data dir %s", dataDir)
	}
	return &ArchivedCache{path: filepath.Join(dataDir, archivedFileName)}, nil
}

// Load returns the cached archived leads, or nil when no cache exists yet.
func (c *ArchivedCache) Load() ([]model.Lead, error) {
	records, err := c.loadRecords()
	if err != nil {
		return nil, err
	}
	leads := make([]model.Lead, 0, len(records))
	for _, r := range records {
		leads = append(leads, r.Lead)
	}
	return leads, nil
}

func (c *ArchivedCache) loadRecords() ([]ArchivedRecord, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", c.path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []ArchivedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", c.path)
	}
	return records, nil
}

// Refresh merges newly fetched archived records into the cache, skipping IDs
// already present, and saves. Returns the number of records added.
func (c *ArchivedCache) Refresh(fetched []ArchivedRecord) (int, error) {
	existing, err := c.loadRecords()
	if err != nil {
		return 0, err
	}

	byID := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		byID[r.ID] = struct{}{}
	}

	added := 0
	for _, r := range fetched {
		if r.ID == "" {
			continue
		}
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = struct{}{}
		existing = append(existing, r)
		added++
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "store: marshal archived records")
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "store: write %s", c.path)
	}

	zap.L().Info("store: archived cache refreshed",
		zap.Int("added", added),
		zap.Int("total", len(existing)),
	)
	return added, nil
}
