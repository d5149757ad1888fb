package sink

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/store"
	"github.com/Nardjo/leadster/pkg/airtable"
)

// Airtable column names. The base predates this tool and uses French labels.
const (
	fieldName        = "Nom"
	fieldWebsite     = "Site web"
	fieldCity        = "Ville"
	fieldShopType    = "Type de Commerce"
	fieldEmail       = "Email"
	fieldLastContact = "Dernier contact"
	fieldStatus      = "Statut"
)

const archivedFilter = `{Statut} = 'Archivé'`

// interBatchDelay spaces out Create calls on top of the client-side rate
// limiter, mirroring the pacing the table tolerates in practice.
const interBatchDelay = 200 * time.Millisecond

var statusToLabel = map[model.LeadStatus]string{
	model.StatusNotContacted: "Non contacté",
	model.StatusContacted:    "Contacté",
	model.StatusArchived:     "Archivé",
}

var labelToStatus = map[string]model.LeadStatus{
	"Non contacté": model.StatusNotContacted,
	"Contacté":     model.StatusContacted,
	"Archivé":      model.StatusArchived,
}

// AirtableSink uploads leads to an Airtable table and reads the table back
// for dedup and archived-lead refresh.
type AirtableSink struct {
	client airtable.Client
	log    *zap.Logger
}

func NewAirtableSink(client airtable.Client) *AirtableSink {
	return &AirtableSink{client: client, log: zap.L().Named("airtable")}
}

func (s *AirtableSink) Name() string { return "airtable" }

// FetchExisting lists the whole table. Records missing every identifying
// field are skipped rather than surfaced as empty leads.
func (s *AirtableSink) FetchExisting(ctx context.Context) ([]model.Lead, error) {
	records, err := s.client.List(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "airtable: list records")
	}
	leads := make([]model.Lead, 0, len(records))
	for _, rec := range records {
		lead := leadFromFields(rec.Fields)
		if lead.Name == "" && lead.WebsiteURL == "" {
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// FetchArchived returns the archived subset with record IDs, for the local
// archive cache refresh.
func (s *AirtableSink) FetchArchived(ctx context.Context) ([]store.ArchivedRecord, error) {
	records, err := s.client.List(ctx, archivedFilter)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: list archived records")
	}
	out := make([]store.ArchivedRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, store.ArchivedRecord{ID: rec.ID, Lead: leadFromFields(rec.Fields)})
	}
	return out, nil
}

// Insert uploads leads in batches of airtable.MaxBatchSize. A batch that
// fails with a retryable error gets one more attempt after a pause; a batch
// that fails permanently is logged and skipped so the rest still uploads.
func (s *AirtableSink) Insert(ctx context.Context, leads []model.Lead) (int, error) {
	inserted := 0
	for start := 0; start < len(leads); start += airtable.MaxBatchSize {
		end := min(start+airtable.MaxBatchSize, len(leads))
		batch := make([]airtable.Record, 0, end-start)
		for _, lead := range leads[start:end] {
			batch = append(batch, airtable.Record{Fields: fieldsFromLead(lead)})
		}

		err := s.createBatch(ctx, batch)
		if err != nil {
			kind, _ := Classify(err)
			if kind == ErrAuth || kind == ErrNotFound {
				return inserted, eris.Wrapf(err, "airtable: upload batch at offset %d", start)
			}
			s.log.Warn("batch upload failed, skipping",
				zap.Int("offset", start),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		inserted += len(batch)

		if end < len(leads) {
			select {
			case <-ctx.Done():
				return inserted, ctx.Err()
			case <-time.After(interBatchDelay):
			}
		}
	}
	return inserted, nil
}

func (s *AirtableSink) createBatch(ctx context.Context, batch []airtable.Record) error {
	_, err := s.client.Create(ctx, batch)
	if err == nil {
		return nil
	}
	if _, retryable := Classify(err); !retryable {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}
	_, err = s.client.Create(ctx, batch)
	return err
}

func fieldsFromLead(l model.Lead) map[string]any {
	fields := map[string]any{
		fieldName:     l.Name,
		fieldCity:     l.City,
		fieldShopType: l.ShopType,
		fieldStatus:   statusToLabel[l.Status],
	}
	if l.WebsiteURL != "" {
		fields[fieldWebsite] = l.WebsiteURL
	}
	if l.Email != "" {
		fields[fieldEmail] = l.Email
	}
	if l.LastContact != nil {
		fields[fieldLastContact] = l.LastContact.Format("2006-01-02")
	}
	return fields
}

func leadFromFields(fields map[string]any) model.Lead {
	lead := model.Lead{
		Name:       stringField(fields, fieldName),
		WebsiteURL: stringField(fields, fieldWebsite),
		City:       stringField(fields, fieldCity),
		ShopType:   stringField(fields, fieldShopType),
		Email:      stringField(fields, fieldEmail),
		Status:     model.StatusNotContacted,
	}
	if status, ok := labelToStatus[stringField(fields, fieldStatus)]; ok {
		lead.Status = status
	}
	if raw := stringField(fields, fieldLastContact); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			lead.LastContact = &t
		}
	}
	return lead
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
