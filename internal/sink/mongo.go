package sink

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/model"
)

// leadDocument is the MongoDB shape of a lead. NormalizedURL is stored
// alongside the raw URL so the unique index works without per-query
// normalization.
type leadDocument struct {
	Name          string     `bson:"name"`
	WebsiteURL    string     `bson:"website_url,omitempty"`
	NormalizedURL string     `bson:"normalized_url,omitempty"`
	City          string     `bson:"city"`
	ShopType      string     `bson:"shop_type"`
	Email         string     `bson:"email,omitempty"`
	LastContact   *time.Time `bson:"last_contact,omitempty"`
	Status        string     `bson:"status"`
	CreatedAt     time.Time  `bson:"created_at"`
}

// MongoSink writes leads to a MongoDB collection.
type MongoSink struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// NewMongoSink connects, pings, and ensures the dedup index. URL-less leads
// are excluded from the index by the partial filter so they never collide.
func NewMongoSink(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, eris.Wrap(err, "mongo: ping")
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "normalized_url", Value: 1}, {Key: "shop_type", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "normalized_url", Value: bson.D{{Key: "$gt", Value: ""}}}}),
	})
	if err != nil {
		return nil, eris.Wrap(err, "mongo: create dedup index")
	}

	return &MongoSink{coll: coll, log: zap.L().Named("mongo")}, nil
}

func (s *MongoSink) Name() string { return "mongo" }

func (s *MongoSink) FetchExisting(ctx context.Context) ([]model.Lead, error) {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, eris.Wrap(err, "mongo: list leads")
	}
	defer cursor.Close(ctx)

	var leads []model.Lead
	for cursor.Next(ctx) {
		var doc leadDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, eris.Wrap(err, "mongo: decode lead")
		}
		leads = append(leads, doc.toLead())
	}
	return leads, cursor.Err()
}

// Insert writes leads unordered so index collisions skip the duplicate
// instead of aborting the whole batch.
func (s *MongoSink) Insert(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	docs := make([]any, 0, len(leads))
	now := time.Now().UTC()
	for _, lead := range leads {
		docs = append(docs, documentFromLead(lead, now))
	}

	res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if bulkErr, ok := err.(mongo.BulkWriteException); ok {
			inserted := len(docs) - len(bulkErr.WriteErrors)
			s.log.Debug("duplicates skipped",
				zap.Int("inserted", inserted),
				zap.Int("skipped", len(bulkErr.WriteErrors)))
			return inserted, nil
		}
		return 0, eris.Wrap(err, "mongo: insert leads")
	}
	return len(res.InsertedIDs), nil
}

func documentFromLead(l model.Lead, now time.Time) leadDocument {
	return leadDocument{
		Name:          l.Name,
		WebsiteURL:    l.WebsiteURL,
		NormalizedURL: model.NormalizeURL(l.WebsiteURL),
		City:          l.City,
		ShopType:      l.ShopType,
		Email:         l.Email,
		LastContact:   l.LastContact,
		Status:        string(l.Status),
		CreatedAt:     now,
	}
}

func (d leadDocument) toLead() model.Lead {
	return model.Lead{
		Name:        d.Name,
		WebsiteURL:  d.WebsiteURL,
		City:        d.City,
		ShopType:    d.ShopType,
		Email:       d.Email,
		LastContact: d.LastContact,
		Status:      model.LeadStatus(d.Status),
	}
}
