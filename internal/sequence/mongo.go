package sequence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection holding one counter document per type.
const MongoCollection = "document_sequences"

type counterDoc struct {
	DocumentType string    `bson:"_id"`
	LastNumber   int64     `bson:"last_number"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Mongo issues numbers with an upserting FindOneAndUpdate $inc. Like Redis it
// is atomic but outside the SQL transaction.
type Mongo struct {
	coll *mongo.Collection
}

// NewMongo returns a Mongo sequencer using db.document_sequences.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(MongoCollection)}
}

// Next implements Sequencer.
func (m *Mongo) Next(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{
		"$inc": bson.M{"last_number": int64(1)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	var doc counterDoc
	err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": string(t)}, update, opts).Decode(&doc)
	// Two first-time upserts can race on _id; the loser retries as an update.
	if mongo.IsDuplicateKeyError(err) {
		err = m.coll.FindOneAndUpdate(ctx, bson.M{"_id": string(t)}, update, opts).Decode(&doc)
	}
	if err != nil {
		return 0, unavailable(t, err)
	}
	return doc.LastNumber, nil
}

// Peek implements Sequencer.
func (m *Mongo) Peek(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	var doc counterDoc
	if err := m.coll.FindOne(ctx, bson.M{"_id": string(t)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, unavailable(t, err)
	}
	return doc.LastNumber, nil
}
