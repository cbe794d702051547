package datastore

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "data_objects"

type mongoDoc struct {
	DocID           string `bson:"_id"`
	Table           string `bson:"table,omitempty"`
	EntityID        string `bson:"entityId,omitempty"`
	Key             string `bson:"key"`
	OwnerPermission string `bson:"ownerPermission"`
	Value           string `bson:"value"`
	LastUpdated     int64  `bson:"lastUpdated"`
	RemovalTime     *int64 `bson:"removalTime,omitempty"`
}

// MongoBackend keeps every object in one collection keyed by the rendered
// object id, which keeps prefix listing a single indexed range query.
type MongoBackend struct {
	coll *mongo.Collection
}

func NewMongoBackend(db *mongo.Database) *MongoBackend {
	return &MongoBackend{coll: db.Collection(mongoCollection)}
}

func toDoc(obj *DataObject) mongoDoc {
	doc := mongoDoc{
		DocID:           obj.ID.String(),
		Key:             obj.ID.Key,
		OwnerPermission: obj.OwnerPermission.String(),
		Value:           obj.Value,
		LastUpdated:     obj.LastUpdated,
		RemovalTime:     obj.RemovalTime,
	}
	if obj.ID.Relational != nil {
		doc.Table = obj.ID.Relational.Table
		doc.EntityID = obj.ID.Relational.EntityID
	}
	return doc
}

func fromDoc(doc mongoDoc) *DataObject {
	id := ObjectID{Key: doc.Key}
	if doc.Table != "" {
		id.Relational = &RelationalID{Table: doc.Table, EntityID: doc.EntityID}
	}
	return &DataObject{
		ID:              id,
		OwnerPermission: KeyFromString(doc.OwnerPermission),
		Value:           doc.Value,
		LastUpdated:     doc.LastUpdated,
		RemovalTime:     doc.RemovalTime,
	}
}

func (m *MongoBackend) Load(ctx context.Context, id ObjectID) (*DataObject, bool, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return fromDoc(doc), true, nil
}

func (m *MongoBackend) Save(ctx context.Context, obj *DataObject) error {
	doc := toDoc(obj)
	opts := options.Replace().SetUpsert(true)
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": doc.DocID}, doc, opts)
	return err
}

func (m *MongoBackend) Delete(ctx context.Context, id ObjectID) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	return err
}

func (m *MongoBackend) ListIDs(ctx context.Context, relational *RelationalID, prefix string) ([]ObjectID, error) {
	filter := bson.M{"key": bson.M{"$regex": "^" + regexEscape(prefix)}}
	if relational != nil {
		filter["table"] = relational.Table
		filter["entityId"] = relational.EntityID
	} else {
		filter["table"] = bson.M{"$exists": false}
	}
	cursor, err := m.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []ObjectID
	for cursor.Next(ctx) {
		var doc mongoDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, fromDoc(doc).ID)
	}
	return ids, cursor.Err()
}

func (m *MongoBackend) Close() error {
	return nil
}

func regexEscape(s string) string {
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, c) {
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
