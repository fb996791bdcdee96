// Package store is the document store client used by the portal: atomic
// document writes plus live subscriptions that re-deliver the full result set
// whenever the underlying data changes.
package store

import (
	"context"
	"time"

	"github.com/deptconnect/portal/internal/live"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldCreatedAt is stamped by the store on every document it creates.
const FieldCreatedAt = "createdAt"

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Query describes a live, ordered query over one collection.
// With LimitToLast the query returns the last Limit documents of the ordering,
// still in query order.
type Query struct {
	Collection  string
	OrderBy     string
	Direction   Direction
	Limit       int
	LimitToLast bool
}

// Document is one stored document. Data is read-only for consumers.
type Document struct {
	ID         string
	Data       bson.M
	CreateTime time.Time
}

// QueryCallback receives every snapshot of a live query, or the error that
// interrupted it.
type QueryCallback func(docs []Document, err error)

// DocumentCallback receives every snapshot of a single document. A nil doc
// with a nil error means the document does not exist.
type DocumentCallback func(doc *Document, err error)

// Client is the document store surface the portal depends on.
type Client interface {
	WriteDocument(ctx context.Context, collection string, data any) (string, error)
	SetDocument(ctx context.Context, collection, id string, data any) error
	SubscribeDocument(collection, id string, cb DocumentCallback) live.Cancel
	SubscribeQuery(q Query, cb QueryCallback) live.Cancel
}

// Decode copies the document into v using its bson tags. The document id is
// exposed under "_id".
func (d Document) Decode(v any) error {
	m := make(bson.M, len(d.Data)+1)
	for k, val := range d.Data {
		m[k] = val
	}
	m["_id"] = d.ID
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

// toM converts a struct or map into a fresh bson.M, dropping any "_id".
func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "_id")
	return m, nil
}

func createTime(m bson.M) time.Time {
	switch v := m[FieldCreatedAt].(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	}
	return ""
}
