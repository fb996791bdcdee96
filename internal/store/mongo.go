package store

import (
	"context"
	"errors"

	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Client on a MongoDB database. Live subscriptions use
// change streams, so the server must run as a replica set. Each change event
// re-runs the query and delivers the complete result.
type MongoStore struct {
	db  *mongo.Database
	log zerolog.Logger
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, log: logger.With("store")}
}

func (s *MongoStore) col(path string) *mongo.Collection {
	return s.db.Collection(mongoName(path))
}

// literalStage builds a pipeline $set stage that writes every field verbatim.
// createdAt is resolved on the server from $$NOW.
func literalStage(doc bson.M, keepCreated bool) bson.M {
	set := make(bson.M, len(doc)+1)
	for k, v := range doc {
		set[k] = bson.M{"$literal": v}
	}
	if keepCreated {
		set[FieldCreatedAt] = bson.M{"$ifNull": bson.A{"$" + FieldCreatedAt, "$$NOW"}}
	} else {
		set[FieldCreatedAt] = "$$NOW"
	}
	return bson.M{"$set": set}
}

func (s *MongoStore) WriteDocument(ctx context.Context, collection string, data any) (string, error) {
	doc, err := toM(data)
	if err != nil {
		return "", errs.Store(errs.CodeInvalidArgument, "document could not be encoded", err)
	}
	delete(doc, FieldCreatedAt)
	id := primitive.NewObjectID().Hex()
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: literalStage(doc, false)["$set"]}}}
	_, err = s.col(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		metrics.Writes.WithLabelValues(collection, "error").Inc()
		return "", classify(err)
	}
	metrics.Writes.WithLabelValues(collection, "ok").Inc()
	return id, nil
}

func (s *MongoStore) SetDocument(ctx context.Context, collection, id string, data any) error {
	if id == "" {
		return errs.Store(errs.CodeInvalidArgument, "document id is required", nil)
	}
	doc, err := toM(data)
	if err != nil {
		return errs.Store(errs.CodeInvalidArgument, "document could not be encoded", err)
	}
	delete(doc, FieldCreatedAt)
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: literalStage(doc, true)["$set"]}}}
	_, err = s.col(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		metrics.Writes.WithLabelValues(collection, "error").Inc()
		return classify(err)
	}
	metrics.Writes.WithLabelValues(collection, "ok").Inc()
	return nil
}

func (s *MongoStore) SubscribeQuery(q Query, cb QueryCallback) live.Cancel {
	ctx, cancel := context.WithCancel(context.Background())
	box := live.NewMailbox()
	deliver := func(docs []Document, err error) { box.Post(func() { cb(docs, err) }) }
	metrics.SubscriptionsOpen.WithLabelValues("query").Inc()

	go func() {
		col := s.col(q.Collection)
		// open the stream first so no change between the initial read and the
		// watch is lost
		cs, err := col.Watch(ctx, mongo.Pipeline{})
		if err != nil {
			if ctx.Err() == nil {
				deliver(nil, classify(err))
			}
			return
		}
		defer cs.Close(context.Background())

		refresh := func() {
			docs, err := s.find(ctx, col, q)
			if ctx.Err() != nil {
				return
			}
			deliver(docs, err)
		}
		refresh()
		for cs.Next(ctx) {
			refresh()
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Str("collection", q.Collection).Msg("change stream ended")
			deliver(nil, classify(err))
		}
	}()

	return live.Once(func() {
		cancel()
		box.Close()
		metrics.SubscriptionsOpen.WithLabelValues("query").Dec()
	})
}

func (s *MongoStore) SubscribeDocument(collection, id string, cb DocumentCallback) live.Cancel {
	ctx, cancel := context.WithCancel(context.Background())
	box := live.NewMailbox()
	deliver := func(doc *Document, err error) { box.Post(func() { cb(doc, err) }) }
	metrics.SubscriptionsOpen.WithLabelValues("document").Inc()

	go func() {
		col := s.col(collection)
		match := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.M{"documentKey._id": id}}}}
		cs, err := col.Watch(ctx, match)
		if err != nil {
			if ctx.Err() == nil {
				deliver(nil, classify(err))
			}
			return
		}
		defer cs.Close(context.Background())

		refresh := func() {
			doc, err := s.findOne(ctx, col, id)
			if ctx.Err() != nil {
				return
			}
			deliver(doc, err)
		}
		refresh()
		for cs.Next(ctx) {
			refresh()
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Str("collection", collection).Msg("document change stream ended")
			deliver(nil, classify(err))
		}
	}()

	return live.Once(func() {
		cancel()
		box.Close()
		metrics.SubscriptionsOpen.WithLabelValues("document").Dec()
	})
}

func (s *MongoStore) find(ctx context.Context, col *mongo.Collection, q Query) ([]Document, error) {
	dir := 1
	if q.Direction == Descending {
		dir = -1
	}
	if q.LimitToLast {
		dir = -dir
	}
	opts := options.Find().SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	out := []Document{}
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, errs.Store(errs.CodeInvalidArgument, "stored document could not be decoded", err)
		}
		out = append(out, fromM(m))
	}
	if err := cur.Err(); err != nil {
		return nil, classify(err)
	}
	if q.LimitToLast {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *MongoStore) findOne(ctx context.Context, col *mongo.Collection, id string) (*Document, error) {
	var m bson.M
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, classify(err)
	}
	d := fromM(m)
	return &d, nil
}

func fromM(m bson.M) Document {
	id := idString(m["_id"])
	delete(m, "_id")
	return Document{ID: id, Data: m, CreateTime: createTime(m)}
}

// classify maps driver errors onto store error codes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Store(errs.CodeNetwork, "the backend could not be reached", err)
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 13 || ce.Code == 18) {
		return errs.Store(errs.CodePermissionDenied, "missing or insufficient permissions", err)
	}
	return errs.Store(errs.CodeUnknown, "the backend rejected the request", err)
}
