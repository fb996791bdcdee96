package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WriteRule decides whether a write may proceed. It stands in for the access
// rules a hosted backend enforces on its side.
type WriteRule func(ctx context.Context, collection string, data bson.M) error

type record struct {
	doc Document
	seq uint64
}

type memSub struct {
	collection string
	docID      string // set for document subscriptions
	query      *Query
	box        *live.Mailbox
	onDoc      DocumentCallback
	onQuery    QueryCallback
}

func (s *memSub) kind() string {
	if s.query != nil {
		return "query"
	}
	return "document"
}

// MemoryStore is an in-process Client. Every write synchronously computes new
// snapshots for the affected subscriptions; delivery happens on each
// subscription's own mailbox.
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	last        time.Time
	seq         uint64
	collections map[string]map[string]*record
	subs        map[uint64]*memSub
	nextSub     uint64
	failures    map[string]error
	rule        WriteRule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		collections: make(map[string]map[string]*record),
		subs:        make(map[uint64]*memSub),
		failures:    make(map[string]error),
	}
}

// SetClock replaces the time source used for server timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetWriteRule installs the access rule applied to every write.
func (m *MemoryStore) SetWriteRule(r WriteRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rule = r
}

// stamp returns a server timestamp strictly after the previous one at
// millisecond precision, which is what bson datetimes keep.
func (m *MemoryStore) stamp() time.Time {
	t := m.now().UTC().Truncate(time.Millisecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Millisecond)
	}
	m.last = t
	return t
}

func (m *MemoryStore) WriteDocument(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := m.put(ctx, collection, id, data, true); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) SetDocument(ctx context.Context, collection, id string, data any) error {
	if id == "" {
		return errs.Store(errs.CodeInvalidArgument, "document id is required", nil)
	}
	return m.put(ctx, collection, id, data, false)
}

func (m *MemoryStore) put(ctx context.Context, collection, id string, data any, create bool) error {
	doc, err := toM(data)
	if err != nil {
		metrics.Writes.WithLabelValues(collection, "invalid").Inc()
		return errs.Store(errs.CodeInvalidArgument, "document could not be encoded", err)
	}

	m.mu.Lock()
	rule := m.rule
	m.mu.Unlock()
	if rule != nil {
		if err := rule(ctx, collection, doc); err != nil {
			metrics.Writes.WithLabelValues(collection, "rejected").Inc()
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]*record)
		m.collections[collection] = col
	}
	prev, exists := col[id]
	if create && exists {
		return errs.Store(errs.CodeInvalidArgument, "document already exists", nil)
	}
	switch {
	case exists && prev.doc.Data[FieldCreatedAt] != nil:
		doc[FieldCreatedAt] = prev.doc.Data[FieldCreatedAt]
	default:
		doc[FieldCreatedAt] = primitive.NewDateTimeFromTime(m.stamp())
	}
	m.seq++
	seq := m.seq
	if exists {
		seq = prev.seq
	}
	col[id] = &record{doc: Document{ID: id, Data: doc, CreateTime: createTime(doc)}, seq: seq}
	metrics.Writes.WithLabelValues(collection, "ok").Inc()

	for _, s := range m.subs {
		if s.collection != collection {
			continue
		}
		if s.query == nil && s.docID != id {
			continue
		}
		m.deliverLocked(s)
	}
	return nil
}

// deliverLocked queues the current snapshot (or injected failure) for s.
func (m *MemoryStore) deliverLocked(s *memSub) {
	if err := m.failures[s.collection]; err != nil {
		if s.query != nil {
			cb := s.onQuery
			s.box.Post(func() { cb(nil, err) })
		} else {
			cb := s.onDoc
			s.box.Post(func() { cb(nil, err) })
		}
		return
	}
	if s.query != nil {
		docs := m.runQueryLocked(*s.query)
		cb := s.onQuery
		s.box.Post(func() { cb(docs, nil) })
		return
	}
	var doc *Document
	if r, ok := m.collections[s.collection][s.docID]; ok {
		d := r.doc
		doc = &d
	}
	cb := s.onDoc
	s.box.Post(func() { cb(doc, nil) })
}

func (m *MemoryStore) runQueryLocked(q Query) []Document {
	col := m.collections[q.Collection]
	recs := make([]*record, 0, len(col))
	for _, r := range col {
		recs = append(recs, r)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		c := compareValues(recs[i].doc.Data[q.OrderBy], recs[j].doc.Data[q.OrderBy])
		if c == 0 {
			c = compareSeq(recs[i].seq, recs[j].seq)
		}
		if q.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && len(recs) > q.Limit {
		if q.LimitToLast {
			recs = recs[len(recs)-q.Limit:]
		} else {
			recs = recs[:q.Limit]
		}
	}
	out := make([]Document, len(recs))
	for i, r := range recs {
		out[i] = r.doc
	}
	return out
}

func (m *MemoryStore) subscribe(s *memSub) live.Cancel {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = s
	m.deliverLocked(s)
	m.mu.Unlock()
	metrics.SubscriptionsOpen.WithLabelValues(s.kind()).Inc()

	return live.Once(func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		s.box.Close()
		metrics.SubscriptionsOpen.WithLabelValues(s.kind()).Dec()
	})
}

func (m *MemoryStore) SubscribeDocument(collection, id string, cb DocumentCallback) live.Cancel {
	return m.subscribe(&memSub{collection: collection, docID: id, box: live.NewMailbox(), onDoc: cb})
}

func (m *MemoryStore) SubscribeQuery(q Query, cb QueryCallback) live.Cancel {
	return m.subscribe(&memSub{collection: q.Collection, query: &q, box: live.NewMailbox(), onQuery: cb})
}

// Fail makes every read of collection fail with err until Recover is called.
// Open subscriptions receive the error right away.
func (m *MemoryStore) Fail(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[collection] = err
	for _, s := range m.subs {
		if s.collection == collection {
			m.deliverLocked(s)
		}
	}
}

// Recover clears a failure set by Fail and re-delivers current snapshots.
func (m *MemoryStore) Recover(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, collection)
	for _, s := range m.subs {
		if s.collection == collection {
			m.deliverLocked(s)
		}
	}
}

// OpenSubscriptions counts live subscriptions on collection, or on every
// collection when collection is empty.
func (m *MemoryStore) OpenSubscriptions(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if collection == "" || s.collection == collection {
			n++
		}
	}
	return n
}

// SubscribedDocuments lists the ids of the documents with open subscriptions
// in collection.
func (m *MemoryStore) SubscribedDocuments(collection string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, s := range m.subs {
		if s.collection == collection && s.query == nil {
			ids = append(ids, s.docID)
		}
	}
	return ids
}

// Count returns the number of stored documents in collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareValues orders the scalar types a bson round trip produces. Missing
// values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			return compareSeq64(int64(av), int64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
	}
	return 0
}

func compareSeq64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
