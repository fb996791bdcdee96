package feed

import (
	"sync"

	"github.com/deptconnect/portal/internal/content"
	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/internal/store"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/rs/zerolog"
)

// Sessions is the session state stream the synchronizer follows.
type Sessions interface {
	Subscribe(fn func(session.State)) live.Cancel
}

// Synchronizer binds the category queries to the active session. Each
// activation gets a new generation; snapshots from an older generation are
// dropped.
type Synchronizer struct {
	store  store.Client
	layout store.Layout
	log    zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	active bool
	epoch  uint64
	scope  *live.Scope
	stop   live.Cancel
	view   *live.Broadcaster[View]
}

func NewSynchronizer(c store.Client, layout store.Layout) *Synchronizer {
	return &Synchronizer{
		store:  c,
		layout: layout,
		log:    logger.With("feed"),
		scope:  live.NewScope(),
		view:   live.NewBroadcaster(View{Categories: map[Category]CategoryState{}}),
	}
}

// Start follows sessions until Close.
func (s *Synchronizer) Start(sessions Sessions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = sessions.Subscribe(s.onSession)
}

func (s *Synchronizer) View() View { return s.view.Get() }

func (s *Synchronizer) Subscribe(fn func(View)) live.Cancel { return s.view.Subscribe(fn) }

// OpenQueries reports how many category queries are open.
func (s *Synchronizer) OpenQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope.Len()
}

func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.scope.Close()
	s.active = false
	s.mu.Unlock()
	s.view.Close()
}

func (s *Synchronizer) onSession(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.Active() {
		if s.active && s.epoch == st.Epoch {
			// same identity, profile fields changed
			return
		}
		s.openLocked(st.Epoch)
		return
	}
	if s.active {
		s.scope.Close()
		s.scope = live.NewScope()
		s.active = false
		s.log.Debug().Uint64("epoch", st.Epoch).Msg("feeds closed")
	}
	if v := s.view.Get(); v.Open || v.Epoch != st.Epoch {
		s.view.Publish(View{Epoch: st.Epoch, Categories: map[Category]CategoryState{}})
	}
}

func (s *Synchronizer) openLocked(epoch uint64) {
	s.scope.Close()
	s.scope = live.NewScope()
	s.gen++
	s.active = true
	s.epoch = epoch
	gen := s.gen

	fresh := View{Epoch: epoch, Open: true, Categories: make(map[Category]CategoryState, len(Categories))}
	for _, c := range Categories {
		fresh.Categories[c] = CategoryState{}
	}
	s.view.Publish(fresh)

	for _, c := range Categories {
		c := c
		s.scope.Add(s.store.SubscribeQuery(queryFor(s.layout, c), func(docs []store.Document, err error) {
			s.onSnapshot(gen, c, docs, err)
		}))
	}
	s.log.Debug().Uint64("epoch", epoch).Int("queries", len(Categories)).Msg("feeds opened")
}

func (s *Synchronizer) onSnapshot(gen uint64, c Category, docs []store.Document, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.active {
		return
	}
	cur := s.view.Get()
	cs := cur.Category(c)
	if err != nil {
		s.log.Warn().Err(err).Str("category", string(c)).Msg("feed degraded")
		cs.Degraded = true
		cs.Err = err
		s.view.Publish(cur.with(c, cs))
		return
	}

	items := make([]content.Item, 0, len(docs))
	for _, d := range docs {
		it, derr := content.Decode(c, d)
		if derr != nil {
			s.log.Warn().Err(derr).Str("category", string(c)).Msg("skipping unreadable document")
			continue
		}
		items = append(items, it)
	}
	metrics.Snapshots.WithLabelValues(string(c)).Inc()
	s.view.Publish(cur.with(c, CategoryState{Items: items, Loaded: true}))
}
