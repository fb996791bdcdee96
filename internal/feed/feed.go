// Package feed keeps one live query per content category open for as long as
// the session is active and republishes every snapshot as a view value.
package feed

import (
	"github.com/deptconnect/portal/internal/content"
	"github.com/deptconnect/portal/internal/store"
)

// Category is one of the closed set of feed categories.
type Category = content.Kind

const (
	Announcements = content.KindAnnouncement
	Events        = content.KindEvent
	Achievements  = content.KindAchievement
	Chat          = content.KindChat
)

// ChatLimit is the number of most recent chat messages kept live.
const ChatLimit = 100

// Categories lists every category in display order.
var Categories = content.Kinds

// CategoryState is the published state of one category. Items always holds
// the whole of the latest successful snapshot. A failing query sets Degraded
// and Err and keeps the previous items.
type CategoryState struct {
	Items    []content.Item `json:"items"`
	Loaded   bool           `json:"loaded"`
	Degraded bool           `json:"degraded"`
	Err      error          `json:"-"`
}

// View is the value the synchronizer publishes. Open is true while the
// session is active; Categories is empty otherwise.
type View struct {
	Epoch      uint64                     `json:"epoch"`
	Open       bool                       `json:"open"`
	Categories map[Category]CategoryState `json:"categories"`
}

// Category returns the state of c, or the zero state.
func (v View) Category(c Category) CategoryState { return v.Categories[c] }

func (v View) with(c Category, cs CategoryState) View {
	next := View{Epoch: v.Epoch, Open: v.Open, Categories: make(map[Category]CategoryState, len(v.Categories))}
	for k, s := range v.Categories {
		next.Categories[k] = s
	}
	next.Categories[c] = cs
	return next
}

// queryFor is the live query behind a category: posts newest first, chat the
// most recent messages oldest first.
func queryFor(layout store.Layout, c Category) store.Query {
	q := store.Query{
		Collection: layout.Public(c.Collection()),
		OrderBy:    store.FieldCreatedAt,
		Direction:  store.Descending,
	}
	if c == Chat {
		q.Direction = store.Ascending
		q.Limit = ChatLimit
		q.LimitToLast = true
	}
	return q
}
