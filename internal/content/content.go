// Package content defines the portal's shared content types and the write path
// that publishes them.
package content

import (
	"fmt"
	"time"

	"github.com/deptconnect/portal/internal/store"
)

// Kind is the closed set of content categories.
type Kind string

const (
	KindAnnouncement Kind = "announcements"
	KindEvent        Kind = "events"
	KindAchievement  Kind = "achievements"
	KindChat         Kind = "chat"
)

// Kinds lists every category in display order.
var Kinds = []Kind{KindAnnouncement, KindEvent, KindAchievement, KindChat}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content category %q", s)
}

// IsPost reports whether the kind is a role-gated post category.
func (k Kind) IsPost() bool { return k != KindChat }

// Collection is the public collection the kind is stored in.
func (k Kind) Collection() string {
	switch k {
	case KindAnnouncement:
		return store.CollectionAnnouncements
	case KindEvent:
		return store.CollectionEvents
	case KindAchievement:
		return store.CollectionAchievements
	case KindChat:
		return store.CollectionMessages
	}
	panic("content: unknown kind " + string(k))
}

// Author is the snapshot of the writer's profile copied into every item at
// creation time.
type Author struct {
	AuthorID   string `bson:"authorId" json:"authorId"`
	AuthorName string `bson:"authorName" json:"authorName"`
	AuthorRole string `bson:"authorRole" json:"authorRole"`
}

// Item is implemented only by the types in this package.
type Item interface {
	Kind() Kind
	ItemID() string
	Created() time.Time
	By() Author
	sealed()
}

// Meta is the store-assigned part of an item.
type Meta struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt"`
}

func (m Meta) ItemID() string     { return m.ID }
func (m Meta) Created() time.Time { return m.CreatedAt }

type Announcement struct {
	Meta    `bson:",inline"`
	Author  `bson:",inline"`
	Title   string `bson:"title" json:"title"`
	Content string `bson:"content" json:"content"`
}

type Event struct {
	Meta        `bson:",inline"`
	Author      `bson:",inline"`
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	Date        string `bson:"date" json:"date"`
	Venue       string `bson:"venue" json:"venue"`
}

type Achievement struct {
	Meta        `bson:",inline"`
	Author      `bson:",inline"`
	Title       string `bson:"title" json:"title"`
	StudentName string `bson:"studentName" json:"studentName"`
	Description string `bson:"description" json:"description"`
	ImageURL    string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

type ChatMessage struct {
	Meta   `bson:",inline"`
	Author `bson:",inline"`
	Text   string `bson:"text" json:"text"`
}

func (Announcement) Kind() Kind { return KindAnnouncement }
func (Event) Kind() Kind        { return KindEvent }
func (Achievement) Kind() Kind  { return KindAchievement }
func (ChatMessage) Kind() Kind  { return KindChat }

func (a Announcement) By() Author { return a.Author }
func (e Event) By() Author        { return e.Author }
func (a Achievement) By() Author  { return a.Author }
func (m ChatMessage) By() Author  { return m.Author }

func (Announcement) sealed() {}
func (Event) sealed()        {}
func (Achievement) sealed()  {}
func (ChatMessage) sealed()  {}

// Decode turns a stored document of the given kind into its Item.
func Decode(kind Kind, doc store.Document) (Item, error) {
	var (
		item Item
		err  error
	)
	switch kind {
	case KindAnnouncement:
		var v Announcement
		err = doc.Decode(&v)
		v.CreatedAt = doc.CreateTime
		item = v
	case KindEvent:
		var v Event
		err = doc.Decode(&v)
		v.CreatedAt = doc.CreateTime
		item = v
	case KindAchievement:
		var v Achievement
		err = doc.Decode(&v)
		v.CreatedAt = doc.CreateTime
		item = v
	case KindChat:
		var v ChatMessage
		err = doc.Decode(&v)
		v.CreatedAt = doc.CreateTime
		item = v
	default:
		return nil, fmt.Errorf("unknown content category %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, doc.ID, err)
	}
	return item, nil
}
