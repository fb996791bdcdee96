package content

import "github.com/go-playground/validator/v10"

// Draft is the user-supplied part of an item. Author and timestamp are added
// on publication.
type Draft interface {
	Kind() Kind
	build(a Author) Item
}

type AnnouncementDraft struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=5000"`
}

type EventDraft struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	Date        string `json:"date" validate:"required,max=50"`
	Venue       string `json:"venue" validate:"required,max=200"`
}

// AttachmentPath is where the portal serves uploaded attachments. An
// achievement image is either an absolute URL or a path under it.
const AttachmentPath = "/api/v1/attachments/"

type AchievementDraft struct {
	Title       string `json:"title" validate:"required,max=200"`
	StudentName string `json:"studentName" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=5000"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,max=500,url|startswith=/api/v1/attachments/"`
}

type MessageDraft struct {
	Text string `json:"text" validate:"required,max=1000"`
}

func (AnnouncementDraft) Kind() Kind { return KindAnnouncement }
func (EventDraft) Kind() Kind        { return KindEvent }
func (AchievementDraft) Kind() Kind  { return KindAchievement }
func (MessageDraft) Kind() Kind      { return KindChat }

func (d AnnouncementDraft) build(a Author) Item {
	return Announcement{Author: a, Title: d.Title, Content: d.Content}
}

func (d EventDraft) build(a Author) Item {
	return Event{Author: a, Title: d.Title, Description: d.Description, Date: d.Date, Venue: d.Venue}
}

func (d AchievementDraft) build(a Author) Item {
	return Achievement{Author: a, Title: d.Title, StudentName: d.StudentName, Description: d.Description, ImageURL: d.ImageURL}
}

func (d MessageDraft) build(a Author) Item {
	return ChatMessage{Author: a, Text: d.Text}
}

// NewDraft returns an empty draft for kind, ready to be bound from a request.
func NewDraft(kind Kind) Draft {
	switch kind {
	case KindAnnouncement:
		return &AnnouncementDraft{}
	case KindEvent:
		return &EventDraft{}
	case KindAchievement:
		return &AchievementDraft{}
	case KindChat:
		return &MessageDraft{}
	}
	return nil
}

var validate = validator.New()
