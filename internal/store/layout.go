package store

import "strings"

const (
	CollectionUsers         = "users"
	CollectionAnnouncements = "announcements"
	CollectionEvents        = "events"
	CollectionAchievements  = "achievements"
	CollectionMessages      = "messages"
)

// Layout maps logical collections onto paths namespaced by a deployment id.
type Layout struct {
	Deployment string
}

func NewLayout(deployment string) Layout { return Layout{Deployment: deployment} }

func (l Layout) root() string { return "deployments/" + l.Deployment }

// Users is the collection holding one profile document per identity.
func (l Layout) Users() string { return l.root() + "/" + CollectionUsers }

// Public is a shared collection readable by every active session.
func (l Layout) Public(name string) string { return l.root() + "/public/" + name }

// mongoName turns a collection path into a MongoDB collection name.
func mongoName(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
}
