// Package session combines the identity client and the profile resolver into
// one authorization state that the rest of the portal observes.
package session

import (
	"github.com/deptconnect/portal/internal/identity"
	"github.com/deptconnect/portal/internal/profile"
)

type Status string

const (
	StatusUninitialized    Status = "uninitialized"
	StatusSignedOut        Status = "signedOut"
	StatusResolvingProfile Status = "resolvingProfile"
	StatusPendingApproval  Status = "pendingApproval"
	StatusActive           Status = "active"
	StatusRejected         Status = "rejected"
)

// State is one published value of the controller. Values are never mutated
// after publication.
//
// Epoch increases on every identity change; two states with the same epoch
// belong to the same signed-in identity. Profile is set only in
// PendingApproval, Active and Rejected and always belongs to Identity.
// Unavailable marks a controller that runs without a backend.
type State struct {
	Status      Status
	Epoch       uint64
	Identity    *identity.Identity
	Profile     *profile.Profile
	Err         error
	Unavailable bool
}

func (s State) Active() bool { return s.Status == StatusActive && s.Profile != nil }

// statusFor maps a resolved profile onto the controller status. Unknown
// statuses resolve to nothing.
func statusFor(p *profile.Profile) (Status, bool) {
	switch p.Status {
	case profile.StatusPending:
		return StatusPendingApproval, true
	case profile.StatusApproved:
		return StatusActive, true
	case profile.StatusRejected:
		return StatusRejected, true
	}
	return StatusResolvingProfile, false
}
