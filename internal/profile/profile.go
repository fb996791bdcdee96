// Package profile holds the department profile attached to every identity and
// the resolver that keeps it live.
package profile

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleClassRep   Role = "classRep"
	RoleProfessor  Role = "professor"
	RoleHeadOfDept Role = "headOfDept"
	RoleAdmin      Role = "admin"
)

// Roles lists every known role.
var Roles = []Role{RoleStudent, RoleClassRep, RoleProfessor, RoleHeadOfDept, RoleAdmin}

func (r Role) Valid() bool {
	for _, k := range Roles {
		if r == k {
			return true
		}
	}
	return false
}

// CanPost reports whether the role may publish announcements, events and
// achievements.
func (r Role) CanPost() bool {
	switch r {
	case RoleClassRep, RoleHeadOfDept, RoleProfessor:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Profile is the document stored per identity under the users collection.
type Profile struct {
	ID          string    `bson:"_id" json:"id"`
	DisplayName string    `bson:"displayName" json:"displayName"`
	Email       string    `bson:"email" json:"email"`
	Role        Role      `bson:"role" json:"role"`
	Status      Status    `bson:"status" json:"status"`
	CreatedAt   time.Time `bson:"createdAt,omitempty" json:"createdAt"`
	Mobile      string    `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Course      string    `bson:"course,omitempty" json:"course,omitempty"`
	Semester    string    `bson:"semester,omitempty" json:"semester,omitempty"`
	RollNo      string    `bson:"rollNo,omitempty" json:"rollNo,omitempty"`
}

// SignUpForm carries the profile fields collected at sign-up. Status is not
// part of the form: new profiles always start pending.
type SignUpForm struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Role        Role   `json:"role" validate:"required,oneof=student classRep professor headOfDept admin"`
	Mobile      string `json:"mobile,omitempty" validate:"omitempty,max=20"`
	Course      string `json:"course,omitempty" validate:"omitempty,max=50"`
	Semester    string `json:"semester,omitempty" validate:"omitempty,max=20"`
	RollNo      string `json:"rollNo,omitempty" validate:"omitempty,max=30"`
}

var validate = validator.New()

func (f SignUpForm) Validate() error { return validate.Struct(f) }
