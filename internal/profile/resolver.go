package profile

import (
	"context"

	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/store"
	"github.com/deptconnect/portal/pkg/errs"
)

// Callback receives each resolved profile, or the error that prevented it.
type Callback func(p *Profile, err error)

// Resolver reads and creates profile documents in the deployment's users
// collection.
type Resolver struct {
	store  store.Client
	layout store.Layout
}

func NewResolver(c store.Client, layout store.Layout) *Resolver {
	return &Resolver{store: c, layout: layout}
}

// Watch subscribes to the profile of identity id. A missing document is
// reported as a not-found StoreError.
func (r *Resolver) Watch(id string, cb Callback) live.Cancel {
	return r.store.SubscribeDocument(r.layout.Users(), id, func(doc *store.Document, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		if doc == nil {
			cb(nil, errs.Store(errs.CodeNotFound, "no profile exists for this account yet", nil))
			return
		}
		var p Profile
		if err := doc.Decode(&p); err != nil {
			cb(nil, errs.Store(errs.CodeInvalidArgument, "the stored profile could not be read", err))
			return
		}
		p.CreatedAt = doc.CreateTime
		cb(&p, nil)
	})
}

// Create writes the profile of a newly signed-up identity with status
// pending.
func (r *Resolver) Create(ctx context.Context, id, email string, form SignUpForm) (*Profile, error) {
	if err := form.Validate(); err != nil {
		return nil, errs.Store(errs.CodeInvalidArgument, "the profile form is incomplete", err)
	}
	p := &Profile{
		ID:          id,
		DisplayName: form.DisplayName,
		Email:       email,
		Role:        form.Role,
		Status:      StatusPending,
		Mobile:      form.Mobile,
		Course:      form.Course,
		Semester:    form.Semester,
		RollNo:      form.RollNo,
	}
	if err := r.store.SetDocument(ctx, r.layout.Users(), id, p); err != nil {
		return nil, err
	}
	return p, nil
}
