package content

import (
	"context"
	"errors"
	"strings"

	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/internal/store"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Sessions exposes the current session state.
type Sessions interface {
	State() session.State
}

// Publisher writes new items on behalf of the active session.
type Publisher struct {
	store    store.Client
	layout   store.Layout
	sessions Sessions
	log      zerolog.Logger
}

func NewPublisher(c store.Client, layout store.Layout, sessions Sessions) *Publisher {
	return &Publisher{store: c, layout: layout, sessions: sessions, log: logger.With("content")}
}

// Publish validates d and stores it as one new document carrying the author's
// current name and role. The item shows up in feeds once the store delivers
// the next snapshot.
func (p *Publisher) Publish(ctx context.Context, d Draft) (string, error) {
	if d == nil {
		return "", errs.Store(errs.CodeInvalidArgument, "nothing to publish", nil)
	}
	st := p.sessions.State()
	if !st.Active() {
		return "", errs.Store(errs.CodePermissionDenied, "only approved members can post", nil)
	}
	kind := d.Kind()
	if kind.IsPost() && !st.Profile.Role.CanPost() {
		return "", errs.Store(errs.CodePermissionDenied, "your role cannot publish "+string(kind), nil)
	}
	if err := validate.Struct(d); err != nil {
		return "", errs.Store(errs.CodeInvalidArgument, describe(err), err)
	}

	item := d.build(Author{
		AuthorID:   st.Profile.ID,
		AuthorName: st.Profile.DisplayName,
		AuthorRole: string(st.Profile.Role),
	})
	id, err := p.store.WriteDocument(ctx, p.layout.Public(kind.Collection()), item)
	if err != nil {
		p.log.Error().Err(err).Str("category", string(kind)).Str("identity", st.Profile.ID).Msg("publish rejected")
		return "", err
	}
	p.log.Info().Str("category", string(kind)).Str("id", id).Msg("published")
	return id, nil
}

// describe names the first invalid field.
func describe(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return "invalid " + strings.ToLower(ve[0].Field())
	}
	return "the form is incomplete"
}
