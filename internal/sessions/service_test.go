package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenValidateClose(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	sess, err := svc.Open(ctx, "id-1", "a@dept.test", time.Hour)
	require.NoError(t, err)
	require.Len(t, sess.ID, 64)

	got, err := svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "id-1", got.IdentityID)

	require.NoError(t, svc.Close(ctx, sess.ID, "cred-1", time.Hour))
	got, err = svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	revoked, err := svc.IsRevoked(ctx, "cred-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestValidateDropsExpired(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Session{ID: "old", IdentityID: "x", ExpiresAt: time.Now().UTC().Add(-time.Minute)}))
	got, err := svc.Validate(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, got)

	stored, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, stored)
}
