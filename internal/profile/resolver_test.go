package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deptconnect/portal/internal/store"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type result struct {
	p   *Profile
	err error
}

type collector struct {
	mu  sync.Mutex
	got []result
}

func (c *collector) cb(p *Profile, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, result{p, err})
}

func (c *collector) last() (result, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.got) == 0 {
		return result{}, 0
	}
	return c.got[len(c.got)-1], len(c.got)
}

func TestCreateForcesPendingAndWatchResolves(t *testing.T) {
	mem := store.NewMemoryStore()
	r := NewResolver(mem, store.NewLayout("cse"))

	var c collector
	defer r.Watch("u1", c.cb)()
	require.Eventually(t, func() bool { _, n := c.last(); return n == 1 }, time.Second, 5*time.Millisecond)
	first, _ := c.last()
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(first.err))

	form := SignUpForm{DisplayName: "Asha", Role: RoleStudent, Course: "BTech-CSE", Semester: "1st"}
	created, err := r.Create(context.Background(), "u1", "asha@dept.test", form)
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)

	require.Eventually(t, func() bool { res, _ := c.last(); return res.p != nil }, time.Second, 5*time.Millisecond)
	res, _ := c.last()
	require.NoError(t, res.err)
	require.Equal(t, "u1", res.p.ID)
	require.Equal(t, RoleStudent, res.p.Role)
	require.Equal(t, StatusPending, res.p.Status)
	require.Equal(t, "BTech-CSE", res.p.Course)
	require.False(t, res.p.CreatedAt.IsZero())
}

func TestWatchSeesExternalApproval(t *testing.T) {
	mem := store.NewMemoryStore()
	layout := store.NewLayout("cse")
	r := NewResolver(mem, layout)
	_, err := r.Create(context.Background(), "u2", "p@dept.test", SignUpForm{DisplayName: "Prof", Role: RoleProfessor})
	require.NoError(t, err)

	var c collector
	defer r.Watch("u2", c.cb)()
	require.Eventually(t, func() bool { res, _ := c.last(); return res.p != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, mem.SetDocument(context.Background(), layout.Users(), "u2", bson.M{
		"displayName": "Prof", "email": "p@dept.test", "role": "professor", "status": "approved",
	}))
	require.Eventually(t, func() bool {
		res, _ := c.last()
		return res.p != nil && res.p.Status == StatusApproved
	}, time.Second, 5*time.Millisecond)
}

func TestCreateRejectsInvalidForm(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), store.NewLayout("cse"))
	_, err := r.Create(context.Background(), "u3", "x@dept.test", SignUpForm{DisplayName: "", Role: "janitor"})
	require.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))
}

func TestRoleCanPost(t *testing.T) {
	require.True(t, RoleProfessor.CanPost())
	require.True(t, RoleClassRep.CanPost())
	require.True(t, RoleHeadOfDept.CanPost())
	require.False(t, RoleStudent.CanPost())
	require.False(t, RoleAdmin.CanPost())
	require.False(t, Role("janitor").Valid())
}
