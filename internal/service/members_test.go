package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

func memberFixture(t *testing.T) (*MemberService, *store.SQLiteStore, *models.Project, *models.User) {
	t.Helper()
	s := newTestStore(t)
	p := seedProject(t, s, "p1")
	u := seedUser(t, s, "User One", "u1@example.com")
	return NewMemberService(s, s, s), s, p, u
}

func TestAddMember_DuplicatePair(t *testing.T) {
	svc, _, p, u := memberFixture(t)
	ctx := context.Background()

	m, err := svc.AddMember(ctx, p.ID, u.ID, models.PermissionMember)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionMember, m.Permission)
	require.NotNil(t, m.User)
	assert.Equal(t, "User One", m.User.Name)
	assert.Equal(t, "u1@example.com", m.User.Email)

	// Same pair again, at any permission, is already-a-member.
	_, err = svc.AddMember(ctx, p.ID, u.ID, models.PermissionAdministrator)
	require.Error(t, err)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
	assert.Contains(t, err.Error(), "already a member")
}

func TestAddMember_MissingProjectOrUser(t *testing.T) {
	svc, _, p, u := memberFixture(t)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, "ghost", u.ID, models.PermissionMember)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	_, err = svc.AddMember(ctx, p.ID, "ghost", models.PermissionMember)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestAddMember_InvalidPermission(t *testing.T) {
	svc, _, p, u := memberFixture(t)

	_, err := svc.AddMember(context.Background(), p.ID, u.ID, models.Permission(9))
	require.Error(t, err)
	assert.Equal(t, errs.BadRequest, errs.KindOf(err))
}

func TestCheckPermission_NotAMemberIsNotAnError(t *testing.T) {
	svc, s, p, _ := memberFixture(t)
	ctx := context.Background()

	u2 := seedUser(t, s, "User Two", "u2@example.com")

	perm, isMember, err := svc.CheckPermission(ctx, u2.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, models.Permission(0), perm)
}

func TestAuthorize(t *testing.T) {
	assert.False(t, Authorize(models.PermissionModerator, models.PermissionAdministrator))
	assert.True(t, Authorize(models.PermissionModerator, models.PermissionModerator))
	assert.True(t, Authorize(models.PermissionAdministrator, models.PermissionMember))
	assert.False(t, Authorize(models.PermissionMember, models.PermissionModerator))
}

func TestRequirePermission_DerivedFromStore(t *testing.T) {
	svc, s, p, u := memberFixture(t)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, p.ID, u.ID, models.PermissionModerator)
	require.NoError(t, err)

	require.NoError(t, svc.RequirePermission(ctx, u.ID, p.ID, models.PermissionMember))
	require.NoError(t, svc.RequirePermission(ctx, u.ID, p.ID, models.PermissionModerator))

	err = svc.RequirePermission(ctx, u.ID, p.ID, models.PermissionAdministrator)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.KindOf(err))

	// A non-member is forbidden, not not-found.
	stranger := seedUser(t, s, "Stranger", "s@example.com")
	err = svc.RequirePermission(ctx, stranger.ID, p.ID, models.PermissionMember)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.KindOf(err))
}

func TestUpdatePermissionAndRemove(t *testing.T) {
	svc, _, p, u := memberFixture(t)
	ctx := context.Background()

	m, err := svc.AddMember(ctx, p.ID, u.ID, models.PermissionMember)
	require.NoError(t, err)

	updated, err := svc.UpdatePermission(ctx, m.ID, models.PermissionAdministrator)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionAdministrator, updated.Permission)
	assert.Equal(t, "ADMINISTRATOR", updated.PermissionName)

	_, err = svc.UpdatePermission(ctx, "ghost", models.PermissionMember)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	require.NoError(t, svc.RemoveMember(ctx, m.ID))

	err = svc.RemoveMember(ctx, m.ID)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	_, isMember, err := svc.CheckPermission(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestListMembers(t *testing.T) {
	svc, s, p, u := memberFixture(t)
	ctx := context.Background()

	u2 := seedUser(t, s, "User Two", "u2@example.com")

	_, err := svc.AddMember(ctx, p.ID, u.ID, models.PermissionMember)
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, p.ID, u2.ID, models.PermissionAdministrator)
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	// Highest permission first.
	assert.Equal(t, models.PermissionAdministrator, members[0].Permission)

	_, err = svc.ListMembers(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

// The (user, project) unique constraint is the backstop when two adds
// race past the advisory lookup.
func TestMemberStoreBackstop(t *testing.T) {
	_, s, p, u := memberFixture(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, &models.ProjectMember{
		ProjectID: p.ID, UserID: u.ID, Permission: models.PermissionMember,
	}))

	err := s.CreateMember(ctx, &models.ProjectMember{
		ProjectID: p.ID, UserID: u.ID, Permission: models.PermissionModerator,
	})
	require.Error(t, err)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}
