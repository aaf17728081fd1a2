package service

import (
	"context"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

// MemberService manages project memberships and gates actions by
// permission level. The acting user's permission is always read from the
// store; it is never taken from request input.
type MemberService struct {
	members  store.MemberStore
	projects store.ProjectStore
	users    store.UserStore
}

// NewMemberService creates a MemberService backed by the given stores.
func NewMemberService(members store.MemberStore, projects store.ProjectStore, users store.UserStore) *MemberService {
	return &MemberService{members: members, projects: projects, users: users}
}

// Authorize reports whether the actual permission level satisfies the
// required one. Levels are totally ordered, so this is a plain
// comparison.
func Authorize(actual, required models.Permission) bool {
	return actual >= required
}

// AddMember adds a user to a project at the given permission level. The
// (user, project) pair must not already hold a membership.
func (s *MemberService) AddMember(ctx context.Context, projectID, userID string, permission models.Permission) (*models.ProjectMember, error) {
	if !permission.Valid() {
		return nil, errs.BadRequestf("invalid permission: %d", permission)
	}

	exists, err := s.projects.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFoundf("project not found: %s", projectID)
	}

	exists, err = s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFoundf("user not found: %s", userID)
	}

	existing, err := s.members.GetMemberByUserProject(ctx, userID, projectID)
	if err != nil && !errs.IsKind(err, errs.NotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflictf("user %s is already a member of project %s", userID, projectID)
	}

	m := &models.ProjectMember{
		ProjectID:  projectID,
		UserID:     userID,
		Permission: permission,
	}
	if err := s.members.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	created, err := s.members.GetMember(ctx, m.ID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "membership vanished after create")
	}
	return created, nil
}

// ListMembers returns the project's memberships with user profiles.
func (s *MemberService) ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	exists, err := s.projects.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFoundf("project not found: %s", projectID)
	}
	return s.members.ListMembersByProject(ctx, projectID)
}

// UpdatePermission changes an existing membership's permission level.
func (s *MemberService) UpdatePermission(ctx context.Context, memberID string, permission models.Permission) (*models.ProjectMember, error) {
	if !permission.Valid() {
		return nil, errs.BadRequestf("invalid permission: %d", permission)
	}

	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	if err := s.members.UpdateMemberPermission(ctx, memberID, permission); err != nil {
		return nil, err
	}

	updated, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "membership vanished after update")
	}
	return updated, nil
}

// RemoveMember deletes the membership by id.
func (s *MemberService) RemoveMember(ctx context.Context, memberID string) error {
	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return err
	}
	return s.members.DeleteMember(ctx, memberID)
}

// CheckPermission returns the user's permission level in the project.
// Not being a member is reported through the bool, not as an error.
func (s *MemberService) CheckPermission(ctx context.Context, userID, projectID string) (models.Permission, bool, error) {
	m, err := s.members.GetMemberByUserProject(ctx, userID, projectID)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return m.Permission, true, nil
}

// RequirePermission derives the user's permission from the store for the
// current (user, project) pair and returns Forbidden when it does not
// satisfy required.
func (s *MemberService) RequirePermission(ctx context.Context, userID, projectID string, required models.Permission) error {
	actual, isMember, err := s.CheckPermission(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !isMember {
		return errs.Forbiddenf("user %s is not a member of project %s", userID, projectID)
	}
	if !Authorize(actual, required) {
		return errs.Forbiddenf("requires %s permission, user has %s", required, actual)
	}
	return nil
}
