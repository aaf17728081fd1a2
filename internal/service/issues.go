package service

import (
	"context"
	"strings"
	"time"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

// IssueService enforces (key, scope) uniqueness for issues, including the
// nil-scope group.
type IssueService struct {
	issues   store.IssueStore
	projects store.ProjectStore
}

// NewIssueService creates an IssueService backed by the given stores.
func NewIssueService(issues store.IssueStore, projects store.ProjectStore) *IssueService {
	return &IssueService{issues: issues, projects: projects}
}

// CreateIssueInput carries the caller-supplied fields for a new issue.
type CreateIssueInput struct {
	ProjectID   string
	Key         string
	Scope       *string
	Title       string
	Description string
	Priority    models.IssuePriority
	Assignee    string
}

// IssuePatch is a partial update. Nil fields are left unchanged. Scope is
// only applied when SetScope is true, so an explicit null (detach from
// any board) is distinguishable from "not provided".
type IssuePatch struct {
	Key         *string
	Scope       *string
	SetScope    bool
	Title       *string
	Description *string
	Status      *models.IssueStatus
	Priority    *models.IssuePriority
	Assignee    *string
}

// Create persists a new issue after verifying that no other issue holds
// the same (key, scope) pair. The store's unique index is the backstop
// for two creates racing past this check.
func (s *IssueService) Create(ctx context.Context, in CreateIssueInput) (*models.Issue, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return nil, errs.BadRequestf("issue key must not be empty")
	}
	scope := normalizeScope(in.Scope)

	exists, err := s.projects.ProjectExists(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFoundf("project not found: %s", in.ProjectID)
	}

	existing, err := s.issues.GetIssueByKeyScope(ctx, key, scope)
	if err != nil && !errs.IsKind(err, errs.NotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflictf("issue key %q already exists in %s", key, scopeLabel(scope))
	}

	priority := in.Priority
	if priority == "" {
		priority = models.IssuePriorityMedium
	}

	issue := &models.Issue{
		ProjectID:   in.ProjectID,
		Key:         key,
		Scope:       scope,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.IssueStatusOpen,
		Priority:    priority,
		Assignee:    in.Assignee,
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}

	created, err := s.issues.GetIssue(ctx, issue.ID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "issue vanished after create")
	}
	return created, nil
}

// Get returns the issue by id.
func (s *IssueService) Get(ctx context.Context, id string) (*models.Issue, error) {
	return s.issues.GetIssue(ctx, id)
}

// List returns issues matching the filter.
func (s *IssueService) List(ctx context.Context, filter store.IssueListFilter) ([]*models.Issue, error) {
	return s.issues.ListIssues(ctx, filter)
}

// Update applies a partial update. If the patch moves the issue to a new
// (key, scope) pair, any other issue already holding that pair is a
// Conflict.
func (s *IssueService) Update(ctx context.Context, id string, patch IssuePatch) (*models.Issue, error) {
	current, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	targetKey := current.Key
	if patch.Key != nil {
		targetKey = strings.TrimSpace(*patch.Key)
		if targetKey == "" {
			return nil, errs.BadRequestf("issue key must not be empty")
		}
	}
	targetScope := current.Scope
	if patch.SetScope {
		targetScope = normalizeScope(patch.Scope)
	}

	if targetKey != current.Key || !sameScope(targetScope, current.Scope) {
		other, err := s.issues.GetIssueByKeyScope(ctx, targetKey, targetScope)
		if err != nil && !errs.IsKind(err, errs.NotFound) {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, errs.Conflictf("issue key %q already exists in %s", targetKey, scopeLabel(targetScope))
		}
	}

	current.Key = targetKey
	current.Scope = targetScope
	if patch.Title != nil {
		current.Title = *patch.Title
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Priority != nil {
		current.Priority = *patch.Priority
	}
	if patch.Assignee != nil {
		current.Assignee = *patch.Assignee
	}
	if patch.Status != nil {
		current.Status = *patch.Status
		switch *patch.Status {
		case models.IssueStatusClosed, models.IssueStatusDone:
			if current.ClosedAt == nil {
				now := time.Now().UTC()
				current.ClosedAt = &now
			}
		default:
			current.ClosedAt = nil
		}
	}

	// Zero rows affected here means the issue was deleted between the
	// fetch and the write; the store reports that as NotFound.
	if err := s.issues.UpdateIssue(ctx, current); err != nil {
		return nil, err
	}

	updated, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "issue vanished after update")
	}
	return updated, nil
}

// Delete removes the issue by id.
func (s *IssueService) Delete(ctx context.Context, id string) error {
	if _, err := s.issues.GetIssue(ctx, id); err != nil {
		return err
	}
	return s.issues.DeleteIssue(ctx, id)
}
