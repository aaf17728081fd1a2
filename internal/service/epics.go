package service

import (
	"context"
	"strings"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

// EpicService enforces (key, scope) uniqueness for epics, mirroring
// IssueService. Issues and epics occupy separate uniqueness namespaces.
type EpicService struct {
	epics    store.EpicStore
	projects store.ProjectStore
}

// NewEpicService creates an EpicService backed by the given stores.
func NewEpicService(epics store.EpicStore, projects store.ProjectStore) *EpicService {
	return &EpicService{epics: epics, projects: projects}
}

// CreateEpicInput carries the caller-supplied fields for a new epic.
type CreateEpicInput struct {
	ProjectID   string
	Key         string
	Scope       *string
	Title       string
	Description string
}

// EpicPatch is a partial update; see IssuePatch for the Scope/SetScope
// convention.
type EpicPatch struct {
	Key         *string
	Scope       *string
	SetScope    bool
	Title       *string
	Description *string
	Status      *models.IssueStatus
}

// Create persists a new epic after the advisory (key, scope) check.
func (s *EpicService) Create(ctx context.Context, in CreateEpicInput) (*models.Epic, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return nil, errs.BadRequestf("epic key must not be empty")
	}
	scope := normalizeScope(in.Scope)

	exists, err := s.projects.ProjectExists(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFoundf("project not found: %s", in.ProjectID)
	}

	existing, err := s.epics.GetEpicByKeyScope(ctx, key, scope)
	if err != nil && !errs.IsKind(err, errs.NotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflictf("epic key %q already exists in %s", key, scopeLabel(scope))
	}

	epic := &models.Epic{
		ProjectID:   in.ProjectID,
		Key:         key,
		Scope:       scope,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.IssueStatusOpen,
	}
	if err := s.epics.CreateEpic(ctx, epic); err != nil {
		return nil, err
	}

	created, err := s.epics.GetEpic(ctx, epic.ID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "epic vanished after create")
	}
	return created, nil
}

// Get returns the epic by id.
func (s *EpicService) Get(ctx context.Context, id string) (*models.Epic, error) {
	return s.epics.GetEpic(ctx, id)
}

// List returns epics for a project, or all epics when projectID is empty.
func (s *EpicService) List(ctx context.Context, projectID string) ([]*models.Epic, error) {
	return s.epics.ListEpics(ctx, projectID)
}

// Update applies a partial update with the same target-pair collision
// check as IssueService.Update.
func (s *EpicService) Update(ctx context.Context, id string, patch EpicPatch) (*models.Epic, error) {
	current, err := s.epics.GetEpic(ctx, id)
	if err != nil {
		return nil, err
	}

	targetKey := current.Key
	if patch.Key != nil {
		targetKey = strings.TrimSpace(*patch.Key)
		if targetKey == "" {
			return nil, errs.BadRequestf("epic key must not be empty")
		}
	}
	targetScope := current.Scope
	if patch.SetScope {
		targetScope = normalizeScope(patch.Scope)
	}

	if targetKey != current.Key || !sameScope(targetScope, current.Scope) {
		other, err := s.epics.GetEpicByKeyScope(ctx, targetKey, targetScope)
		if err != nil && !errs.IsKind(err, errs.NotFound) {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, errs.Conflictf("epic key %q already exists in %s", targetKey, scopeLabel(targetScope))
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
	if patch.Status != nil {
		current.Status = *patch.Status
	}

	if err := s.epics.UpdateEpic(ctx, current); err != nil {
		return nil, err
	}

	updated, err := s.epics.GetEpic(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "epic vanished after update")
	}
	return updated, nil
}

// Delete removes the epic by id.
func (s *EpicService) Delete(ctx context.Context, id string) error {
	if _, err := s.epics.GetEpic(ctx, id); err != nil {
		return err
	}
	return s.epics.DeleteEpic(ctx, id)
}
