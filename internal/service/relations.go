package service

import (
	"context"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

// RelationService maintains the typed relation graph between issues.
// Edges are stored directed but treated as undirected for existence: at
// most one edge per pair of issues, and never a self-loop.
type RelationService struct {
	relations store.RelationStore
	issues    store.IssueStore
}

// NewRelationService creates a RelationService backed by the given stores.
func NewRelationService(relations store.RelationStore, issues store.IssueStore) *RelationService {
	return &RelationService{relations: relations, issues: issues}
}

// Create links two issues. rawType accepts a numeric ordinal or a
// symbolic name (see models.ParseRelationType). An existing edge in
// either direction is a Conflict.
func (s *RelationService) Create(ctx context.Context, issueID, relatedIssueID string, rawType any) (*models.IssueRelation, error) {
	if issueID == relatedIssueID {
		return nil, errs.BadRequestf("cannot relate an issue to itself")
	}

	if _, err := s.issues.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	if _, err := s.issues.GetIssue(ctx, relatedIssueID); err != nil {
		return nil, err
	}

	relType, err := models.ParseRelationType(rawType)
	if err != nil {
		return nil, err
	}

	existing, err := s.relations.GetRelationByPair(ctx, issueID, relatedIssueID)
	if err != nil && !errs.IsKind(err, errs.NotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflictf("issues are already related")
	}

	rel := &models.IssueRelation{
		SourceIssueID: issueID,
		TargetIssueID: relatedIssueID,
		Type:          relType,
	}
	if err := s.relations.CreateRelation(ctx, rel); err != nil {
		return nil, err
	}

	created, err := s.relations.GetRelation(ctx, rel.ID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "relation vanished after create")
	}
	return created, nil
}

// Get returns the relation by id with both issues loaded.
func (s *RelationService) Get(ctx context.Context, id string) (*models.IssueRelation, error) {
	return s.relations.GetRelation(ctx, id)
}

// ListByIssue returns every edge the issue participates in, in stored
// orientation: callers that need edges oriented relative to the queried
// issue must swap source/target themselves.
func (s *RelationService) ListByIssue(ctx context.Context, issueID string) ([]*models.IssueRelation, error) {
	if _, err := s.issues.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.relations.ListRelationsByIssue(ctx, issueID)
}

// UpdateType changes the relation's type, re-parsing rawType exactly as
// Create does.
func (s *RelationService) UpdateType(ctx context.Context, id string, rawType any) (*models.IssueRelation, error) {
	if _, err := s.relations.GetRelation(ctx, id); err != nil {
		return nil, err
	}

	relType, err := models.ParseRelationType(rawType)
	if err != nil {
		return nil, err
	}

	if err := s.relations.UpdateRelationType(ctx, id, relType); err != nil {
		return nil, err
	}

	updated, err := s.relations.GetRelation(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "relation vanished after update")
	}
	return updated, nil
}

// Delete removes the relation by id.
func (s *RelationService) Delete(ctx context.Context, id string) error {
	if _, err := s.relations.GetRelation(ctx, id); err != nil {
		return err
	}
	return s.relations.DeleteRelation(ctx, id)
}

// DeleteByIssues removes the edge between two issues, located by
// unordered pair. Both issues must exist.
func (s *RelationService) DeleteByIssues(ctx context.Context, issueID, relatedIssueID string) error {
	if _, err := s.issues.GetIssue(ctx, issueID); err != nil {
		return err
	}
	if _, err := s.issues.GetIssue(ctx, relatedIssueID); err != nil {
		return err
	}

	rel, err := s.relations.GetRelationByPair(ctx, issueID, relatedIssueID)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return errs.NotFoundf("no relation to delete")
		}
		return err
	}
	return s.relations.DeleteRelation(ctx, rel.ID)
}
