package store

import (
	"context"

	"github.com/trackerhq/tracker/internal/models"
)

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	ProjectID string
	Scope     *string
	Status    models.IssueStatus
	Priority  models.IssuePriority
	Assignee  string
}

// ProjectStore is the persistence surface for projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ProjectExists(ctx context.Context, id string) (bool, error)
}

// UserStore is the persistence surface for user profiles.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// IssueStore is the persistence surface for issues. GetIssueByKeyScope
// treats a nil scope as its own lookup group.
type IssueStore interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	GetIssueByKeyScope(ctx context.Context, key string, scope *string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error
}

// EpicStore mirrors IssueStore for epics.
type EpicStore interface {
	CreateEpic(ctx context.Context, epic *models.Epic) error
	GetEpic(ctx context.Context, id string) (*models.Epic, error)
	GetEpicByKeyScope(ctx context.Context, key string, scope *string) (*models.Epic, error)
	ListEpics(ctx context.Context, projectID string) ([]*models.Epic, error)
	UpdateEpic(ctx context.Context, epic *models.Epic) error
	DeleteEpic(ctx context.Context, id string) error
}

// RelationStore is the persistence surface for issue relation edges.
// Edges are stored directed; GetRelationByPair matches either direction.
type RelationStore interface {
	CreateRelation(ctx context.Context, rel *models.IssueRelation) error
	GetRelation(ctx context.Context, id string) (*models.IssueRelation, error)
	GetRelationByPair(ctx context.Context, a, b string) (*models.IssueRelation, error)
	ListRelationsByIssue(ctx context.Context, issueID string) ([]*models.IssueRelation, error)
	UpdateRelationType(ctx context.Context, id string, t models.RelationType) error
	DeleteRelation(ctx context.Context, id string) error
	DeleteRelationByPair(ctx context.Context, a, b string) error
}

// MemberStore is the persistence surface for project memberships.
type MemberStore interface {
	CreateMember(ctx context.Context, m *models.ProjectMember) error
	GetMember(ctx context.Context, id string) (*models.ProjectMember, error)
	GetMemberByUserProject(ctx context.Context, userID, projectID string) (*models.ProjectMember, error)
	ListMembersByProject(ctx context.Context, projectID string) ([]*models.ProjectMember, error)
	UpdateMemberPermission(ctx context.Context, id string, p models.Permission) error
	DeleteMember(ctx context.Context, id string) error
}

// Store defines the full persistence interface for tracker.
type Store interface {
	ProjectStore
	UserStore
	IssueStore
	EpicStore
	RelationStore
	MemberStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
