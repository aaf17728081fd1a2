package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
//
// The schema carries the authoritative uniqueness constraints: (key, scope)
// for issues and epics, the unordered issue pair for relation edges, and
// (user, project) for memberships. Service-level checks are advisory; a
// constraint violation surfacing here is translated to a Conflict so two
// requests racing past the advisory check still fail correctly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite exposes constraint errors as strings only.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isCheckViolation reports whether err is a SQLite CHECK constraint failure.
func isCheckViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

// scopeLabel names a scope for error messages; a nil scope reads as
// "no assigned scope".
func scopeLabel(scope *string) string {
	if scope == nil {
		return "no assigned scope"
	}
	return fmt.Sprintf("scope %q", *scope)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err, fmt.Sprintf("project %q already exists", p.Name))
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.UpdatedAt, p.ID,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err, fmt.Sprintf("project %q already exists", p.Name))
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("project not found: %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("project not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ProjectExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM projects WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("project exists: %w", err)
	}
	return exists == 1, nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err, fmt.Sprintf("user with email %q already exists", u.Email))
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("user not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UserExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists == 1, nil
}

// --- Issues ---

const issueColumns = `id, project_id, key, scope, title, description, status, priority, assignee, created_at, updated_at, closed_at`

func scanIssue(row interface{ Scan(...any) error }) (*models.Issue, error) {
	issue := &models.Issue{}
	var status, priority string
	var scope sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(&issue.ID, &issue.ProjectID, &issue.Key, &scope,
		&issue.Title, &issue.Description, &status, &priority, &issue.Assignee,
		&issue.CreatedAt, &issue.UpdatedAt, &closedAt)
	if err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	if scope.Valid {
		issue.Scope = &scope.String
	}
	if closedAt.Valid {
		issue.ClosedAt = &closedAt.Time
	}
	return issue, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, project_id, key, scope, title, description, status, priority, assignee, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ProjectID, issue.Key, issue.Scope, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), issue.Assignee,
		issue.CreatedAt, issue.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err,
			fmt.Sprintf("issue key %q already exists in %s", issue.Key, scopeLabel(issue.Scope)))
	}
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("issue not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssueByKeyScope(ctx context.Context, key string, scope *string) (*models.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE key = ? AND ifnull(scope, '') = ifnull(?, '')`,
		key, scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("no issue with key %q in %s", key, scopeLabel(scope))
	}
	if err != nil {
		return nil, fmt.Errorf("get issue by key and scope: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Scope != nil {
		conditions = append(conditions, "ifnull(scope, '') = ?")
		args = append(args, *filter.Scope)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.Assignee != "" {
		conditions = append(conditions, "assignee = ?")
		args = append(args, filter.Assignee)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY
		CASE status WHEN 'open' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'done' THEN 2 WHEN 'closed' THEN 3 ELSE 4 END,
		CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 WHEN 'low' THEN 2 ELSE 3 END,
		created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET key=?, scope=?, title=?, description=?, status=?, priority=?, assignee=?, updated_at=?, closed_at=?
		WHERE id=?`,
		issue.Key, issue.Scope, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), issue.Assignee,
		issue.UpdatedAt, issue.ClosedAt, issue.ID,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err,
			fmt.Sprintf("issue key %q already exists in %s", issue.Key, scopeLabel(issue.Scope)))
	}
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("issue not found: %s", issue.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("issue not found: %s", id)
	}
	return nil
}

// --- Epics ---

const epicColumns = `id, project_id, key, scope, title, description, status, created_at, updated_at`

func scanEpic(row interface{ Scan(...any) error }) (*models.Epic, error) {
	epic := &models.Epic{}
	var status string
	var scope sql.NullString

	err := row.Scan(&epic.ID, &epic.ProjectID, &epic.Key, &scope,
		&epic.Title, &epic.Description, &status, &epic.CreatedAt, &epic.UpdatedAt)
	if err != nil {
		return nil, err
	}

	epic.Status = models.IssueStatus(status)
	if scope.Valid {
		epic.Scope = &scope.String
	}
	return epic, nil
}

func (s *SQLiteStore) CreateEpic(ctx context.Context, epic *models.Epic) error {
	if epic.ID == "" {
		epic.ID = newULID()
	}
	now := time.Now().UTC()
	epic.CreatedAt = now
	epic.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO epics (id, project_id, key, scope, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		epic.ID, epic.ProjectID, epic.Key, epic.Scope, epic.Title, epic.Description,
		string(epic.Status), epic.CreatedAt, epic.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err,
			fmt.Sprintf("epic key %q already exists in %s", epic.Key, scopeLabel(epic.Scope)))
	}
	if err != nil {
		return fmt.Errorf("create epic: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEpic(ctx context.Context, id string) (*models.Epic, error) {
	epic, err := scanEpic(s.db.QueryRowContext(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("epic not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get epic: %w", err)
	}
	return epic, nil
}

func (s *SQLiteStore) GetEpicByKeyScope(ctx context.Context, key string, scope *string) (*models.Epic, error) {
	epic, err := scanEpic(s.db.QueryRowContext(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE key = ? AND ifnull(scope, '') = ifnull(?, '')`,
		key, scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("no epic with key %q in %s", key, scopeLabel(scope))
	}
	if err != nil {
		return nil, fmt.Errorf("get epic by key and scope: %w", err)
	}
	return epic, nil
}

func (s *SQLiteStore) ListEpics(ctx context.Context, projectID string) ([]*models.Epic, error) {
	query := `SELECT ` + epicColumns + ` FROM epics`
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var epics []*models.Epic
	for rows.Next() {
		epic, err := scanEpic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		epics = append(epics, epic)
	}
	return epics, rows.Err()
}

func (s *SQLiteStore) UpdateEpic(ctx context.Context, epic *models.Epic) error {
	epic.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE epics SET key=?, scope=?, title=?, description=?, status=?, updated_at=? WHERE id=?`,
		epic.Key, epic.Scope, epic.Title, epic.Description, string(epic.Status), epic.UpdatedAt, epic.ID,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err,
			fmt.Sprintf("epic key %q already exists in %s", epic.Key, scopeLabel(epic.Scope)))
	}
	if err != nil {
		return fmt.Errorf("update epic: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("epic not found: %s", epic.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteEpic(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM epics WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete epic: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("epic not found: %s", id)
	}
	return nil
}

// --- Issue relations ---

func scanRelation(row interface{ Scan(...any) error }) (*models.IssueRelation, error) {
	rel := &models.IssueRelation{}
	var relType int
	err := row.Scan(&rel.ID, &rel.SourceIssueID, &rel.TargetIssueID, &relType, &rel.CreatedAt)
	if err != nil {
		return nil, err
	}
	rel.Type = models.RelationType(relType)
	rel.TypeName = rel.Type.String()
	return rel, nil
}

func (s *SQLiteStore) CreateRelation(ctx context.Context, rel *models.IssueRelation) error {
	if rel.ID == "" {
		rel.ID = newULID()
	}
	rel.CreatedAt = time.Now().UTC()
	rel.TypeName = rel.Type.String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issue_relations (id, source_issue_id, target_issue_id, type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rel.ID, rel.SourceIssueID, rel.TargetIssueID, int(rel.Type), rel.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err, "issues are already related")
	}
	if isCheckViolation(err) {
		return errs.Wrap(errs.BadRequest, err, "cannot relate an issue to itself")
	}
	if err != nil {
		return fmt.Errorf("create relation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRelation(ctx context.Context, id string) (*models.IssueRelation, error) {
	rel, err := scanRelation(s.db.QueryRowContext(ctx,
		`SELECT id, source_issue_id, target_issue_id, type, created_at
		FROM issue_relations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("relation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}

	if rel.Source, err = s.GetIssue(ctx, rel.SourceIssueID); err != nil {
		return nil, fmt.Errorf("load relation source: %w", err)
	}
	if rel.Target, err = s.GetIssue(ctx, rel.TargetIssueID); err != nil {
		return nil, fmt.Errorf("load relation target: %w", err)
	}
	return rel, nil
}

func (s *SQLiteStore) GetRelationByPair(ctx context.Context, a, b string) (*models.IssueRelation, error) {
	rel, err := scanRelation(s.db.QueryRowContext(ctx,
		`SELECT id, source_issue_id, target_issue_id, type, created_at
		FROM issue_relations
		WHERE (source_issue_id = ? AND target_issue_id = ?)
		   OR (source_issue_id = ? AND target_issue_id = ?)`,
		a, b, b, a))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("no relation between issues %s and %s", a, b)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation by pair: %w", err)
	}
	return rel, nil
}

// ListRelationsByIssue returns every edge the issue participates in, as
// stored: edges are not reoriented relative to the queried issue.
func (s *SQLiteStore) ListRelationsByIssue(ctx context.Context, issueID string) ([]*models.IssueRelation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_issue_id, target_issue_id, type, created_at
		FROM issue_relations
		WHERE source_issue_id = ? OR target_issue_id = ?
		ORDER BY created_at`, issueID, issueID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []*models.IssueRelation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func (s *SQLiteStore) UpdateRelationType(ctx context.Context, id string, t models.RelationType) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE issue_relations SET type = ? WHERE id = ?", int(t), id)
	if err != nil {
		return fmt.Errorf("update relation type: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("relation not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteRelation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issue_relations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete relation: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("relation not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteRelationByPair(ctx context.Context, a, b string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM issue_relations
		WHERE (source_issue_id = ? AND target_issue_id = ?)
		   OR (source_issue_id = ? AND target_issue_id = ?)`,
		a, b, b, a)
	if err != nil {
		return fmt.Errorf("delete relation by pair: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("no relation between issues %s and %s", a, b)
	}
	return nil
}

// --- Project members ---

const memberColumns = `m.id, m.project_id, m.user_id, m.permission, m.created_at, u.id, u.name, u.email, u.created_at`

func scanMember(row interface{ Scan(...any) error }) (*models.ProjectMember, error) {
	m := &models.ProjectMember{User: &models.User{}}
	var permission int
	err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &permission, &m.CreatedAt,
		&m.User.ID, &m.User.Name, &m.User.Email, &m.User.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Permission = models.Permission(permission)
	m.PermissionName = m.Permission.String()
	return m, nil
}

func (s *SQLiteStore) CreateMember(ctx context.Context, m *models.ProjectMember) error {
	if m.ID == "" {
		m.ID = newULID()
	}
	m.CreatedAt = time.Now().UTC()
	m.PermissionName = m.Permission.String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (id, project_id, user_id, permission, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.UserID, int(m.Permission), m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errs.Wrap(errs.Conflict, err,
			fmt.Sprintf("user %s is already a member of project %s", m.UserID, m.ProjectID))
	}
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMember(ctx context.Context, id string) (*models.ProjectMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("membership not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) GetMemberByUserProject(ctx context.Context, userID, projectID string) (*models.ProjectMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.user_id = ? AND m.project_id = ?`, userID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("user %s is not a member of project %s", userID, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get member by user and project: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListMembersByProject(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ? ORDER BY m.permission DESC, u.name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*models.ProjectMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) UpdateMemberPermission(ctx context.Context, id string, p models.Permission) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE project_members SET permission = ? WHERE id = ?", int(p), id)
	if err != nil {
		return fmt.Errorf("update member permission: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("membership not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteMember(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM project_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("membership not found: %s", id)
	}
	return nil
}
