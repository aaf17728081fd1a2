package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { s.Close() })
	return s
}

func seedProject(t *testing.T, s *store.SQLiteStore, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func seedUser(t *testing.T, s *store.SQLiteStore, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedIssue(t *testing.T, svc *IssueService, projectID, key string, scope *string) *models.Issue {
	t.Helper()
	issue, err := svc.Create(context.Background(), CreateIssueInput{
		ProjectID: projectID,
		Key:       key,
		Scope:     scope,
		Title:     "issue " + key,
	})
	require.NoError(t, err)
	return issue
}

func strptr(s string) *string { return &s }
