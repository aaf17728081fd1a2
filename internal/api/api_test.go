package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(NewServer(s, logger).Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedProject(t *testing.T, s store.Store, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func seedUser(t *testing.T, s store.Store, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedMember(t *testing.T, s store.Store, projectID, userID string, p models.Permission) *models.ProjectMember {
	t.Helper()
	m := &models.ProjectMember{ProjectID: projectID, UserID: userID, Permission: p}
	require.NoError(t, s.CreateMember(context.Background(), m))
	return m
}

func TestProjectCRUD(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := doJSON(t, "POST", ts.URL+"/api/v1/projects", map[string]string{"name": "alpha"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Project](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alpha", created.Name)

	resp = doJSON(t, "GET", ts.URL+"/api/v1/projects/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[models.Project](t, resp)
	assert.Equal(t, created.ID, got.ID)

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/projects/"+created.ID, map[string]string{"description": "first"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.Project](t, resp)
	assert.Equal(t, "first", updated.Description)

	resp = doJSON(t, "DELETE", ts.URL+"/api/v1/projects/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, "GET", ts.URL+"/api/v1/projects/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateProjectEmptyName(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := doJSON(t, "POST", ts.URL+"/api/v1/projects", map[string]string{"name": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueEndpointsStatusMapping(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	// Missing project is a 404, not a 400.
	resp := doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": "nope", "key": "AA-1", "title": "x",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "scope": "backend", "title": "first",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issue := decodeBody[models.Issue](t, resp)
	require.NotNil(t, issue.Scope)
	assert.Equal(t, "backend", *issue.Scope)

	// Same key in the same scope is a conflict.
	resp = doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "scope": "backend", "title": "dup",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Same key without a scope is a distinct group.
	resp = doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "title": "unscoped",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "", "title": "blank key",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateIssueExplicitNullScope(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	resp := doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "scope": "backend", "title": "first",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issue := decodeBody[models.Issue](t, resp)

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/issues/"+issue.ID, map[string]any{
		"scope": nil,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.Issue](t, resp)
	assert.Nil(t, updated.Scope)

	// A request that omits scope leaves it alone.
	resp = doJSON(t, "PUT", ts.URL+"/api/v1/issues/"+issue.ID, map[string]any{
		"title": "renamed",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated = decodeBody[models.Issue](t, resp)
	assert.Nil(t, updated.Scope)
	assert.Equal(t, "renamed", updated.Title)
}

func TestUpdateIssueInvalidStatus(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	resp := doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "title": "first",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issue := decodeBody[models.Issue](t, resp)

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/issues/"+issue.ID, map[string]any{
		"status": "bogus",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelationEndpoints(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	makeIssue := func(key string) models.Issue {
		resp := doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
			"projectId": p.ID, "key": key, "title": key,
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return decodeBody[models.Issue](t, resp)
	}
	a := makeIssue("AA-1")
	b := makeIssue("AA-2")

	resp := doJSON(t, "POST", ts.URL+"/api/v1/relations", map[string]any{
		"issueId": a.ID, "relatedIssueId": a.ID, "type": "blocks",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, "POST", ts.URL+"/api/v1/relations", map[string]any{
		"issueId": a.ID, "relatedIssueId": b.ID, "type": "blocks",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rel := decodeBody[models.IssueRelation](t, resp)
	assert.Equal(t, "blocks", rel.TypeName)

	// The reversed pair is the same edge.
	resp = doJSON(t, "POST", ts.URL+"/api/v1/relations", map[string]any{
		"issueId": b.ID, "relatedIssueId": a.ID, "type": "relates_to",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, "GET", fmt.Sprintf("%s/api/v1/issues/%s/relations", ts.URL, b.ID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rels := decodeBody[[]models.IssueRelation](t, resp)
	require.Len(t, rels, 1)

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/relations/"+rel.ID, map[string]any{"type": 1}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.IssueRelation](t, resp)
	assert.Equal(t, "duplicates", updated.TypeName)

	resp = doJSON(t, "DELETE", fmt.Sprintf("%s/api/v1/issues/%s/relations/%s", ts.URL, b.ID, a.ID), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, "DELETE", fmt.Sprintf("%s/api/v1/issues/%s/relations/%s", ts.URL, b.ID, a.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMemberEndpointsAuthorization(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")
	admin := seedUser(t, s, "admin")
	plain := seedUser(t, s, "plain")
	outsider := seedUser(t, s, "outsider")
	seedMember(t, s, p.ID, admin.ID, models.PermissionAdministrator)
	seedMember(t, s, p.ID, plain.ID, models.PermissionMember)

	membersURL := ts.URL + "/api/v1/projects/" + p.ID + "/members"

	// No actor header.
	resp := doJSON(t, "POST", membersURL, map[string]any{"userId": outsider.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A plain member may not add members.
	resp = doJSON(t, "POST", membersURL, map[string]any{"userId": outsider.ID},
		map[string]string{"X-User-ID": plain.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A non-member may not either.
	resp = doJSON(t, "POST", membersURL, map[string]any{"userId": outsider.ID},
		map[string]string{"X-User-ID": outsider.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, "POST", membersURL, map[string]any{"userId": outsider.ID, "permission": "moderator"},
		map[string]string{"X-User-ID": admin.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decodeBody[models.ProjectMember](t, resp)
	assert.Equal(t, "moderator", added.PermissionName)
	require.NotNil(t, added.User)
	assert.Equal(t, outsider.ID, added.User.ID)

	// The pair is unique.
	resp = doJSON(t, "POST", membersURL, map[string]any{"userId": outsider.ID},
		map[string]string{"X-User-ID": admin.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Permission changes take an administrator; the new moderator cannot.
	resp = doJSON(t, "PUT", ts.URL+"/api/v1/members/"+added.ID, map[string]any{"permission": "administrator"},
		map[string]string{"X-User-ID": outsider.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/members/"+added.ID, map[string]any{"permission": 2},
		map[string]string{"X-User-ID": admin.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	promoted := decodeBody[models.ProjectMember](t, resp)
	assert.Equal(t, "administrator", promoted.PermissionName)
}

func TestRemoveMemberSelfAndOthers(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")
	admin := seedUser(t, s, "admin")
	plain := seedUser(t, s, "plain")
	seedMember(t, s, p.ID, admin.ID, models.PermissionAdministrator)
	m := seedMember(t, s, p.ID, plain.ID, models.PermissionMember)

	// A member cannot remove someone else.
	adminMember := seedMember(t, s, p.ID, seedUser(t, s, "third").ID, models.PermissionMember)
	resp := doJSON(t, "DELETE", ts.URL+"/api/v1/members/"+adminMember.ID, nil,
		map[string]string{"X-User-ID": plain.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A member can remove themselves.
	resp = doJSON(t, "DELETE", ts.URL+"/api/v1/members/"+m.ID, nil,
		map[string]string{"X-User-ID": plain.ID})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, "DELETE", ts.URL+"/api/v1/members/"+adminMember.ID, nil,
		map[string]string{"X-User-ID": admin.ID})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEpicEndpoints(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	resp := doJSON(t, "POST", ts.URL+"/api/v1/epics", map[string]any{
		"projectId": p.ID, "key": "EP-1", "title": "milestone",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	epic := decodeBody[models.Epic](t, resp)

	resp = doJSON(t, "POST", ts.URL+"/api/v1/epics", map[string]any{
		"projectId": p.ID, "key": "EP-1", "title": "dup",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Issues and epics keep separate key namespaces.
	resp = doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "EP-1", "title": "issue with epic key",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "PUT", ts.URL+"/api/v1/epics/"+epic.ID, map[string]any{
		"scope": "q3",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.Epic](t, resp)
	require.NotNil(t, updated.Scope)
	assert.Equal(t, "q3", *updated.Scope)

	resp = doJSON(t, "DELETE", ts.URL+"/api/v1/epics/"+epic.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestProjectPulse(t *testing.T) {
	ts, s := setupTestServer(t)
	p := seedProject(t, s, "alpha")

	resp := doJSON(t, "POST", ts.URL+"/api/v1/issues", map[string]any{
		"projectId": p.ID, "key": "AA-1", "title": "x", "assignee": "dev",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "GET", ts.URL+"/api/v1/projects/"+p.ID+"/pulse", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pulse := decodeBody[map[string]any](t, resp)
	assert.Contains(t, pulse, "total")

	resp = doJSON(t, "GET", ts.URL+"/api/v1/projects/nope/pulse", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
