package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/trackerhq/tracker/internal/errs"
	"github.com/trackerhq/tracker/internal/health"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/service"
	"github.com/trackerhq/tracker/internal/store"
)

// Server provides the REST API handlers. It maps the service layer's
// error kinds to status codes: NotFound 404, Conflict 409, BadRequest
// 400, Forbidden 403, anything else 500.
type Server struct {
	store     store.Store
	issues    *service.IssueService
	epics     *service.EpicService
	relations *service.RelationService
	members   *service.MemberService
	scorer    *health.Scorer
	logger    *slog.Logger
}

// NewServer creates a new API server over the given store.
func NewServer(s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     s,
		issues:    service.NewIssueService(s, s),
		epics:     service.NewEpicService(s, s),
		relations: service.NewRelationService(s, s),
		members:   service.NewMemberService(s, s, s),
		scorer:    health.NewScorer(),
		logger:    logger,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}", s.updateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)
	mux.HandleFunc("GET /api/v1/projects/{id}/pulse", s.projectPulse)

	mux.HandleFunc("GET /api/v1/projects/{id}/members", s.listMembers)
	mux.HandleFunc("POST /api/v1/projects/{id}/members", s.addMember)
	mux.HandleFunc("PUT /api/v1/members/{id}", s.updateMemberPermission)
	mux.HandleFunc("DELETE /api/v1/members/{id}", s.removeMember)

	mux.HandleFunc("POST /api/v1/users", s.createUser)
	mux.HandleFunc("GET /api/v1/users/{id}", s.getUser)

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues", s.createIssue)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/v1/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)

	mux.HandleFunc("GET /api/v1/issues/{id}/relations", s.listIssueRelations)
	mux.HandleFunc("DELETE /api/v1/issues/{id}/relations/{relatedId}", s.deleteRelationByIssues)
	mux.HandleFunc("POST /api/v1/relations", s.createRelation)
	mux.HandleFunc("GET /api/v1/relations/{id}", s.getRelation)
	mux.HandleFunc("PUT /api/v1/relations/{id}", s.updateRelation)
	mux.HandleFunc("DELETE /api/v1/relations/{id}", s.deleteRelation)

	mux.HandleFunc("GET /api/v1/epics", s.listEpics)
	mux.HandleFunc("POST /api/v1/epics", s.createEpic)
	mux.HandleFunc("GET /api/v1/epics/{id}", s.getEpic)
	mux.HandleFunc("PUT /api/v1/epics/{id}", s.updateEpic)
	mux.HandleFunc("DELETE /api/v1/epics/{id}", s.deleteEpic)

	return s.logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError renders a service-layer error with its mapped status
// code. Internal errors are logged with full detail but masked in the
// response body.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": errs.Message(err)})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// actorID identifies the requesting user. Authentication is upstream of
// this service; the header stands in for the session principal.
func actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if p.Name == "" {
		writeBadRequest(w, "project name must not be empty")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if v, ok := patch["name"].(string); ok && v != "" {
		existing.Name = v
	}
	if v, ok := patch["description"].(string); ok {
		existing.Description = v
	}

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectPulse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{ProjectID: id})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	epics, err := s.store.ListEpics(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scorer.Score(issues, epics))
}

// --- Users ---

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if u.Name == "" || u.Email == "" {
		writeBadRequest(w, "user name and email must not be empty")
		return
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- Members ---

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.ListMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	actor := actorID(r)
	if actor == "" {
		writeBadRequest(w, "missing X-User-ID header")
		return
	}
	// The actor's own permission comes from the store, never from the
	// request body.
	if err := s.members.RequirePermission(r.Context(), actor, projectID, models.PermissionModerator); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req struct {
		UserID     string `json:"userId"`
		Permission any    `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	permission := models.PermissionMember
	if req.Permission != nil {
		var err error
		permission, err = models.ParsePermission(req.Permission)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	m, err := s.members.AddMember(r.Context(), projectID, req.UserID, permission)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateMemberPermission(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")

	m, err := s.store.GetMember(r.Context(), memberID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	actor := actorID(r)
	if actor == "" {
		writeBadRequest(w, "missing X-User-ID header")
		return
	}
	if err := s.members.RequirePermission(r.Context(), actor, m.ProjectID, models.PermissionAdministrator); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req struct {
		Permission any `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	permission, err := models.ParsePermission(req.Permission)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	updated, err := s.members.UpdatePermission(r.Context(), memberID, permission)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")

	m, err := s.store.GetMember(r.Context(), memberID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	actor := actorID(r)
	if actor == "" {
		writeBadRequest(w, "missing X-User-ID header")
		return
	}
	// Members may leave on their own; removing anyone else takes moderator.
	if actor != m.UserID {
		if err := s.members.RequirePermission(r.Context(), actor, m.ProjectID, models.PermissionModerator); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	if err := s.members.RemoveMember(r.Context(), memberID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IssueListFilter{
		ProjectID: q.Get("project"),
		Status:    models.IssueStatus(q.Get("status")),
		Priority:  models.IssuePriority(q.Get("priority")),
		Assignee:  q.Get("assignee"),
	}
	if q.Has("scope") {
		scope := q.Get("scope")
		filter.Scope = &scope
	}
	issues, err := s.issues.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string  `json:"projectId"`
		Key         string  `json:"key"`
		Scope       *string `json:"scope"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Priority    string  `json:"priority"`
		Assignee    string  `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	issue, err := s.issues.Create(r.Context(), service.CreateIssueInput{
		ProjectID:   req.ProjectID,
		Key:         req.Key,
		Scope:       req.Scope,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.IssuePriority(req.Priority),
		Assignee:    req.Assignee,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.issues.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// issuePatchFrom builds a service patch from a decoded JSON object. The
// map form preserves the difference between a key that is absent and one
// set to null, which the scope field depends on.
func issuePatchFrom(body map[string]any) (service.IssuePatch, error) {
	var p service.IssuePatch

	if v, ok := body["key"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("key must be a string")
		}
		p.Key = &str
	}
	if v, ok := body["scope"]; ok {
		p.SetScope = true
		if v != nil {
			str, ok := v.(string)
			if !ok {
				return p, errs.BadRequestf("scope must be a string or null")
			}
			p.Scope = &str
		}
	}
	if v, ok := body["title"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("title must be a string")
		}
		p.Title = &str
	}
	if v, ok := body["description"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("description must be a string")
		}
		p.Description = &str
	}
	if v, ok := body["status"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("status must be a string")
		}
		status := models.IssueStatus(str)
		switch status {
		case models.IssueStatusOpen, models.IssueStatusInProgress, models.IssueStatusDone, models.IssueStatusClosed:
		default:
			return p, errs.BadRequestf("invalid status: %s", str)
		}
		p.Status = &status
	}
	if v, ok := body["priority"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("priority must be a string")
		}
		priority := models.IssuePriority(str)
		switch priority {
		case models.IssuePriorityLow, models.IssuePriorityMedium, models.IssuePriorityHigh:
		default:
			return p, errs.BadRequestf("invalid priority: %s", str)
		}
		p.Priority = &priority
	}
	if v, ok := body["assignee"]; ok {
		str, ok := v.(string)
		if !ok {
			return p, errs.BadRequestf("assignee must be a string")
		}
		p.Assignee = &str
	}
	return p, nil
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	patch, err := issuePatchFrom(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	issue, err := s.issues.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.issues.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Relations ---

func (s *Server) listIssueRelations(w http.ResponseWriter, r *http.Request) {
	rels, err := s.relations.ListByIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

func (s *Server) createRelation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssueID        string `json:"issueId"`
		RelatedIssueID string `json:"relatedIssueId"`
		Type           any    `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	rel, err := s.relations.Create(r.Context(), req.IssueID, req.RelatedIssueID, req.Type)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) getRelation(w http.ResponseWriter, r *http.Request) {
	rel, err := s.relations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) updateRelation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type any `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	rel, err := s.relations.UpdateType(r.Context(), r.PathValue("id"), req.Type)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) deleteRelation(w http.ResponseWriter, r *http.Request) {
	if err := s.relations.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteRelationByIssues(w http.ResponseWriter, r *http.Request) {
	err := s.relations.DeleteByIssues(r.Context(), r.PathValue("id"), r.PathValue("relatedId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Epics ---

func (s *Server) listEpics(w http.ResponseWriter, r *http.Request) {
	epics, err := s.epics.List(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, epics)
}

func (s *Server) createEpic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string  `json:"projectId"`
		Key         string  `json:"key"`
		Scope       *string `json:"scope"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	epic, err := s.epics.Create(r.Context(), service.CreateEpicInput{
		ProjectID:   req.ProjectID,
		Key:         req.Key,
		Scope:       req.Scope,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, epic)
}

func (s *Server) getEpic(w http.ResponseWriter, r *http.Request) {
	epic, err := s.epics.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) updateEpic(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	var patch service.EpicPatch
	if v, ok := body["key"]; ok {
		str, ok := v.(string)
		if !ok {
			writeBadRequest(w, "key must be a string")
			return
		}
		patch.Key = &str
	}
	if v, ok := body["scope"]; ok {
		patch.SetScope = true
		if v != nil {
			str, ok := v.(string)
			if !ok {
				writeBadRequest(w, "scope must be a string or null")
				return
			}
			patch.Scope = &str
		}
	}
	if v, ok := body["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := body["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := body["status"].(string); ok {
		status := models.IssueStatus(v)
		patch.Status = &status
	}

	epic, err := s.epics.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) deleteEpic(w http.ResponseWriter, r *http.Request) {
	if err := s.epics.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
