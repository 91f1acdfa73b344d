package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/services"
	"github.com/complium/complium/pkg/httpapi"
	"github.com/complium/complium/pkg/serrors"
)

// IssueController exposes the issue workflow under the authenticated API
// namespace.
type IssueController struct {
	issues *services.IssueService
}

func NewIssueController(issues *services.IssueService) *IssueController {
	return &IssueController{issues: issues}
}

func (c *IssueController) Register(r *mux.Router) {
	r.HandleFunc("/issues", c.create).Methods(http.MethodPost)
	r.HandleFunc("/issues/{id}", c.get).Methods(http.MethodGet)
	r.HandleFunc("/issues/{id}", c.update).Methods(http.MethodPatch)
	r.HandleFunc("/issues/{id}", c.delete).Methods(http.MethodDelete)
	r.HandleFunc("/processes/{id}/issues", c.listByProcess).Methods(http.MethodGet)
	r.HandleFunc("/processes/{id}/backlog", c.listBacklog).Methods(http.MethodGet)
	r.HandleFunc("/sprints/{id}/issues", c.listBySprint).Methods(http.MethodGet)
}

type createIssueRequest struct {
	ProcessID   uuid.UUID  `json:"processId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	SprintID    *uuid.UUID `json:"sprintId"`
	Position    int        `json:"position"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
	Tags        []string   `json:"tags"`
	Issuer      *uuid.UUID `json:"issuer"`
	Verifier    *uuid.UUID `json:"verifier"`
	Deadline    *time.Time `json:"deadline"`
}

// updateIssueRequest distinguishes an absent sprintId (leave alone) from an
// explicit null (move to backlog), so the field decodes as raw JSON.
type updateIssueRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *issue.Status   `json:"status"`
	SprintID    json.RawMessage `json:"sprintId"`
	Position    *int            `json:"position"`
	AssigneeID  *uuid.UUID      `json:"assigneeId"`
	Tags        []string        `json:"tags"`
	Issuer      *uuid.UUID      `json:"issuer"`
	Verifier    *uuid.UUID      `json:"verifier"`
	Deadline    *time.Time      `json:"deadline"`
}

func (req *updateIssueRequest) toPatch() (issue.Patch, error) {
	patch := issue.Patch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Position:    req.Position,
		AssigneeID:  req.AssigneeID,
		Tags:        req.Tags,
		Issuer:      req.Issuer,
		Verifier:    req.Verifier,
		Deadline:    req.Deadline,
	}
	if len(req.SprintID) > 0 {
		if string(req.SprintID) == "null" {
			patch.Sprint = &issue.SprintChange{}
		} else {
			var sprintID uuid.UUID
			if err := json.Unmarshal(req.SprintID, &sprintID); err != nil {
				return issue.Patch{}, serrors.NewValidation("sprintId must be a UUID or null")
			}
			patch.Sprint = &issue.SprintChange{SprintID: &sprintID}
		}
	}
	return patch, nil
}

func (c *IssueController) create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}

	created, err := c.issues.Create(r.Context(), services.IssueCreateParams{
		ProcessID:   req.ProcessID,
		Title:       req.Title,
		Description: req.Description,
		SprintID:    req.SprintID,
		Position:    req.Position,
		AssigneeID:  req.AssigneeID,
		Tags:        req.Tags,
		Issuer:      req.Issuer,
		Verifier:    req.Verifier,
		Deadline:    req.Deadline,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, created)
}

func (c *IssueController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	found, err := c.issues.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, found)
}

func (c *IssueController) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	var req updateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}

	updated, err := c.issues.Update(r.Context(), id, patch)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, updated)
}

func (c *IssueController) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if err := c.issues.Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *IssueController) listByProcess(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, c.issues.ListByProcess)
}

func (c *IssueController) listBacklog(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, c.issues.ListBacklog)
}

func (c *IssueController) listBySprint(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, c.issues.ListBySprint)
}

func (c *IssueController) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, id uuid.UUID) ([]*issue.Issue, error),
) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	issues, err := fetch(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if issues == nil {
		issues = []*issue.Issue{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, issues)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, serrors.NewValidation("id must be a UUID")
	}
	return id, nil
}
