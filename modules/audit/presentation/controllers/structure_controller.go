package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/audit/services"
	"github.com/complium/complium/pkg/httpapi"
	"github.com/complium/complium/pkg/serrors"
)

// StructureController exposes the tenant's sites, processes and sprints.
type StructureController struct {
	sites     *services.SiteService
	processes *services.ProcessService
	sprints   *services.SprintService
}

func NewStructureController(
	sites *services.SiteService,
	processes *services.ProcessService,
	sprints *services.SprintService,
) *StructureController {
	return &StructureController{
		sites:     sites,
		processes: processes,
		sprints:   sprints,
	}
}

func (c *StructureController) Register(r *mux.Router) {
	r.HandleFunc("/sites", c.createSite).Methods(http.MethodPost)
	r.HandleFunc("/sites", c.listSites).Methods(http.MethodGet)
	r.HandleFunc("/sites/{id}", c.getSite).Methods(http.MethodGet)
	r.HandleFunc("/sites/{id}", c.deleteSite).Methods(http.MethodDelete)
	r.HandleFunc("/sites/{id}/processes", c.createProcess).Methods(http.MethodPost)
	r.HandleFunc("/sites/{id}/processes", c.listProcesses).Methods(http.MethodGet)
	r.HandleFunc("/processes/{id}", c.getProcess).Methods(http.MethodGet)
	r.HandleFunc("/processes/{id}", c.deleteProcess).Methods(http.MethodDelete)
	r.HandleFunc("/processes/{id}/sprints", c.createSprint).Methods(http.MethodPost)
	r.HandleFunc("/processes/{id}/sprints", c.listSprints).Methods(http.MethodGet)
	r.HandleFunc("/sprints/{id}", c.getSprint).Methods(http.MethodGet)
	r.HandleFunc("/sprints/{id}", c.deleteSprint).Methods(http.MethodDelete)
}

type nameRequest struct {
	Name string `json:"name"`
}

type createSprintRequest struct {
	Name     string     `json:"name"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

type siteResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type processResponse struct {
	ID        uuid.UUID `json:"id"`
	SiteID    uuid.UUID `json:"siteId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type sprintResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProcessID uuid.UUID  `json:"processId"`
	Name      string     `json:"name"`
	StartsAt  *time.Time `json:"startsAt"`
	EndsAt    *time.Time `json:"endsAt"`
}

func toSiteResponse(s *site.Site) *siteResponse {
	return &siteResponse{ID: s.ID(), Name: s.Name(), CreatedAt: s.CreatedAt()}
}

func toProcessResponse(p *process.Process) *processResponse {
	return &processResponse{ID: p.ID(), SiteID: p.SiteID(), Name: p.Name(), CreatedAt: p.CreatedAt()}
}

func toSprintResponse(s *sprint.Sprint) *sprintResponse {
	return &sprintResponse{
		ID:        s.ID(),
		ProcessID: s.ProcessID(),
		Name:      s.Name(),
		StartsAt:  s.StartsAt(),
		EndsAt:    s.EndsAt(),
	}
}

func (c *StructureController) createSite(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}
	created, err := c.sites.Create(r.Context(), req.Name)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toSiteResponse(created))
}

func (c *StructureController) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := c.sites.List(r.Context())
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	out := make([]*siteResponse, 0, len(sites))
	for _, s := range sites {
		out = append(out, toSiteResponse(s))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *StructureController) getSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	found, err := c.sites.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSiteResponse(found))
}

func (c *StructureController) deleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if err := c.sites.Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *StructureController) createProcess(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}
	created, err := c.processes.Create(r.Context(), siteID, req.Name)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toProcessResponse(created))
}

func (c *StructureController) listProcesses(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	processes, err := c.processes.ListBySite(r.Context(), siteID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	out := make([]*processResponse, 0, len(processes))
	for _, p := range processes {
		out = append(out, toProcessResponse(p))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *StructureController) getProcess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	found, err := c.processes.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toProcessResponse(found))
}

func (c *StructureController) deleteProcess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if err := c.processes.Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *StructureController) createSprint(w http.ResponseWriter, r *http.Request) {
	processID, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	var req createSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}
	created, err := c.sprints.Create(r.Context(), processID, req.Name, req.StartsAt, req.EndsAt)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toSprintResponse(created))
}

func (c *StructureController) listSprints(w http.ResponseWriter, r *http.Request) {
	processID, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	sprints, err := c.sprints.ListByProcess(r.Context(), processID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	out := make([]*sprintResponse, 0, len(sprints))
	for _, s := range sprints {
		out = append(out, toSprintResponse(s))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *StructureController) getSprint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	found, err := c.sprints.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSprintResponse(found))
}

func (c *StructureController) deleteSprint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if err := c.sprints.Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}
