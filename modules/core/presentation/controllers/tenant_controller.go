package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/httpapi"
	"github.com/complium/complium/pkg/middleware"
	"github.com/complium/complium/pkg/serrors"
)

// TenantController exposes organization provisioning. It sits outside the
// authenticated API namespace because the caller has no membership yet;
// only the bearer token is validated.
type TenantController struct {
	tenants *services.TenantService
	auth    *services.AuthService
}

func NewTenantController(tenants *services.TenantService, auth *services.AuthService) *TenantController {
	return &TenantController{tenants: tenants, auth: auth}
}

func (c *TenantController) Register(r *mux.Router) {
	r.HandleFunc("/organizations", c.create).Methods(http.MethodPost)
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type organizationResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	DBName string `json:"dbName"`
}

func (c *TenantController) create(w http.ResponseWriter, r *http.Request) {
	actorID, err := c.auth.Authenticate(r.Context(), middleware.BearerToken(r))
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}

	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteServiceError(w, serrors.NewValidation("malformed request body"))
		return
	}

	org, desc, err := c.tenants.CreateTenant(r.Context(), actorID, req.Name)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusCreated, &organizationResponse{
		ID:     org.ID().String(),
		Name:   org.Name(),
		DBName: desc.DBName(),
	})
}
