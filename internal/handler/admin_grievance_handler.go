package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type grievanceExporter interface {
	ExportGrievances(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter, format string) (*service.ExportFile, error)
}

// AdminGrievanceHandler exposes administrator-only grievance endpoints.
// Routes are additionally guarded by RequireRoles; the services check again.
type AdminGrievanceHandler struct {
	lifecycle grievanceLifecycle
	queries   grievanceQueries
	exporter  grievanceExporter
}

// NewAdminGrievanceHandler constructs the handler.
func NewAdminGrievanceHandler(lifecycle grievanceLifecycle, queries grievanceQueries, exporter grievanceExporter) *AdminGrievanceHandler {
	return &AdminGrievanceHandler{lifecycle: lifecycle, queries: queries, exporter: exporter}
}

// Transition godoc
// @Summary Update grievance status, resolution and assignee
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.TransitionGrievanceRequest true "Lifecycle update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/grievances/{id} [put]
func (h *AdminGrievanceHandler) Transition(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.TransitionGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grievance update payload"))
		return
	}
	grievance, err := h.lifecycle.Transition(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievance)
}

// Delete godoc
// @Summary Delete a grievance and its comments
// @Tags Admin
// @Param id path string true "Grievance ID"
// @Success 204
// @Router /admin/grievances/{id} [delete]
func (h *AdminGrievanceHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UsersWithGrievances godoc
// @Summary Authors with their grievance counts
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/users-with-grievances [get]
func (h *AdminGrievanceHandler) UsersWithGrievances(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	summaries, err := h.queries.UsersWithGrievances(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries)
}

// Export godoc
// @Summary Export filtered grievances
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param priority query string false "Priority filter"
// @Success 200 {file} binary
// @Router /admin/grievances/export [get]
func (h *AdminGrievanceHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var filter dto.GrievanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	file, err := h.exporter.ExportGrievances(c.Request.Context(), claims, filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
