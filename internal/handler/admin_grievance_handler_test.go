package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type exporterMock struct {
	filter dto.GrievanceFilter
	format string
	err    error
}

func (m *exporterMock) ExportGrievances(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter, format string) (*service.ExportFile, error) {
	m.filter = filter
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "grievances_20240601_100000.csv", ContentType: "text/csv", Payload: []byte("ID,Subject\n")}, nil
}

func TestAdminGrievanceHandlerTransition(t *testing.T) {
	svc := &lifecycleMock{}
	h := NewAdminGrievanceHandler(svc, &queriesMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodPut, "/admin/grievances/g-1", []byte(`{"status":"resolved","resolution":"Repaired"}`))
	c.Params = gin.Params{{Key: "id", Value: "g-1"}}
	asAdmin(c)
	h.Transition(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", svc.transitionReq.Status)
	require.NotNil(t, svc.transitionReq.Resolution)
	assert.Equal(t, "Repaired", *svc.transitionReq.Resolution)
	assert.Nil(t, svc.transitionReq.AssignedTo)
	assert.Contains(t, w.Body.String(), `"status":"resolved"`)
}

func TestAdminGrievanceHandlerTransitionErrors(t *testing.T) {
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{}, &exporterMock{})
	c, w := newGinContext(http.MethodPut, "/admin/grievances/g-1", []byte(`not-json`))
	asAdmin(c)
	h.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	forbidden := appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	h = NewAdminGrievanceHandler(&lifecycleMock{err: forbidden}, &queriesMock{}, &exporterMock{})
	c, w = newGinContext(http.MethodPut, "/admin/grievances/g-1", []byte(`{"status":"resolved"}`))
	asUser(c)
	h.Transition(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "administrator role required", decodeError(t, w).Message)
}

func TestAdminGrievanceHandlerDelete(t *testing.T) {
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{}, &exporterMock{})
	c, w := newGinContext(http.MethodDelete, "/admin/grievances/g-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "g-1"}}
	asAdmin(c)
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	h = NewAdminGrievanceHandler(&lifecycleMock{err: appErrors.Clone(appErrors.ErrNotFound, "grievance not found")}, &queriesMock{}, &exporterMock{})
	c, w = newGinContext(http.MethodDelete, "/admin/grievances/g-9", nil)
	asAdmin(c)
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminGrievanceHandlerUsersWithGrievances(t *testing.T) {
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{}, &exporterMock{})
	c, w := newGinContext(http.MethodGet, "/admin/users-with-grievances", nil)
	asAdmin(c)
	h.UsersWithGrievances(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"grievanceCount":2`)
}

func TestAdminGrievanceHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{}, exporter)

	c, w := newGinContext(http.MethodGet, "/admin/grievances/export?format=csv&status=resolved", nil)
	asAdmin(c)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "resolved", exporter.filter.Status)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="grievances_20240601_100000.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID,Subject\n", w.Body.String())
}

func TestAdminGrievanceHandlerExportRejectsFormat(t *testing.T) {
	invalid := appErrors.WithDetails(appErrors.ErrValidation, "unsupported export format", appErrors.Field("format", "must be csv or pdf"))
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{}, &exporterMock{err: invalid})

	c, w := newGinContext(http.MethodGet, "/admin/grievances/export?format=xlsx", nil)
	asAdmin(c)
	h.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestAdminGrievanceHandlerRequiresIdentity(t *testing.T) {
	h := NewAdminGrievanceHandler(&lifecycleMock{}, &queriesMock{err: errors.New("unreachable")}, &exporterMock{})
	c, w := newGinContext(http.MethodGet, "/admin/users-with-grievances", nil)
	h.UsersWithGrievances(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}
