package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type filtererStub struct {
	items      []models.Grievance
	lastFilter dto.GrievanceFilter
	calls      int
}

func (f *filtererStub) Filter(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter) ([]models.Grievance, error) {
	f.calls++
	f.lastFilter = filter
	return f.items, nil
}

func exportFixture() *filtererStub {
	resolution := "Repaired"
	return &filtererStub{items: []models.Grievance{
		{
			ID:          "g-1",
			AuthorID:    "user-1",
			Subject:     "Leaking roof",
			Category:    models.CategoryInfrastructure,
			Priority:    models.PriorityHigh,
			Status:      models.StatusResolved,
			Resolution:  &resolution,
			Attachments: models.Attachments{{FileName: "roof.jpg"}},
			CreatedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func TestExportServiceCSV(t *testing.T) {
	stub := exportFixture()
	svc := NewExportService(stub, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	file, err := svc.ExportGrievances(context.Background(), adminClaims(), dto.GrievanceFilter{Status: "resolved"}, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "grievances_20240601_100000.csv", file.Filename)
	assert.Equal(t, "resolved", stub.lastFilter.Status)

	records, err := csv.NewReader(bytes.NewReader(file.Payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, grievanceExportHeaders, records[0])
	assert.Equal(t, "Repaired", records[1][8])
	assert.Equal(t, "1", records[1][9])
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(exportFixture(), zap.NewNop(), nil, nil)
	file, err := svc.ExportGrievances(context.Background(), adminClaims(), dto.GrievanceFilter{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))
}

func TestExportServiceRejectsNonAdminAndUnknownFormat(t *testing.T) {
	stub := exportFixture()
	svc := NewExportService(stub, zap.NewNop(), nil, nil)

	_, err := svc.ExportGrievances(context.Background(), userClaims("user-1"), dto.GrievanceFilter{}, "csv")
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ExportGrievances(context.Background(), adminClaims(), dto.GrievanceFilter{}, "xlsx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, stub.calls)
}
