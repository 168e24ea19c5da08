package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/export"
)

// Export formats supported by ExportService.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type grievanceFilterer interface {
	Filter(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter) ([]models.Grievance, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

var grievanceExportHeaders = []string{"ID", "Submitted", "Author", "Subject", "Category", "Priority", "Status", "Assigned To", "Resolution", "Attachments"}

// ExportService renders the admin grievance listing as CSV or PDF.
type ExportService struct {
	grievances grievanceFilterer
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(grievances grievanceFilterer, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grievances: grievances, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ExportGrievances renders every grievance matching filter.
func (s *ExportService) ExportGrievances(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter, format string) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid export request", appErrors.Field("format", "must be one of csv, pdf"))
	}

	items, err := s.grievances.Filter(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	dataset := grievanceDataset(items)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, exportTitle(filter))
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("grievance export rendered", zap.String("format", format), zap.Int("rows", len(items)), zap.String("actor", actor.UserID))

	return &ExportFile{
		Filename:    fmt.Sprintf("grievances_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func grievanceDataset(items []models.Grievance) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, g := range items {
		rows = append(rows, map[string]string{
			"ID":          g.ID,
			"Submitted":   g.CreatedAt.UTC().Format(time.RFC3339),
			"Author":      g.AuthorID,
			"Subject":     g.Subject,
			"Category":    string(g.Category),
			"Priority":    string(g.Priority),
			"Status":      string(g.Status),
			"Assigned To": deref(g.AssignedTo),
			"Resolution":  deref(g.Resolution),
			"Attachments": fmt.Sprintf("%d", len(g.Attachments)),
		})
	}
	return export.Dataset{Headers: grievanceExportHeaders, Rows: rows}
}

func exportTitle(filter dto.GrievanceFilter) string {
	parts := []string{"Grievances"}
	for _, v := range []string{filter.Status, filter.Category, filter.Priority} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " - ")
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
