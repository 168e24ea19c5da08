package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type grievanceLifecycle interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitGrievanceRequest, uploads []service.AttachmentUpload) (*models.Grievance, error)
	Transition(ctx context.Context, actor *models.JWTClaims, id string, req dto.TransitionGrievanceRequest) (*models.Grievance, error)
	AddComment(ctx context.Context, actor *models.JWTClaims, grievanceID string, req dto.CreateCommentRequest) (*models.Comment, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.GrievanceDetail, error)
	AttachmentURL(ctx context.Context, actor *models.JWTClaims, id string, index int) (*dto.AttachmentURLResponse, error)
	DownloadAttachment(ctx context.Context, actor *models.JWTClaims, id string, index int, token string) (*service.AttachmentDownload, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

type grievanceQueries interface {
	StatsFor(ctx context.Context, actor *models.JWTClaims) (*models.GrievanceStats, error)
	Filter(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter) ([]models.Grievance, error)
	UsersWithGrievances(ctx context.Context, actor *models.JWTClaims) ([]models.AuthorSummary, error)
	RecentNonPending(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.Grievance, error)
	Dashboard(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardResponse, error)
}

// GrievanceHandler exposes grievance endpoints available to every
// authenticated caller. Results are scoped to the caller's role.
type GrievanceHandler struct {
	lifecycle grievanceLifecycle
	queries   grievanceQueries
}

// NewGrievanceHandler constructs the handler.
func NewGrievanceHandler(lifecycle grievanceLifecycle, queries grievanceQueries) *GrievanceHandler {
	return &GrievanceHandler{lifecycle: lifecycle, queries: queries}
}

// Submit godoc
// @Summary Submit a grievance
// @Tags Grievances
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param subject formData string true "Subject"
// @Param description formData string true "Description"
// @Param category formData string true "Category"
// @Param priority formData string false "Priority"
// @Param attachments formData file false "Attachments (repeatable)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	var (
		req     dto.SubmitGrievanceRequest
		uploads []service.AttachmentUpload
	)
	if strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm) {
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grievance form"))
			return
		}
		var closers []io.Closer
		defer func() {
			for _, cl := range closers {
				cl.Close() //nolint:errcheck
			}
		}()
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grievance form"))
			return
		}
		for _, fh := range attachmentFiles(form) {
			upload, closer, err := openUpload(fh)
			if err != nil {
				response.Error(c, err)
				return
			}
			closers = append(closers, closer)
			uploads = append(uploads, upload)
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grievance payload"))
		return
	}

	grievance, err := h.lifecycle.Submit(c.Request.Context(), claims, req, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grievance)
}

// List godoc
// @Summary List grievances
// @Description Administrators see every grievance, other callers only their own.
// @Tags Grievances
// @Produce json
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param priority query string false "Priority filter"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var filter dto.GrievanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, err := h.queries.Filter(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(items))
	response.JSON(c, http.StatusOK, items, middleware.ExtractMeta(c))
}

// Recent godoc
// @Summary Recently handled grievances
// @Tags Grievances
// @Produce json
// @Param limit query int false "Maximum number of rows"
// @Success 200 {object} response.Envelope
// @Router /grievances/recent [get]
func (h *GrievanceHandler) Recent(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "invalid query parameters", appErrors.Field("limit", "must be a non-negative integer")))
			return
		}
		limit = parsed
	}
	items, err := h.queries.RecentNonPending(c.Request.Context(), claims, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Stats godoc
// @Summary Grievance counts per status
// @Tags Grievances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grievances/stats [get]
func (h *GrievanceHandler) Stats(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	stats, err := h.queries.StatsFor(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Dashboard godoc
// @Summary Stats together with recent activity
// @Tags Grievances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grievances/dashboard [get]
func (h *GrievanceHandler) Dashboard(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	dashboard, err := h.queries.Dashboard(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a grievance with its comments
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.lifecycle.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// AddComment godoc
// @Summary Comment on a grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.CreateCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /grievances/{id}/comments [post]
func (h *GrievanceHandler) AddComment(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment payload"))
		return
	}
	comment, err := h.lifecycle.AddComment(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// AttachmentURL godoc
// @Summary Signed download link for an attachment
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Param index path int true "Attachment position"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/attachments/{index}/url [get]
func (h *GrievanceHandler) AttachmentURL(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	index, err := attachmentIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.lifecycle.AttachmentURL(c.Request.Context(), claims, c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}

// DownloadAttachment godoc
// @Summary Download an attachment via signed token
// @Tags Grievances
// @Produce octet-stream
// @Param id path string true "Grievance ID"
// @Param index path int true "Attachment position"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /grievances/{id}/attachments/{index}/download [get]
func (h *GrievanceHandler) DownloadAttachment(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "token is required", appErrors.Field("token", "is required")))
		return
	}
	index, err := attachmentIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.lifecycle.DownloadAttachment(c.Request.Context(), claimsFromContext(c), c.Param("id"), index, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	mimeType := result.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, mimeType, result.File, nil)
}

func attachmentIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, appErrors.WithDetails(appErrors.ErrValidation, "invalid attachment index", appErrors.Field("index", "must be a non-negative integer"))
	}
	return index, nil
}

// attachmentFiles accepts both "attachments" and "attachments[]" field names.
func attachmentFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	files := append([]*multipart.FileHeader{}, form.File["attachments"]...)
	return append(files, form.File["attachments[]"]...)
}

func openUpload(fh *multipart.FileHeader) (service.AttachmentUpload, io.Closer, error) {
	src, err := fh.Open()
	if err != nil {
		return service.AttachmentUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		src.Close() //nolint:errcheck
		if readErr != nil {
			return service.AttachmentUpload{}, nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		return service.AttachmentUpload{
			Filename: fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  bytes.NewReader(buf),
		}, io.NopCloser(nil), nil
	}
	return service.AttachmentUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  reader,
	}, src, nil
}
