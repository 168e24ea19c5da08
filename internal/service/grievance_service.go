package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type grievanceStore interface {
	Create(ctx context.Context, grievance *models.Grievance) error
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	UpdateLifecycle(ctx context.Context, id string, mutate func(*models.Grievance) error) (*models.Grievance, error)
	Delete(ctx context.Context, id string) error
}

type commentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.Comment, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type attachmentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type attachmentSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type lifecycleNotifier interface {
	Notify(ctx context.Context, event models.GrievanceEvent)
}

type lifecycleMetrics interface {
	RecordGrievanceSubmitted(category models.GrievanceCategory)
	RecordGrievanceTransition(from, to models.GrievanceStatus)
	RecordCommentAdded()
}

// AttachmentUpload is one file submitted with a grievance.
type AttachmentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// AttachmentDownload bundles an opened attachment for streaming.
type AttachmentDownload struct {
	File      *os.File
	FileName  string
	MimeType  string
	SizeBytes int64
}

// GrievanceServiceConfig carries attachment limits and comment policy.
type GrievanceServiceConfig struct {
	MaxAttachments           int
	MaxFileSize              int64
	AllowedMIMEs             []string
	APIPrefix                string
	CommentsParticipantsOnly bool
}

// GrievanceService owns the grievance lifecycle: submission, admin
// transitions, comments and removal.
type GrievanceService struct {
	grievances grievanceStore
	comments   commentStore
	users      userDirectory
	storage    attachmentStorage
	signer     attachmentSigner
	audit      auditLogger
	notifier   lifecycleNotifier
	metrics    lifecycleMetrics
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        GrievanceServiceConfig
	mimeSet    map[string]struct{}
}

// GrievanceServiceDeps groups the collaborators of GrievanceService.
// Audit, Notifier and Metrics are optional.
type GrievanceServiceDeps struct {
	Grievances grievanceStore
	Comments   commentStore
	Users      userDirectory
	Storage    attachmentStorage
	Signer     attachmentSigner
	Audit      auditLogger
	Notifier   lifecycleNotifier
	Metrics    lifecycleMetrics
}

// NewGrievanceService constructs the service with defaults.
func NewGrievanceService(deps GrievanceServiceDeps, validate *validator.Validate, logger *zap.Logger, cfg GrievanceServiceConfig) *GrievanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttachments <= 0 {
		cfg.MaxAttachments = 5
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	registerGrievanceValidations(validate)
	return &GrievanceService{
		grievances: deps.Grievances,
		comments:   deps.Comments,
		users:      deps.Users,
		storage:    deps.Storage,
		signer:     deps.Signer,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		mimeSet:    mimeSet,
	}
}

// Submit validates the form and its attachments, stores the files and
// persists a pending grievance. Nothing is left behind when any step fails.
func (s *GrievanceService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitGrievanceRequest, uploads []AttachmentUpload) (*models.Grievance, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.Priority = strings.TrimSpace(req.Priority)

	var details []appErrors.FieldError
	if err := s.validator.Struct(req); err != nil {
		details = append(details, validationFailure(err, "").Details...)
	}
	mimeTypes, uploadDetails := s.checkUploads(uploads)
	details = append(details, uploadDetails...)
	if len(details) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid grievance submission", details...)
	}

	priority := models.GrievancePriority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	grievance := &models.Grievance{
		ID:          uuid.NewString(),
		AuthorID:    actor.UserID,
		Subject:     req.Subject,
		Description: req.Description,
		Category:    models.GrievanceCategory(req.Category),
		Priority:    priority,
		Status:      models.StatusPending,
		Attachments: make(models.Attachments, 0, len(uploads)),
	}

	for i, upload := range uploads {
		stored, err := s.storeAttachment(grievance.ID, i, upload, mimeTypes[i])
		if err != nil {
			s.discardAttachments(grievance.Attachments)
			return nil, err
		}
		grievance.Attachments = append(grievance.Attachments, stored)
	}

	if err := s.grievances.Create(ctx, grievance); err != nil {
		s.discardAttachments(grievance.Attachments)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grievance")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionGrievanceSubmit,
		Resource:   "grievance",
		ResourceID: &grievance.ID,
		NewValues:  mustJSON(map[string]interface{}{"category": grievance.Category, "priority": grievance.Priority, "attachments": len(grievance.Attachments)}),
	})
	if s.metrics != nil {
		s.metrics.RecordGrievanceSubmitted(grievance.Category)
	}
	s.notify(ctx, models.GrievanceEvent{
		Type:        models.EventGrievanceSubmitted,
		GrievanceID: grievance.ID,
		AuthorID:    grievance.AuthorID,
		ActorID:     actor.UserID,
		Status:      grievance.Status,
	})
	return grievance, nil
}

// Transition sets status, resolution and assignee of a grievance. Any status
// may follow any other; closed states need a resolution note.
func (s *GrievanceService) Transition(ctx context.Context, actor *models.JWTClaims, id string, req dto.TransitionGrievanceRequest) (*models.Grievance, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Status = strings.TrimSpace(req.Status)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid grievance update")
	}
	target := models.GrievanceStatus(req.Status)

	assignee, err := s.resolveAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	var previous models.Grievance
	updated, err := s.grievances.UpdateLifecycle(ctx, id, func(g *models.Grievance) error {
		previous = *g
		if !models.CanTransition(g.Status, target) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move grievance from %s to %s", g.Status, target))
		}
		g.Status = target
		if req.Resolution != nil {
			resolution := strings.TrimSpace(*req.Resolution)
			if resolution == "" {
				g.Resolution = nil
			} else {
				g.Resolution = &resolution
			}
		}
		if req.AssignedTo != nil {
			g.AssignedTo = assignee
		}
		if g.Status.Closed() && (g.Resolution == nil || *g.Resolution == "") {
			return appErrors.WithDetails(appErrors.ErrValidation, "resolution is required to close a grievance",
				appErrors.Field("resolution", fmt.Sprintf("is required when status is %s", g.Status)))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grievance")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionGrievanceTransition,
		Resource:   "grievance",
		ResourceID: &updated.ID,
		OldValues:  mustJSON(lifecycleSnapshot(&previous)),
		NewValues:  mustJSON(lifecycleSnapshot(updated)),
	})
	if s.metrics != nil {
		s.metrics.RecordGrievanceTransition(previous.Status, updated.Status)
	}
	s.notify(ctx, models.GrievanceEvent{
		Type:           models.EventGrievanceUpdated,
		GrievanceID:    updated.ID,
		AuthorID:       updated.AuthorID,
		ActorID:        actor.UserID,
		Status:         updated.Status,
		PreviousStatus: previous.Status,
	})
	return updated, nil
}

// AddComment appends a comment to a grievance.
func (s *GrievanceService) AddComment(ctx context.Context, actor *models.JWTClaims, grievanceID string, req dto.CreateCommentRequest) (*models.Comment, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid comment")
	}

	grievance, err := s.load(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if s.cfg.CommentsParticipantsOnly && !canView(actor, grievance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author and administrators may comment")
	}

	comment := &models.Comment{
		GrievanceID: grievance.ID,
		AuthorID:    actor.UserID,
		AuthorName:  actor.FullName,
		Text:        req.Comment,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCommentCreate,
		Resource:   "grievance_comment",
		ResourceID: &comment.ID,
		NewValues:  mustJSON(map[string]string{"grievanceId": grievance.ID}),
	})
	if s.metrics != nil {
		s.metrics.RecordCommentAdded()
	}
	s.notify(ctx, models.GrievanceEvent{
		Type:        models.EventCommentAdded,
		GrievanceID: grievance.ID,
		AuthorID:    grievance.AuthorID,
		ActorID:     actor.UserID,
		Status:      grievance.Status,
		CommentID:   comment.ID,
	})
	return comment, nil
}

// Get returns a grievance with its comments. Grievances outside the caller's
// scope are reported as missing.
func (s *GrievanceService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.GrievanceDetail, error) {
	grievance, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByGrievance(ctx, grievance.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comments")
	}
	return &dto.GrievanceDetail{Grievance: *grievance, Comments: comments}, nil
}

// AttachmentURL signs a time-limited download link for one attachment.
func (s *GrievanceService) AttachmentURL(ctx context.Context, actor *models.JWTClaims, id string, index int) (*dto.AttachmentURLResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	grievance, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	attachment, err := attachmentAt(grievance, index)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(grievance.ID, attachment.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.AttachmentURLResponse{
		FileName:  attachment.FileName,
		URL:       fmt.Sprintf("%s/grievances/%s/attachments/%d/download?token=%s", base, grievance.ID, index, token),
		ExpiresAt: expiresAt,
	}, nil
}

// DownloadAttachment validates a signed token and opens the stored file. The
// token alone authorizes the download; when the caller is also identified the
// usual visibility rule applies.
func (s *GrievanceService) DownloadAttachment(ctx context.Context, actor *models.JWTClaims, id string, index int, token string) (*AttachmentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	grievance, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && !canView(actor, grievance) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	attachment, err := attachmentAt(grievance, index)
	if err != nil {
		return nil, err
	}
	tokenID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if tokenID != grievance.ID || relPath != attachment.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment metadata")
	}
	return &AttachmentDownload{
		File:      file,
		FileName:  attachment.FileName,
		MimeType:  attachment.MimeType,
		SizeBytes: info.Size(),
	}, nil
}

// Delete removes a grievance and its comments, then its stored files.
func (s *GrievanceService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	grievance, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.grievances.Delete(ctx, grievance.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grievance")
	}
	s.discardAttachments(grievance.Attachments)
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionGrievanceDelete,
		Resource:   "grievance",
		ResourceID: &grievance.ID,
		OldValues:  mustJSON(lifecycleSnapshot(grievance)),
	})
	return nil
}

func (s *GrievanceService) load(ctx context.Context, id string) (*models.Grievance, error) {
	grievance, err := s.grievances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	return grievance, nil
}

func (s *GrievanceService) visible(ctx context.Context, actor *models.JWTClaims, id string) (*models.Grievance, error) {
	if _, err := authorScope(actor); err != nil {
		return nil, err
	}
	grievance, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, grievance) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	return grievance, nil
}

func (s *GrievanceService) resolveAssignee(ctx context.Context, assignedTo *string) (*string, error) {
	if assignedTo == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*assignedTo)
	if id == "" {
		return nil, nil
	}
	if s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "user directory unavailable")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid grievance update", appErrors.Field("assignedTo", "user does not exist"))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	if user.Role != models.RoleAdmin {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid grievance update", appErrors.Field("assignedTo", "must be an administrator"))
	}
	return &user.ID, nil
}

// checkUploads validates count, size and type of every upload and returns the
// effective MIME type per upload.
func (s *GrievanceService) checkUploads(uploads []AttachmentUpload) ([]string, []appErrors.FieldError) {
	var details []appErrors.FieldError
	if len(uploads) > s.cfg.MaxAttachments {
		details = append(details, appErrors.Field("attachments", fmt.Sprintf("at most %d attachments are allowed", s.cfg.MaxAttachments)))
		return nil, details
	}
	mimeTypes := make([]string, len(uploads))
	for i, upload := range uploads {
		field := fmt.Sprintf("attachments[%d]", i)
		if upload.Content == nil || upload.Size <= 0 {
			details = append(details, appErrors.Field(field, "file is empty"))
			continue
		}
		if upload.Size > s.cfg.MaxFileSize {
			details = append(details, appErrors.Field(field, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize)))
			continue
		}
		mimeType, err := detectMime(upload)
		if err != nil {
			details = append(details, appErrors.Field(field, "file type could not be determined"))
			continue
		}
		if _, ok := s.mimeSet[mimeType]; !ok {
			details = append(details, appErrors.Field(field, fmt.Sprintf("file type %s is not allowed", mimeType)))
			continue
		}
		mimeTypes[i] = mimeType
	}
	return mimeTypes, details
}

func (s *GrievanceService) storeAttachment(grievanceID string, index int, upload AttachmentUpload, mimeType string) (models.Attachment, error) {
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return models.Attachment{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	name := sanitizeFilename(filepath.Base(upload.Filename))
	target := fmt.Sprintf("grievances/%s/%d_%s", grievanceID, index, name)
	path, err := s.storage.SaveStream(target, upload.Content)
	if err != nil {
		return models.Attachment{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	return models.Attachment{
		FileName: upload.Filename,
		FilePath: path,
		Size:     upload.Size,
		MimeType: mimeType,
	}, nil
}

func (s *GrievanceService) discardAttachments(attachments models.Attachments) {
	for _, attachment := range attachments {
		if err := s.storage.Delete(attachment.FilePath); err != nil {
			s.logger.Warn("failed to remove stored attachment", zap.String("path", attachment.FilePath), zap.Error(err))
		}
	}
}

func (s *GrievanceService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	if origin := models.OriginFromContext(ctx); log.IPAddress == "" {
		log.IPAddress = origin.IPAddress
		log.UserAgent = origin.UserAgent
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *GrievanceService) notify(ctx context.Context, event models.GrievanceEvent) {
	if s.notifier == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.notifier.Notify(ctx, event)
}

// detectMime trusts a declared type unless it is missing or generic, in which
// case the content is sniffed.
func detectMime(upload AttachmentUpload) (string, error) {
	declared := normalizeMime(upload.MimeType)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return "", err
	}
	return normalizeMime(detected.String()), nil
}

func normalizeMime(raw string) string {
	mt, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func sanitizeFilename(raw string) string {
	if raw == "" || raw == "." || raw == string(filepath.Separator) {
		return "file"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[len(result)-100:]
	}
	return result
}

func attachmentAt(grievance *models.Grievance, index int) (models.Attachment, error) {
	if index < 0 || index >= len(grievance.Attachments) {
		return models.Attachment{}, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	return grievance.Attachments[index], nil
}

func lifecycleSnapshot(g *models.Grievance) map[string]interface{} {
	return map[string]interface{}{
		"status":     g.Status,
		"resolution": g.Resolution,
		"assignedTo": g.AssignedTo,
	}
}

func mustJSON(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
