package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type grievanceReader interface {
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error)
	CountByStatus(ctx context.Context, authorID string) ([]models.StatusCount, error)
	ListAuthorSummaries(ctx context.Context) ([]models.AuthorSummary, error)
}

// GrievanceStatsService derives counts and filtered views from stored
// grievances on every call. Nothing is cached.
type GrievanceStatsService struct {
	repo        grievanceReader
	validator   *validator.Validate
	logger      *zap.Logger
	recentLimit int
}

// NewGrievanceStatsService constructs the service.
func NewGrievanceStatsService(repo grievanceReader, validate *validator.Validate, logger *zap.Logger, recentLimit int) *GrievanceStatsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	registerGrievanceValidations(validate)
	return &GrievanceStatsService{repo: repo, validator: validate, logger: logger, recentLimit: recentLimit}
}

// StatsFor counts grievances per status. Administrators get system-wide
// numbers, everyone else counts only their own.
func (s *GrievanceStatsService) StatsFor(ctx context.Context, actor *models.JWTClaims) (*models.GrievanceStats, error) {
	scope, err := authorScope(actor)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count grievances")
	}
	stats := &models.GrievanceStats{}
	for _, row := range counts {
		switch row.Status {
		case models.StatusPending:
			stats.Pending += row.Count
		case models.StatusInProgress:
			stats.InProgress += row.Count
		case models.StatusResolved:
			stats.Resolved += row.Count
		case models.StatusRejected:
			stats.Rejected += row.Count
		default:
			s.logger.Warn("unexpected grievance status in counts", zap.String("status", string(row.Status)))
		}
		stats.Total += row.Count
	}
	return stats, nil
}

// Filter returns grievances matching every provided criterion, newest first.
func (s *GrievanceStatsService) Filter(ctx context.Context, actor *models.JWTClaims, filter dto.GrievanceFilter) ([]models.Grievance, error) {
	scope, err := authorScope(actor)
	if err != nil {
		return nil, err
	}
	filter.Status = strings.TrimSpace(filter.Status)
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Priority = strings.TrimSpace(filter.Priority)
	if err := s.validator.Struct(filter); err != nil {
		return nil, validationFailure(err, "invalid grievance filter")
	}
	items, err := s.repo.List(ctx, models.GrievanceFilter{
		AuthorID: scope,
		Status:   models.GrievanceStatus(filter.Status),
		Category: models.GrievanceCategory(filter.Category),
		Priority: models.GrievancePriority(filter.Priority),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grievances")
	}
	return items, nil
}

// UsersWithGrievances lists every author with their grievance count and
// latest submission, most recent first.
func (s *GrievanceStatsService) UsersWithGrievances(ctx context.Context, actor *models.JWTClaims) ([]models.AuthorSummary, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	summaries, err := s.repo.ListAuthorSummaries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grievance authors")
	}
	return summaries, nil
}

// RecentNonPending returns the newest grievances that have left pending.
// A non-positive limit falls back to the configured default.
func (s *GrievanceStatsService) RecentNonPending(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.Grievance, error) {
	scope, err := authorScope(actor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.recentLimit
	}
	items, err := s.repo.List(ctx, models.GrievanceFilter{
		AuthorID:      scope,
		ExcludeStatus: []models.GrievanceStatus{models.StatusPending},
		Limit:         limit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent grievances")
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Dashboard combines the caller's stats with their recent activity.
func (s *GrievanceStatsService) Dashboard(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardResponse, error) {
	stats, err := s.StatsFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentNonPending(ctx, actor, 0)
	if err != nil {
		return nil, err
	}
	return &dto.DashboardResponse{Stats: *stats, Recent: recent}, nil
}
