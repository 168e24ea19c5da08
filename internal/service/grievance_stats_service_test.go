package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type failingReader struct{}

func (failingReader) List(context.Context, models.GrievanceFilter) ([]models.Grievance, error) {
	return nil, errors.New("db down")
}

func (failingReader) CountByStatus(context.Context, string) ([]models.StatusCount, error) {
	return nil, errors.New("db down")
}

func (failingReader) ListAuthorSummaries(context.Context) ([]models.AuthorSummary, error) {
	return nil, errors.New("db down")
}

func seedGrievances(repo *grievanceRepoStub) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := []struct {
		author   string
		status   models.GrievanceStatus
		category models.GrievanceCategory
		priority models.GrievancePriority
	}{
		{"user-1", models.StatusPending, models.CategoryInfrastructure, models.PriorityHigh},
		{"user-1", models.StatusResolved, models.CategoryHostel, models.PriorityLow},
		{"user-1", models.StatusInProgress, models.CategoryInfrastructure, models.PriorityUrgent},
		{"user-2", models.StatusRejected, models.CategoryLibrary, models.PriorityMedium},
		{"user-2", models.StatusPending, models.CategoryInfrastructure, models.PriorityHigh},
		{"user-3", models.StatusResolved, models.CategoryAcademic, models.PriorityHigh},
	}
	for i, row := range rows {
		id := fmt.Sprintf("g-%d", i+1)
		repo.items[id] = &models.Grievance{
			ID:        id,
			AuthorID:  row.author,
			Status:    row.status,
			Category:  row.category,
			Priority:  row.priority,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
}

func idsOf(items []models.Grievance) []string {
	out := make([]string, 0, len(items))
	for _, g := range items {
		out = append(out, g.ID)
	}
	return out
}

func TestGrievanceStatsServiceStatsFor(t *testing.T) {
	repo := newGrievanceRepoStub()
	seedGrievances(repo)
	svc := NewGrievanceStatsService(repo, nil, zap.NewNop(), 0)
	ctx := context.Background()

	all, err := svc.StatsFor(ctx, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStats{Pending: 2, InProgress: 1, Resolved: 2, Rejected: 1, Total: 6}, *all)

	for _, author := range []string{"user-1", "user-2", "user-3", "user-4"} {
		own, err := svc.StatsFor(ctx, userClaims(author))
		require.NoError(t, err)
		listed, err := repo.List(ctx, models.GrievanceFilter{AuthorID: author})
		require.NoError(t, err)
		assert.Equal(t, len(listed), own.Total, author)
		assert.Equal(t, own.Total, own.Pending+own.InProgress+own.Resolved+own.Rejected, author)
	}

	_, err = svc.StatsFor(ctx, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestGrievanceStatsServiceFilter(t *testing.T) {
	repo := newGrievanceRepoStub()
	seedGrievances(repo)
	svc := NewGrievanceStatsService(repo, nil, zap.NewNop(), 0)
	ctx := context.Background()

	items, err := svc.Filter(ctx, adminClaims(), dto.GrievanceFilter{Category: "infrastructure", Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g-5", "g-1"}, idsOf(items))

	items, err = svc.Filter(ctx, userClaims("user-1"), dto.GrievanceFilter{Category: " infrastructure "})
	require.NoError(t, err)
	assert.Equal(t, []string{"g-3", "g-1"}, idsOf(items))

	items, err = svc.Filter(ctx, userClaims("user-1"), dto.GrievanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"g-3", "g-2", "g-1"}, idsOf(items))

	_, err = svc.Filter(ctx, adminClaims(), dto.GrievanceFilter{Status: "done", Priority: "asap"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, []string{"status", "priority"}, fieldsOf(err))
}

func TestGrievanceStatsServiceRecentNonPending(t *testing.T) {
	repo := newGrievanceRepoStub()
	seedGrievances(repo)
	svc := NewGrievanceStatsService(repo, nil, zap.NewNop(), 2)
	ctx := context.Background()

	items, err := svc.RecentNonPending(ctx, adminClaims(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"g-6", "g-4"}, idsOf(items))

	items, err = svc.RecentNonPending(ctx, adminClaims(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"g-6", "g-4", "g-3", "g-2"}, idsOf(items))

	items, err = svc.RecentNonPending(ctx, userClaims("user-2"), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"g-4"}, idsOf(items))
}

func TestGrievanceStatsServiceUsersWithGrievances(t *testing.T) {
	repo := newGrievanceRepoStub()
	seedGrievances(repo)
	svc := NewGrievanceStatsService(repo, nil, zap.NewNop(), 0)
	ctx := context.Background()

	summaries, err := svc.UsersWithGrievances(ctx, adminClaims())
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "user-3", summaries[0].UserID)
	assert.Equal(t, "user-2", summaries[1].UserID)
	assert.Equal(t, 2, summaries[1].GrievanceCount)
	assert.Equal(t, 3, summaries[2].GrievanceCount)

	_, err = svc.UsersWithGrievances(ctx, userClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGrievanceStatsServiceDashboard(t *testing.T) {
	repo := newGrievanceRepoStub()
	seedGrievances(repo)
	svc := NewGrievanceStatsService(repo, nil, zap.NewNop(), 5)

	dashboard, err := svc.Dashboard(context.Background(), userClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, dashboard.Stats.Total)
	assert.Equal(t, []string{"g-3", "g-2"}, idsOf(dashboard.Recent))
}

func TestGrievanceStatsServiceWrapsRepositoryErrors(t *testing.T) {
	svc := NewGrievanceStatsService(failingReader{}, nil, zap.NewNop(), 0)
	ctx := context.Background()

	_, err := svc.StatsFor(ctx, adminClaims())
	require.ErrorIs(t, err, appErrors.ErrInternal)
	_, err = svc.Filter(ctx, adminClaims(), dto.GrievanceFilter{})
	require.ErrorIs(t, err, appErrors.ErrInternal)
	_, err = svc.UsersWithGrievances(ctx, adminClaims())
	require.ErrorIs(t, err, appErrors.ErrInternal)
}
