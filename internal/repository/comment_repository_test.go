package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

func TestCommentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_comments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	comment := &models.Comment{GrievanceID: "g-1", AuthorID: "user-1", Text: "Any update?"}
	require.NoError(t, repo.Create(context.Background(), comment))
	assert.NotEmpty(t, comment.ID)
	assert.False(t, comment.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryCreateForeignKeyFailure(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_comments")).
		WillReturnError(errors.New("violates foreign key constraint"))

	err := repo.Create(context.Background(), &models.Comment{GrievanceID: "gone", AuthorID: "user-1", Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create grievance comment")
}

func TestCommentRepositoryListByGrievanceOrdersOldestFirst(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	first := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "grievance_id", "author_id", "author_name", "text", "created_at"}).
		AddRow("c-1", "g-1", "user-1", "Rina", "Still leaking", first).
		AddRow("c-2", "g-1", "admin-1", "Facilities", "Crew dispatched", first.Add(time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.created_at ASC, c.id ASC")).
		WithArgs("g-1").
		WillReturnRows(rows)

	comments, err := repo.ListByGrievance(context.Background(), "g-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c-1", comments[0].ID)
	assert.Equal(t, "Facilities", comments[1].AuthorName)
	require.NoError(t, mock.ExpectationsWereMet())
}
