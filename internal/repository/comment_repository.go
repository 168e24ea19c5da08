package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grievance-api/internal/models"
)

// CommentRepository persists grievance comments. Comments are append-only.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create appends a comment. The grievance foreign key rejects comments on
// grievances that no longer exist.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grievance_comments (id, grievance_id, author_id, text, created_at)
VALUES (:id, :grievance_id, :author_id, :text, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create grievance comment: %w", err)
	}
	return nil
}

// ListByGrievance returns comments oldest first.
func (r *CommentRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]models.Comment, error) {
	const query = `SELECT c.id, c.grievance_id, c.author_id,
       COALESCE(NULLIF(u.full_name, ''), u.username, '') AS author_name,
       c.text, c.created_at
FROM grievance_comments c
LEFT JOIN users u ON u.id = c.author_id
WHERE c.grievance_id = $1
ORDER BY c.created_at ASC, c.id ASC`
	comments := make([]models.Comment, 0)
	if err := r.db.SelectContext(ctx, &comments, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list grievance comments: %w", err)
	}
	return comments, nil
}
