package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/grievance-api/internal/models"
)

const grievanceColumns = `id, author_id, subject, description, category, priority, status, resolution, assigned_to, attachments, created_at`

// GrievanceRepository persists grievances.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository constructs the repository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts a grievance together with its attachment references in a
// single statement.
func (r *GrievanceRepository) Create(ctx context.Context, grievance *models.Grievance) error {
	if grievance.ID == "" {
		grievance.ID = uuid.NewString()
	}
	if grievance.CreatedAt.IsZero() {
		grievance.CreatedAt = time.Now().UTC()
	}
	if grievance.Status == "" {
		grievance.Status = models.StatusPending
	}
	if grievance.Attachments == nil {
		grievance.Attachments = models.Attachments{}
	}
	const query = `INSERT INTO grievances (` + grievanceColumns + `)
VALUES (:id, :author_id, :subject, :description, :category, :priority, :status, :resolution, :assigned_to, :attachments, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grievance); err != nil {
		return fmt.Errorf("create grievance: %w", err)
	}
	return nil
}

// GetByID returns a grievance by identifier.
func (r *GrievanceRepository) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	const query = `SELECT ` + grievanceColumns + ` FROM grievances WHERE id = $1`
	var grievance models.Grievance
	if err := r.db.GetContext(ctx, &grievance, query, id); err != nil {
		return nil, err
	}
	return &grievance, nil
}

// List returns grievances matching every non-empty filter field, newest first.
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + grievanceColumns + ` FROM grievances`)
	where, args := grievanceConditions(filter)
	if len(where) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(where, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id ASC")
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}
	if filter.Offset > 0 {
		builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
	}

	grievances := make([]models.Grievance, 0)
	if err := r.db.SelectContext(ctx, &grievances, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	return grievances, nil
}

// CountByStatus aggregates grievances per status, optionally for one author.
func (r *GrievanceRepository) CountByStatus(ctx context.Context, authorID string) ([]models.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM grievances`
	args := []interface{}{}
	if authorID != "" {
		query += ` WHERE author_id = $1`
		args = append(args, authorID)
	}
	query += ` GROUP BY status`

	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count grievances by status: %w", err)
	}
	return rows, nil
}

// ListAuthorSummaries groups grievances by author, latest submission first.
func (r *GrievanceRepository) ListAuthorSummaries(ctx context.Context) ([]models.AuthorSummary, error) {
	const query = `SELECT g.author_id AS user_id,
       COALESCE(NULLIF(u.full_name, ''), u.username, '') AS display_name,
       COALESCE(u.username, '') AS username,
       COALESCE(u.email, '') AS email,
       COALESCE(u.user_type, '') AS user_type,
       COALESCE(u.department, '') AS department,
       COALESCE(u.contact_number, '') AS contact_number,
       COUNT(g.id) AS grievance_count,
       MAX(g.created_at) AS latest_grievance_date
FROM grievances g
LEFT JOIN users u ON u.id = g.author_id
GROUP BY g.author_id, u.full_name, u.username, u.email, u.user_type, u.department, u.contact_number
ORDER BY latest_grievance_date DESC, g.author_id ASC`
	summaries := make([]models.AuthorSummary, 0)
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("list grievance authors: %w", err)
	}
	return summaries, nil
}

// UpdateLifecycle locks the grievance row, lets mutate change it and writes
// status, resolution and assignee back in the same transaction. Concurrent
// callers on the same id are serialised by the row lock.
func (r *GrievanceRepository) UpdateLifecycle(ctx context.Context, id string, mutate func(*models.Grievance) error) (updated *models.Grievance, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grievance transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var grievance models.Grievance
	const selectQuery = `SELECT ` + grievanceColumns + ` FROM grievances WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &grievance, selectQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock grievance: %w", err)
	}

	if err = mutate(&grievance); err != nil {
		return nil, err
	}

	const updateQuery = `UPDATE grievances SET status = $2, resolution = $3, assigned_to = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, grievance.ID, grievance.Status, grievance.Resolution, grievance.AssignedTo); err != nil {
		return nil, fmt.Errorf("update grievance lifecycle: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grievance lifecycle: %w", err)
	}
	return &grievance, nil
}

// Delete removes a grievance and its comments atomically.
func (r *GrievanceRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grievance delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM grievance_comments WHERE grievance_id = $1`, id); err != nil {
		return fmt.Errorf("delete grievance comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM grievances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grievance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grievance delete rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grievance delete: %w", err)
	}
	return nil
}

func grievanceConditions(filter models.GrievanceFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if len(filter.ExcludeStatus) > 0 {
		excluded := make([]string, len(filter.ExcludeStatus))
		for i, status := range filter.ExcludeStatus {
			excluded[i] = string(status)
		}
		args = append(args, pq.Array(excluded))
		conditions = append(conditions, fmt.Sprintf("NOT (status = ANY($%d))", len(args)))
	}
	return conditions, args
}
