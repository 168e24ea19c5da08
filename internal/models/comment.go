package models

import "time"

// Comment is an append-only note on a grievance.
type Comment struct {
	ID          string    `db:"id" json:"id"`
	GrievanceID string    `db:"grievance_id" json:"grievanceId"`
	AuthorID    string    `db:"author_id" json:"authorId"`
	AuthorName  string    `db:"author_name" json:"authorName,omitempty"`
	Text        string    `db:"text" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
