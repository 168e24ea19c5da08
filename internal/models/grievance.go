package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GrievanceCategory classifies what a grievance is about.
type GrievanceCategory string

const (
	CategoryAcademic       GrievanceCategory = "academic"
	CategoryAdministrative GrievanceCategory = "administrative"
	CategoryInfrastructure GrievanceCategory = "infrastructure"
	CategoryHostel         GrievanceCategory = "hostel"
	CategoryLibrary        GrievanceCategory = "library"
	CategoryExamination    GrievanceCategory = "examination"
	CategoryOther          GrievanceCategory = "other"
)

// GrievanceCategories lists every accepted category.
var GrievanceCategories = []GrievanceCategory{
	CategoryAcademic,
	CategoryAdministrative,
	CategoryInfrastructure,
	CategoryHostel,
	CategoryLibrary,
	CategoryExamination,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c GrievanceCategory) Valid() bool {
	for _, known := range GrievanceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GrievancePriority orders grievances for triage.
type GrievancePriority string

const (
	PriorityLow    GrievancePriority = "low"
	PriorityMedium GrievancePriority = "medium"
	PriorityHigh   GrievancePriority = "high"
	PriorityUrgent GrievancePriority = "urgent"
)

// GrievancePriorities lists every accepted priority.
var GrievancePriorities = []GrievancePriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p GrievancePriority) Valid() bool {
	for _, known := range GrievancePriorities {
		if p == known {
			return true
		}
	}
	return false
}

// GrievanceStatus captures lifecycle states.
type GrievanceStatus string

const (
	StatusPending    GrievanceStatus = "pending"
	StatusInProgress GrievanceStatus = "in_progress"
	StatusResolved   GrievanceStatus = "resolved"
	StatusRejected   GrievanceStatus = "rejected"
)

// GrievanceStatuses lists every lifecycle state.
var GrievanceStatuses = []GrievanceStatus{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// Valid reports whether s is a known status.
func (s GrievanceStatus) Valid() bool {
	for _, known := range GrievanceStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether s requires a resolution note.
func (s GrievanceStatus) Closed() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransition is the lifecycle transition table. It is deliberately total:
// an administrator may move a grievance from any state to any state,
// including back out of resolved or rejected.
func CanTransition(from, to GrievanceStatus) bool {
	return from.Valid() && to.Valid()
}

// Attachment is a stored file reference fixed on a grievance at submission.
type Attachment struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Attachments is persisted as a JSONB array, preserving order.
type Attachments []Attachment

// Value implements driver.Valuer. lib/pq sends []byte as bytea, so the JSON
// goes over the wire as text.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attachments column type %T", src)
	}
	if len(raw) == 0 {
		*a = Attachments{}
		return nil
	}
	var out Attachments
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode attachments: %w", err)
	}
	*a = out
	return nil
}

// Grievance is a complaint tracked from submission to resolution.
type Grievance struct {
	ID          string            `db:"id" json:"id"`
	AuthorID    string            `db:"author_id" json:"authorId"`
	Subject     string            `db:"subject" json:"subject"`
	Description string            `db:"description" json:"description"`
	Category    GrievanceCategory `db:"category" json:"category"`
	Priority    GrievancePriority `db:"priority" json:"priority"`
	Status      GrievanceStatus   `db:"status" json:"status"`
	Resolution  *string           `db:"resolution" json:"resolution"`
	AssignedTo  *string           `db:"assigned_to" json:"assignedTo,omitempty"`
	Attachments Attachments       `db:"attachments" json:"attachments"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
}

// GrievanceFilter constrains listing queries. Empty fields are ignored.
type GrievanceFilter struct {
	AuthorID      string
	Status        GrievanceStatus
	Category      GrievanceCategory
	Priority      GrievancePriority
	ExcludeStatus []GrievanceStatus
	Limit         int
	Offset        int
}

// GrievanceStats summarises grievance counts per status.
type GrievanceStats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Rejected   int `json:"rejected"`
	Total      int `json:"total"`
}

// StatusCount is one row of a per-status aggregate.
type StatusCount struct {
	Status GrievanceStatus `db:"status"`
	Count  int             `db:"count"`
}

// AuthorSummary groups grievances by their author for the admin directory.
type AuthorSummary struct {
	UserID              string    `db:"user_id" json:"userId"`
	DisplayName         string    `db:"display_name" json:"displayName"`
	Username            string    `db:"username" json:"username"`
	Email               string    `db:"email" json:"email"`
	UserType            string    `db:"user_type" json:"userType,omitempty"`
	Department          string    `db:"department" json:"department,omitempty"`
	ContactNumber       string    `db:"contact_number" json:"contactNumber,omitempty"`
	GrievanceCount      int       `db:"grievance_count" json:"grievanceCount"`
	LatestGrievanceDate time.Time `db:"latest_grievance_date" json:"latestGrievanceDate"`
}
