package dto

import (
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
)

// SubmitGrievanceRequest is the grievance form. Attachments travel as
// multipart files next to these fields.
type SubmitGrievanceRequest struct {
	Subject     string `form:"subject" json:"subject" validate:"required,max=200"`
	Description string `form:"description" json:"description" validate:"required"`
	Category    string `form:"category" json:"category" validate:"required,grievance_category"`
	Priority    string `form:"priority" json:"priority" validate:"omitempty,grievance_priority"`
}

// TransitionGrievanceRequest is the admin update payload. A nil Resolution
// keeps the stored one; an empty string clears it.
type TransitionGrievanceRequest struct {
	Status     string  `json:"status" validate:"required,grievance_status"`
	Resolution *string `json:"resolution"`
	AssignedTo *string `json:"assignedTo"`
}

// CreateCommentRequest carries a comment body.
type CreateCommentRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

// GrievanceFilter captures list query parameters.
type GrievanceFilter struct {
	Status   string `form:"status" validate:"omitempty,grievance_status"`
	Category string `form:"category" validate:"omitempty,grievance_category"`
	Priority string `form:"priority" validate:"omitempty,grievance_priority"`
}

// GrievanceDetail is a grievance together with its comment thread.
type GrievanceDetail struct {
	models.Grievance
	Comments []models.Comment `json:"comments"`
}

// DashboardResponse is the landing page payload.
type DashboardResponse struct {
	Stats  models.GrievanceStats `json:"stats"`
	Recent []models.Grievance    `json:"recent"`
}

// AttachmentURLResponse wraps a signed download link.
type AttachmentURLResponse struct {
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Profile describes the authenticated caller.
type Profile struct {
	ID         string          `json:"id"`
	Username   string          `json:"username,omitempty"`
	Email      string          `json:"email"`
	FullName   string          `json:"fullName"`
	Role       models.UserRole `json:"role"`
	UserType   *string         `json:"userType,omitempty"`
	Department *string         `json:"department,omitempty"`
}
