package models

import "time"

// GrievanceEventType names a lifecycle side effect.
type GrievanceEventType string

const (
	EventGrievanceSubmitted GrievanceEventType = "grievance.submitted"
	EventGrievanceUpdated   GrievanceEventType = "grievance.updated"
	EventCommentAdded       GrievanceEventType = "grievance.comment_added"
)

// GrievanceEvent is handed to the notification hook after a successful write.
type GrievanceEvent struct {
	Type           GrievanceEventType `json:"type"`
	GrievanceID    string             `json:"grievanceId"`
	AuthorID       string             `json:"authorId"`
	ActorID        string             `json:"actorId"`
	Status         GrievanceStatus    `json:"status"`
	PreviousStatus GrievanceStatus    `json:"previousStatus,omitempty"`
	CommentID      string             `json:"commentId,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}
