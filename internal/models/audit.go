package models

import (
	"context"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionGrievanceSubmit     = "GRIEVANCE_SUBMIT"
	AuditActionGrievanceTransition = "GRIEVANCE_TRANSITION"
	AuditActionGrievanceDelete     = "GRIEVANCE_DELETE"
	AuditActionCommentCreate       = "COMMENT_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RequestOrigin identifies where a mutating request came from.
type RequestOrigin struct {
	IPAddress string
	UserAgent string
}

type originKey struct{}

// ContextWithOrigin stores origin on ctx.
func ContextWithOrigin(ctx context.Context, origin RequestOrigin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the origin stored by ContextWithOrigin, if any.
func OriginFromContext(ctx context.Context) RequestOrigin {
	if ctx == nil {
		return RequestOrigin{}
	}
	origin, _ := ctx.Value(originKey{}).(RequestOrigin)
	return origin
}
