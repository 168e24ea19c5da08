package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

// authorScope is the one place that decides how far a caller can see.
// Administrators get an empty author filter (everything); everyone else is
// pinned to their own grievances.
func authorScope(actor *models.JWTClaims) (string, error) {
	if actor == nil || actor.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return "", nil
	}
	return actor.UserID, nil
}

// canView applies authorScope to a single grievance.
func canView(actor *models.JWTClaims, grievance *models.Grievance) bool {
	scope, err := authorScope(actor)
	if err != nil || grievance == nil {
		return false
	}
	return scope == "" || scope == grievance.AuthorID
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}

func registerGrievanceValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	v.RegisterValidation("grievance_category", func(fl validator.FieldLevel) bool {
		return models.GrievanceCategory(fl.Field().String()).Valid()
	})
	v.RegisterValidation("grievance_priority", func(fl validator.FieldLevel) bool {
		return models.GrievancePriority(fl.Field().String()).Valid()
	})
	v.RegisterValidation("grievance_status", func(fl validator.FieldLevel) bool {
		return models.GrievanceStatus(fl.Field().String()).Valid()
	})
}

// validationFailure turns validator output into a ValidationError carrying
// one detail per rejected field.
func validationFailure(err error, message string) *appErrors.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make([]appErrors.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, appErrors.Field(fe.Field(), fieldReason(fe)))
	}
	return appErrors.WithDetails(appErrors.ErrValidation, message, details...)
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "grievance_category":
		return "must be one of " + joinValues(models.GrievanceCategories)
	case "grievance_priority":
		return "must be one of " + joinValues(models.GrievancePriorities)
	case "grievance_status":
		return "must be one of " + joinValues(models.GrievanceStatuses)
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
