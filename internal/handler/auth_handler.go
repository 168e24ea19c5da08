package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type profileDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler exposes the identity behind the caller's bearer token.
type AuthHandler struct {
	users profileDirectory
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(users profileDirectory) *AuthHandler {
	return &AuthHandler{users: users}
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated caller merged with their directory entry
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	profile := dto.Profile{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
	if h.users != nil {
		user, err := h.users.FindByID(c.Request.Context(), claims.UserID)
		switch {
		case err == nil && user != nil:
			profile.Username = user.Username
			profile.UserType = user.UserType
			profile.Department = user.Department
			if profile.Email == "" {
				profile.Email = user.Email
			}
			if profile.FullName == "" {
				profile.FullName = user.DisplayName()
			}
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile"))
			return
		}
	}

	response.JSON(c, http.StatusOK, profile)
}
