package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
)

type profileDirectoryStub struct {
	users map[string]*models.User
	err   error
}

func (s profileDirectoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func TestAuthHandlerMeMergesDirectory(t *testing.T) {
	department := "Civil Engineering"
	h := NewAuthHandler(profileDirectoryStub{users: map[string]*models.User{
		"user-1": {ID: "user-1", Username: "jdoe", Email: "jdoe@example.edu", FullName: "Jane Doe", Department: &department},
	}})

	c, w := newGinContext(http.MethodGet, "/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"username":"jdoe"`)
	assert.Contains(t, body, `"fullName":"Jane Doe"`)
	assert.Contains(t, body, `"department":"Civil Engineering"`)
	assert.Contains(t, body, `"role":"user"`)
}

func TestAuthHandlerMeWithoutDirectoryEntry(t *testing.T) {
	h := NewAuthHandler(profileDirectoryStub{})

	c, w := newGinContext(http.MethodGet, "/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-9", Role: models.RoleAdmin, Email: "ops@example.edu"})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ops@example.edu"`)
}

func TestAuthHandlerMeErrors(t *testing.T) {
	h := NewAuthHandler(profileDirectoryStub{err: errors.New("pq: timeout")})

	c, w := newGinContext(http.MethodGet, "/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/me", nil)
	asUser(c)
	h.Me(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "timeout")
}
