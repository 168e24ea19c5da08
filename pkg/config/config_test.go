package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachments.MaxFileSizeBytes)
	assert.Equal(t, 5, cfg.Attachments.MaxCount)
	assert.Equal(t, DefaultAllowedMIMEs, cfg.Attachments.AllowedMIMEs)
	assert.Equal(t, 30*time.Minute, cfg.Attachments.SignedURLTTL)
	assert.Equal(t, 10, cfg.Grievances.RecentLimit)
	assert.False(t, cfg.Grievances.CommentsParticipantsOnly)
	assert.Equal(t, "grievances.events", cfg.Notifications.Channel)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ATTACHMENTS_ALLOWED_MIME_TYPES", "application/pdf, image/png ,")
	v.Set("ATTACHMENTS_MAX_COUNT", 0)
	v.Set("GRIEVANCE_RECENT_LIMIT", 25)
	v.Set("ATTACHMENTS_SIGNED_URL_TTL", "not-a-duration")
	v.Set("JWT_AUDIENCE", "web,mobile")

	cfg := fromViper(v)
	assert.Equal(t, []string{"application/pdf", "image/png"}, cfg.Attachments.AllowedMIMEs)
	assert.Equal(t, 5, cfg.Attachments.MaxCount)
	assert.Equal(t, 25, cfg.Grievances.RecentLimit)
	assert.Equal(t, 30*time.Minute, cfg.Attachments.SignedURLTTL)
	assert.Equal(t, []string{"web", "mobile"}, cfg.JWT.Audience)
}
