package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

func TestMetricsServiceRecordsLifecycle(t *testing.T) {
	m := NewMetricsService()
	m.RecordGrievanceSubmitted(models.CategoryHostel)
	m.RecordGrievanceSubmitted(models.CategoryHostel)
	m.RecordGrievanceTransition(models.StatusPending, models.StatusResolved)
	m.RecordCommentAdded()
	m.RecordNotification("published")
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/grievances", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("hostel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.comments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/v1/grievances", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "grievances_submitted_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordGrievanceSubmitted(models.CategoryOther)
		m.RecordGrievanceTransition(models.StatusPending, models.StatusInProgress)
		m.RecordCommentAdded()
		m.RecordNotification("dropped")
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Nil(t, m.Registry())
}
