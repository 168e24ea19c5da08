package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumsValid(t *testing.T) {
	assert.True(t, CategoryHostel.Valid())
	assert.False(t, GrievanceCategory("sports").Valid())
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, GrievancePriority("critical").Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, GrievanceStatus("closed").Valid())
}

func TestCanTransitionIsTotal(t *testing.T) {
	for _, from := range GrievanceStatuses {
		for _, to := range GrievanceStatuses {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(StatusPending, "archived"))
}

func TestAttachmentsRoundTripPreservesOrder(t *testing.T) {
	in := Attachments{
		{FileName: "b.pdf", FilePath: "grievances/b.pdf", Size: 10, MimeType: "application/pdf"},
		{FileName: "a.png", FilePath: "grievances/a.png", Size: 20, MimeType: "image/png"},
	}
	raw, err := in.Value()
	require.NoError(t, err)

	var out Attachments
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	var empty Attachments
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
	assert.Error(t, empty.Scan(42))
}
