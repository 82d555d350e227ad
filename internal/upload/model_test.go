package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	testCases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusUploading, StatusAssembling, true},
		{StatusAssembling, StatusTranscribing, true},
		{StatusAssembling, StatusError, true},
		{StatusTranscribing, StatusTranscribed, true},
		{StatusTranscribing, StatusError, true},
		{StatusError, StatusAssembling, true},
		{StatusError, StatusTranscribing, true},
		{StatusTranscribed, StatusDeleted, true},

		{StatusUploading, StatusTranscribing, false},
		{StatusUploading, StatusTranscribed, false},
		{StatusTranscribed, StatusAssembling, false},
		{StatusTranscribed, StatusError, false},
		{StatusDeleted, StatusAssembling, false},
		{StatusDeleted, StatusDeleted, false},
		{StatusError, StatusUploading, false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusTranscribed.Terminal())
	assert.True(t, StatusDeleted.Terminal())
	assert.False(t, StatusUploading.Terminal())
	assert.False(t, StatusError.Terminal())
	assert.False(t, StatusTranscribing.Terminal())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusUploading, StatusAssembling, StatusTranscribing, StatusTranscribed, StatusError, StatusDeleted} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
}
