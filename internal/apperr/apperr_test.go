package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusAndMessage(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:3306: connect: connection refused")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", Validation("submit", "Name, job selection, and resume are required"), 400, "Name, job selection, and resume are required"},
		{"conflict", Conflict("submit", "This invitation has already been used or expired"), 400, "This invitation has already been used or expired"},
		{"not found", NotFound("candidate", "Candidate not found"), 404, "Candidate not found"},
		{"dependency hides cause", Dependency("submit", "Failed to upload resume", cause), 500, "Failed to upload resume"},
		{"dependency without message", Dependency("submit", "", cause), 500, GenericMessage},
		{"plain error", cause, 500, GenericMessage},
		{"wrapped", fmt.Errorf("outer: %w", Conflict("answer", "question out of order")), 400, "question out of order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
			assert.Equal(t, tt.wantMsg, PublicMessage(tt.err))
			assert.NotContains(t, PublicMessage(tt.err), "10.0.0.3")
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("minio down")
	err := Dependency("upload", "Failed to upload resume", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindDependency))
	assert.False(t, Is(err, KindValidation))
	assert.False(t, Is(nil, KindInternal))
	assert.Contains(t, err.Error(), "minio down")
}
