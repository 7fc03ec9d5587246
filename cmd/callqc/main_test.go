package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowFailureError(t *testing.T) {
	err := &RowFailureError{
		Message: "2 of 5 rows failed to evaluate",
	}

	assert.Equal(t, "2 of 5 rows failed to evaluate", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
	}{
		{
			name:     "RowFailureError",
			err:      &RowFailureError{Message: "row failure"},
			wantType: "RowFailureError",
		},
		{
			name:     "regular error",
			err:      errors.New("config error"),
			wantType: "other",
		},
		{
			name:     "wrapped RowFailureError",
			err:      errors.Join(&RowFailureError{Message: "row failure"}, errors.New("additional context")),
			wantType: "RowFailureError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rowFailureErr *RowFailureError
			isRowFailure := errors.As(tt.err, &rowFailureErr)

			if tt.wantType == "RowFailureError" {
				assert.True(t, isRowFailure, "expected error to be detected as RowFailureError")
			} else {
				assert.False(t, isRowFailure, "expected error NOT to be detected as RowFailureError")
			}
		})
	}
}
