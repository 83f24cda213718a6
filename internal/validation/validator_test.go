package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive/internal/apperr"
)

type signup struct {
	Username string   `json:"username" validate:"required,min=3"`
	Email    string   `json:"email" validate:"required,email"`
	Tags     []string `json:"tags" validate:"required,min=1"`
	Year     int      `json:"year" validate:"gte=0,lte=3000"`
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		in      signup
		wantErr map[string]string
	}{
		{
			name: "valid",
			in:   signup{Username: "alice", Email: "a@x.com", Tags: []string{"scifi"}, Year: 1965},
		},
		{
			name: "missing fields use json names",
			in:   signup{},
			wantErr: map[string]string{
				"username": "is required",
				"email":    "is required",
				"tags":     "is required",
			},
		},
		{
			name: "malformed values",
			in:   signup{Username: "al", Email: "nope", Tags: []string{}, Year: -1},
			wantErr: map[string]string{
				"username": "must be at least 3 characters",
				"email":    "must be a valid email address",
				"tags":     "must have at least 1 entries",
				"year":     "must be greater than or equal to 0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate("invalid signup", tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			var e *apperr.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, apperr.CodeInvalidInput, e.Code)
			assert.Equal(t, "invalid signup", e.Message)
			assert.Equal(t, tt.wantErr, e.Details)
		})
	}
}
