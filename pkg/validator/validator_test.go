package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringValidator(t *testing.T) {
	username := NewStringValidator("username", 3, 30, true).
		WithPattern(`^[a-z0-9_.]+$`, "Username can only contain lowercase letters, numbers, underscores and dots")

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"valid", "ann_b.c", ""},
		{"empty", "", "username is required"},
		{"too short", "ab", "at least 3"},
		{"too long", strings.Repeat("a", 31), "at most 30"},
		{"uppercase", "Ann", "lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := username.Validate(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStringValidatorCountsRunes(t *testing.T) {
	text := NewStringValidator("text", 0, 3, false)
	assert.NoError(t, text.Validate("😂😂😂"))
	assert.Error(t, text.Validate("😂😂😂😂"))
	assert.NoError(t, text.Validate(""))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.co"))
	assert.Error(t, ValidateEmail("nope"))
	assert.Equal(t, "a@b.co", NormalizeEmail("  A@B.co "))
}

func TestOneOf(t *testing.T) {
	assert.NoError(t, OneOf("type", "ask", "status", "ask"))
	assert.ErrorContains(t, OneOf("type", "x", "status", "ask"), "status, ask")
}
