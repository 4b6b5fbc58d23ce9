package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name     string
		file     FileInfo
		valid    bool
		contains []string
	}{
		{
			name:  "pdf within limit",
			file:  FileInfo{Name: "a.pdf", Bytes: 1024, Type: "application/pdf"},
			valid: true,
		},
		{
			name:  "exactly at limit",
			file:  FileInfo{Name: "a.png", Bytes: MaxFileSize, Type: "image/png"},
			valid: true,
		},
		{
			name:  "jpg alias accepted",
			file:  FileInfo{Name: "a.jpg", Bytes: 10, Type: "image/jpg"},
			valid: true,
		},
		{
			name:     "too large regardless of type",
			file:     FileInfo{Name: "a.pdf", Bytes: MaxFileSize + 1, Type: "application/pdf"},
			contains: []string{ErrMsgFileTooLarge},
		},
		{
			name:     "wrong type regardless of size",
			file:     FileInfo{Name: "a.gif", Bytes: 1, Type: "image/gif"},
			contains: []string{ErrMsgFileTypeDenied},
		},
		{
			name:     "both errors reported",
			file:     FileInfo{Name: "a.exe", Bytes: MaxFileSize * 2, Type: "application/x-msdownload"},
			contains: []string{ErrMsgFileTooLarge, ErrMsgFileTypeDenied},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateFile(tt.file)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Errors)
				return
			}
			assert.Equal(t, tt.contains, res.Errors)
		})
	}
}

func TestIsAllowedFileType_IgnoresParamsAndCase(t *testing.T) {
	assert.True(t, IsAllowedFileType("Application/PDF; charset=binary"))
	assert.False(t, IsAllowedFileType(""))
}

func TestResultMessageJoinsErrors(t *testing.T) {
	res := ValidateFile(FileInfo{Bytes: MaxFileSize + 1, Type: "text/plain"})
	assert.Equal(t, ErrMsgFileTooLarge+", "+ErrMsgFileTypeDenied, res.Message())
}

type signupLike struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,is-user-role"`
}

func TestValidator_CustomRoleRule(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&signupLike{Email: "a@b.co", Role: "cfi"}))

	err := v.Validate(&signupLike{Email: "nope", Role: "pilot"})
	vErr, ok := err.(*ValidationError)
	if assert.True(t, ok) {
		assert.Contains(t, vErr.Errors, "email")
		assert.Equal(t, "Must be one of: student, cfi, school_admin", vErr.Errors["role"])
	}
}
