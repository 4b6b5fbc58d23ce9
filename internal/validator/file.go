package validator

import (
	"fmt"
	"strings"
)

// MaxFileSize is the per-file upload limit (10 MiB).
const MaxFileSize int64 = 10 * 1024 * 1024

// AllowedFileTypes is the upload MIME allow-list.
var AllowedFileTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/jpg",
	"image/png",
}

var (
	ErrMsgFileTooLarge   = fmt.Sprintf("File size exceeds the %dMB limit", MaxFileSize/(1024*1024))
	ErrMsgFileTypeDenied = "Invalid file type. Allowed types: PDF, JPEG, JPG, PNG"
)

// FileDescriptor is the minimal view of a candidate upload.
type FileDescriptor interface {
	Size() int64
	ContentType() string
}

// FileInfo is a plain FileDescriptor.
type FileInfo struct {
	Name  string
	Bytes int64
	Type  string
}

func (f FileInfo) Size() int64         { return f.Bytes }
func (f FileInfo) ContentType() string { return f.Type }

type FileValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Message joins the errors into one line for per-file responses.
func (r FileValidationResult) Message() string {
	return JoinErrors(r.Errors)
}

// ValidateFile checks size and declared type independently, so both errors can be reported.
func ValidateFile(f FileDescriptor) FileValidationResult {
	errs := []string{}

	if f.Size() > MaxFileSize {
		errs = append(errs, ErrMsgFileTooLarge)
	}
	if !IsAllowedFileType(f.ContentType()) {
		errs = append(errs, ErrMsgFileTypeDenied)
	}

	return FileValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func IsAllowedFileType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range AllowedFileTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

func JoinErrors(errs []string) string {
	return strings.Join(errs, ", ")
}
