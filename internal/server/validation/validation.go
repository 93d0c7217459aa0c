// Package validation checks raw upload parameters before any side effect.
// Validate is pure: it reads only its arguments and collects every
// violation instead of stopping at the first one.
package validation

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/server/models"
)

const (
	// ContentTypePDF is the canonical media type stored for every payslip.
	ContentTypePDF = "application/pdf"

	MaxFilenameLength = 255
	DefaultMinYear    = 2000
)

// pdfSignature is the magic prefix of every PDF file.
var pdfSignature = []byte("%PDF-")

var acceptedContentTypes = map[string]struct{}{
	"application/pdf":   {},
	"application/x-pdf": {},
}

// Input is the raw, untrusted upload.
type Input struct {
	EmployeeID  int64
	Month       int
	Year        int
	Filename    string
	ContentType string
	Content     []byte
	// Malformed holds violations found while decoding the raw request.
	// They are reported as is and the fields they name are not checked again.
	Malformed []common.Violation
}

// Limits carries the configured bounds.
type Limits struct {
	MaxFileSize int64
	MinYear     int
}

// Upload is an accepted, normalized parameter set.
type Upload struct {
	EmployeeID  int64
	Period      models.Period
	Filename    string
	ContentType string
	Content     []byte
	Size        int64
}

// Validate checks in against limits using now for the permitted year window.
// On failure it returns a *common.Error of kind ValidationFailed.
func Validate(in Input, limits Limits, now time.Time) (*Upload, error) {
	violations := append([]common.Violation(nil), in.Malformed...)
	bad := make(map[string]bool, len(in.Malformed))
	for _, v := range in.Malformed {
		bad[v.Field] = true
	}
	add := func(field, code, format string, args ...any) {
		if bad[field] {
			return
		}
		violations = append(violations, common.Violation{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if in.EmployeeID <= 0 {
		add("employee_id", common.CodeInvalidEmployeeID, "must be a positive integer, got %d", in.EmployeeID)
	}

	if in.Month < 1 || in.Month > 12 {
		add("month", common.CodeInvalidPeriod, "must be between 1 and 12, got %d", in.Month)
	}
	minYear := limits.MinYear
	if minYear == 0 {
		minYear = DefaultMinYear
	}
	maxYear := now.Year() + 1
	if in.Year < minYear || in.Year > maxYear {
		add("year", common.CodeInvalidPeriod, "must be between %d and %d, got %d", minYear, maxYear, in.Year)
	}

	filename, reason := NormalizeFilename(in.Filename)
	if reason != "" && !bad["file"] {
		add("filename", common.CodeInvalidFilename, "%s", reason)
	}

	if ct := in.ContentType; ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if _, ok := acceptedContentTypes[strings.ToLower(mediaType)]; err != nil || !ok {
			add("file", common.CodeInvalidFileType, "declared content type %q is not a PDF", ct)
		}
	}
	if !bytes.HasPrefix(in.Content, pdfSignature) {
		add("file", common.CodeInvalidFileType, "file content is not a PDF document")
	}

	size := int64(len(in.Content))
	if limits.MaxFileSize > 0 && size > limits.MaxFileSize {
		add("file", common.CodeFileTooLarge, "file size %d exceeds maximum of %d bytes", size, limits.MaxFileSize)
	}

	if len(violations) > 0 {
		return nil, common.NewValidationError(violations)
	}

	return &Upload{
		EmployeeID:  in.EmployeeID,
		Period:      models.Period{Month: in.Month, Year: in.Year},
		Filename:    filename,
		ContentType: ContentTypePDF,
		Content:     in.Content,
		Size:        size,
	}, nil
}

// NormalizeFilename trims name and strips any directory part. A non-empty
// reason means the name is unusable.
func NormalizeFilename(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case name == "" || name == "." || name == "..":
		return "", "must not be empty"
	case !utf8.ValidString(name):
		return "", "must be valid UTF-8"
	case utf8.RuneCountInString(name) > MaxFilenameLength:
		return "", fmt.Sprintf("must be at most %d characters", MaxFilenameLength)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return "", "must not contain control characters"
	}
	return name, ""
}
