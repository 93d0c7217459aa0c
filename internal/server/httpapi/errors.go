package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/payslips/internal/common"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []common.Violation `json:"violations,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	var e *common.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case common.KindValidationFailed:
		if onlyTooLarge(e) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindDuplicatePayslip:
		return http.StatusConflict
	case common.KindStorageWriteFailed, common.KindStorageReadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func onlyTooLarge(e *common.Error) bool {
	if len(e.Violations) == 0 {
		return false
	}
	for _, v := range e.Violations {
		if v.Code != common.CodeFileTooLarge {
			return false
		}
	}
	return true
}

// writeError renders err as {"error": {...}}. Internal causes are never
// exposed; only the kind's message and violations are.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	detail := errorDetail{Code: string(common.KindInternal), Message: "internal error"}

	var e *common.Error
	if errors.As(err, &e) {
		detail.Code = string(e.Kind)
		detail.Violations = e.Violations
		if status < http.StatusInternalServerError {
			detail.Message = e.Message
		} else {
			detail.Message = publicMessage(e.Kind)
		}
	}

	writeJSON(w, status, errorBody{Error: detail})
}

func publicMessage(k common.Kind) string {
	switch k {
	case common.KindStorageWriteFailed:
		return common.ErrStorageWrite.Message
	case common.KindStorageReadFailed:
		return common.ErrStorageRead.Message
	case common.KindMetadataWriteFailed:
		return common.ErrMetadataWrite.Message
	case common.KindMetadataReadFailed:
		return common.ErrMetadataRead.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func invalid(field, code, message string) error {
	return common.NewValidationError([]common.Violation{{Field: field, Code: code, Message: message}})
}
