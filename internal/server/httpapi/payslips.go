package httpapi

import (
	"context"
	"errors"
	"io"
	"iter"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/dmitrijs2005/payslips/internal/server/services"
	"github.com/dmitrijs2005/payslips/internal/server/validation"
	"github.com/go-chi/chi/v5"
)

const (
	// multipartOverhead is the room left above MaxFileSize for form fields
	// and part headers.
	multipartOverhead = 1 << 20
	// multipartMemory is held in memory; larger parts spill to temp files.
	multipartMemory = 32 << 20
)

// PayslipService is what the HTTP layer needs from the payslip service.
type PayslipService interface {
	Ingest(ctx context.Context, who models.Identity, in validation.Input) (*models.Payslip, error)
	List(ctx context.Context, who models.Identity, requested models.Filter) iter.Seq2[*models.Payslip, error]
	Get(ctx context.Context, who models.Identity, id string) (*models.Payslip, error)
	Open(ctx context.Context, who models.Identity, id string) (io.ReadCloser, *models.Payslip, error)
	Describe(ctx context.Context, p *models.Payslip) (models.Descriptor, error)
	DescribeAll(ctx context.Context, ps []*models.Payslip) ([]models.Descriptor, error)
	Delete(ctx context.Context, who models.Identity, id string) error
}

// PayslipHandler serves /api/v1/payslips.
type PayslipHandler struct {
	svc         PayslipService
	maxFileSize int64
	logger      logging.Logger
}

func NewPayslipHandler(svc PayslipService, maxFileSize int64, logger logging.Logger) *PayslipHandler {
	return &PayslipHandler{svc: svc, maxFileSize: maxFileSize, logger: logger.With("module", "httpapi")}
}

func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	who, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, common.ErrUnauthorized)
	}
	return who, ok
}

// Ingest handles POST /api/v1/payslips: multipart form with employee_id,
// month, year and file.
func (h *PayslipHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	// refuse before reading the body
	if !services.CanIngest(who.Role) {
		writeError(w, common.NewError(common.KindForbidden, nil, "role %q may not upload payslips", who.Role))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, invalid("file", common.CodeFileTooLarge, "request body exceeds the upload limit"))
			return
		}
		writeError(w, invalid("body", common.CodeInvalidRequest, "expected a multipart/form-data body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var violations []common.Violation
	formInt := func(name, code string) int64 {
		v, err := strconv.ParseInt(r.FormValue(name), 10, 64)
		if err != nil {
			violations = append(violations, common.Violation{Field: name, Code: code, Message: "must be an integer"})
		}
		return v
	}
	employeeID := formInt("employee_id", common.CodeInvalidEmployeeID)
	month := formInt("month", common.CodeInvalidPeriod)
	year := formInt("year", common.CodeInvalidPeriod)

	in := validation.Input{
		EmployeeID: employeeID,
		Month:      int(month),
		Year:       int(year),
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		violations = append(violations, common.Violation{Field: "file", Code: common.CodeInvalidRequest, Message: "is required"})
	} else {
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			writeError(w, invalid("file", common.CodeInvalidRequest, "could not read upload"))
			return
		}
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
		in.Content = content
	}
	in.Malformed = violations

	p, err := h.svc.Ingest(r.Context(), who, in)
	if err != nil {
		writeError(w, err)
		return
	}

	d, err := h.svc.Describe(r.Context(), p)
	if err != nil {
		// the payslip is stored; failing here would invite a duplicate retry
		h.logger.Warn(r.Context(), "file url unavailable for new payslip", "id", p.ID, "error", err)
		d = p.Describe("")
	}
	writeJSON(w, http.StatusCreated, d)
}

// List handles GET /api/v1/payslips?employee_id&year&month&skip&limit.
func (h *PayslipHandler) List(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ps, err := services.Collect(h.svc.List(r.Context(), who, f))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.DescribeAll(r.Context(), ps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter
	var violations []common.Violation

	optional := func(name, code string) *int64 {
		raw := q.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			violations = append(violations, common.Violation{Field: name, Code: code, Message: "must be an integer"})
			return nil
		}
		return &v
	}
	asInt := func(v *int64) *int {
		if v == nil {
			return nil
		}
		n := int(*v)
		return &n
	}

	f.EmployeeID = optional("employee_id", common.CodeInvalidEmployeeID)
	f.Year = asInt(optional("year", common.CodeInvalidPeriod))
	f.Month = asInt(optional("month", common.CodeInvalidPeriod))
	if v := asInt(optional("skip", common.CodeInvalidRequest)); v != nil {
		f.Skip = *v
	}
	if v := asInt(optional("limit", common.CodeInvalidRequest)); v != nil {
		f.Limit = *v
	}

	if len(violations) > 0 {
		return models.Filter{}, common.NewValidationError(violations)
	}
	return f, nil
}

// Get handles GET /api/v1/payslips/{id}.
func (h *PayslipHandler) Get(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Get(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.svc.Describe(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Content handles GET /api/v1/payslips/{id}/content and streams the PDF.
func (h *PayslipHandler) Content(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	body, p, err := h.svc.Open(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", validation.ContentTypePDF)
	w.Header().Set("Content-Length", strconv.FormatInt(p.FileSize, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": p.Filename}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn(r.Context(), "payslip stream interrupted", "id", p.ID, "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// Delete handles DELETE /api/v1/payslips/{id}.
func (h *PayslipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), who, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Payslip deleted successfully"})
}
