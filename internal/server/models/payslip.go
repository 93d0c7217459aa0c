// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"
)

// Status tracks where a payslip row is in its lifecycle. Only StatusCompleted
// rows are visible to readers; the other states still hold the period's
// uniqueness slot.
type Status string

const (
	// StatusPending is a reservation taken before the blob is written.
	StatusPending Status = "pending"
	// StatusCompleted means both the blob and the metadata are in place.
	StatusCompleted Status = "completed"
	// StatusDeleting marks a record whose delete saga is in flight.
	StatusDeleting Status = "deleting"
)

// Period is the payroll month a payslip belongs to.
type Period struct {
	Month int
	Year  int
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// Payslip is the sole persisted entity: metadata for one employee's payslip
// for one period. The PDF itself lives in object storage under StorageKey.
type Payslip struct {
	// ID is an opaque identifier assigned at reservation time.
	ID string
	// EmployeeID identifies the owning employee.
	EmployeeID int64
	Period     Period
	// Filename is the original name of the uploaded file.
	Filename string
	// StorageKey is the object-storage key of the PDF, derived by the service.
	StorageKey  string
	ContentType string
	// FileSize is the byte length of the stored PDF.
	FileSize  int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows a listing. Nil pointers mean "no constraint".
type Filter struct {
	EmployeeID *int64
	Year       *int
	Month      *int
	Skip       int
	Limit      int
	// After restricts the listing to rows strictly older than the cursor
	// in (created_at, id) order.
	After *Cursor
}

// Cursor marks a position in the newest-first listing order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the listing position of p.
func CursorOf(p *Payslip) *Cursor {
	return &Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Descriptor is the record shape handed to external callers. FileURL is
// resolved from StorageKey at read time and never stored.
type Descriptor struct {
	ID              string    `json:"id"`
	EmployeeID      int64     `json:"employee_id"`
	Month           int       `json:"month"`
	Year            int       `json:"year"`
	Filename        string    `json:"filename"`
	FileURL         string    `json:"file_url"`
	FileSize        int64     `json:"file_size"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
}

// Describe builds the boundary descriptor for p with the given resolved URL.
func (p *Payslip) Describe(fileURL string) Descriptor {
	return Descriptor{
		ID:              p.ID,
		EmployeeID:      p.EmployeeID,
		Month:           p.Period.Month,
		Year:            p.Period.Year,
		Filename:        p.Filename,
		FileURL:         fileURL,
		FileSize:        p.FileSize,
		UploadTimestamp: p.CreatedAt,
	}
}
