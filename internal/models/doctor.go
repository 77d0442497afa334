package models

import (
	"time"

	"github.com/lib/pq"
)

// Doctor represents a clinician in the staffing directory.
type Doctor struct {
	ID             string         `db:"id" json:"id"`
	FullName       string         `db:"full_name" json:"full_name"`
	Email          string         `db:"email" json:"email"`
	Specialization string         `db:"specialization" json:"specialization"`
	Certifications pq.StringArray `db:"certifications" json:"certifications"`
	IsAvailable    bool           `db:"is_available" json:"is_available"`
	CreatedBy      *string        `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy      *string        `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
}

// DoctorFilter captures filtering options for listing doctors.
type DoctorFilter struct {
	Search         string
	Specialization string
	Available      *bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
