package model

import (
	"net/mail"
	"strings"
	"time"
)

// Employee defaults applied when callers leave the fields empty.
const (
	DefaultPosition     = "Staff"
	DefaultEmployeeType = "Full-time"
)

// Employee is a person who can hold equipment. EmployeeID is the
// organisation's own identifier and is unique.
type Employee struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Department   string    `json:"department"`
	Position     string    `json:"position"`
	EmployeeType string    `json:"employeeType"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ApplyDefaults fills position and employment type when unset.
func (e *Employee) ApplyDefaults() {
	if strings.TrimSpace(e.Position) == "" {
		e.Position = DefaultPosition
	}
	if strings.TrimSpace(e.EmployeeType) == "" {
		e.EmployeeType = DefaultEmployeeType
	}
}

// Validate checks the fields every employee record must carry.
func (e *Employee) Validate() error {
	if strings.TrimSpace(e.EmployeeID) == "" {
		return Invalid("employeeId", "required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return Invalid("name", "required")
	}
	if strings.TrimSpace(e.Email) == "" {
		return Invalid("email", "required")
	}
	if _, err := mail.ParseAddress(e.Email); err != nil {
		return Invalid("email", "invalid address %q", e.Email)
	}
	if strings.TrimSpace(e.Department) == "" {
		return Invalid("department", "required")
	}
	return nil
}
