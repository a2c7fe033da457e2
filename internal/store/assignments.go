package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/assetdesk/internal/model"
)

var assignmentFields = []string{
	"id", "employee_ref", "product_id", "employee_id", "employee_name", "employee_email", "department",
	"employee_designation", "operator_name", "location", "assigned_date", "expected_return_date",
	"actual_return_date", "notes", "is_active", "asset_type", "serial_number", "model", "manufacturer",
	"purchase_date", "status", "processor_type", "ram", "storage_capacity", "operating_system",
	"adapter_serial_number", "previous_user", "price", "invoice_number", "po_number", "warranty",
	"vendor_contact", "vendor_email", "transaction_details", "version", "created_at", "updated_at",
}

var (
	assignmentColumns = strings.Join(assignmentFields, ", ")
	assignmentSelect  = `SELECT a.` + strings.Join(assignmentFields, ", a.") + `,
	       e.id, e.employee_id, e.name, e.email, e.department, e.position, e.employee_type
	FROM assignments a
	LEFT JOIN employees e ON e.id = a.employee_ref`
)

// outstandingForProduct matches assignments that still hold the product
// bound to the placeholder.
const outstandingForProduct = `SELECT 1 FROM assignments
	WHERE product_id = ? AND is_active = 1 AND actual_return_date IS NULL`

// AssignmentFilter narrows ListAssignments. Zero values match everything.
type AssignmentFilter struct {
	EmployeeRef string
	ProductID   string
	// Active keeps only outstanding assignments; History keeps only returned
	// ones.
	Active  bool
	History bool
}

func assignmentArgs(a *model.Assignment) []any {
	return []any{
		a.ID, a.EmployeeRef, a.ProductID, a.EmployeeID, a.EmployeeName, a.EmployeeEmail, a.Department,
		a.EmployeeDesignation, a.OperatorName, a.Location, a.AssignedDate, a.ExpectedReturnDate,
		a.ActualReturnDate, a.Notes, a.IsActive, a.AssetType, a.SerialNumber, a.Model, a.Manufacturer,
		a.PurchaseDate, a.Status, a.ProcessorType, a.RAM, a.StorageCapacity, a.OperatingSystem,
		a.AdapterSerialNumber, a.PreviousUser, a.Price, a.InvoiceNumber, a.PONumber, a.Warranty,
		a.VendorContact, a.VendorEmail, a.TransactionDetails, a.Version, a.CreatedAt, a.UpdatedAt,
	}
}

func scanAssignment(s scanner) (*model.Assignment, error) {
	a := &model.Assignment{}
	var eID, eEmployeeID, eName, eEmail, eDepartment, ePosition, eType sql.NullString
	err := s.Scan(
		&a.ID, &a.EmployeeRef, &a.ProductID, &a.EmployeeID, &a.EmployeeName, &a.EmployeeEmail, &a.Department,
		&a.EmployeeDesignation, &a.OperatorName, &a.Location, &a.AssignedDate, &a.ExpectedReturnDate,
		&a.ActualReturnDate, &a.Notes, &a.IsActive, &a.AssetType, &a.SerialNumber, &a.Model, &a.Manufacturer,
		&a.PurchaseDate, &a.Status, &a.ProcessorType, &a.RAM, &a.StorageCapacity, &a.OperatingSystem,
		&a.AdapterSerialNumber, &a.PreviousUser, &a.Price, &a.InvoiceNumber, &a.PONumber, &a.Warranty,
		&a.VendorContact, &a.VendorEmail, &a.TransactionDetails, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		&eID, &eEmployeeID, &eName, &eEmail, &eDepartment, &ePosition, &eType,
	)
	if err != nil {
		return nil, err
	}
	if eID.Valid {
		a.Employee = &model.Employee{
			ID:           eID.String,
			EmployeeID:   eEmployeeID.String,
			Name:         eName.String,
			Email:        eEmail.String,
			Department:   eDepartment.String,
			Position:     ePosition.String,
			EmployeeType: eType.String,
		}
	}
	return a, nil
}

// CreateAssignment stores a new outstanding assignment. The caller fills
// the employee fields; the product is linked here, either by ProductID or
// by asset type and serial number, and its details fill the empty fields.
//
// Under the exclusive policy a product already held by an outstanding
// assignment is a conflict, and the product is marked assigned. A pending
// assignment notification is recorded in the same transaction.
func CreateAssignment(ctx context.Context, db *sql.DB, a *model.Assignment, policy string) (*model.Assignment, error) {
	a.ID = uuid.NewString()
	a.IsActive = true
	a.Normalize()
	if a.AssignedDate == nil {
		a.AssignedDate = model.Now()
	}
	if a.Status == "" {
		a.Status = model.ProductStatusActive
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := linkProduct(ctx, tx, a); err != nil {
		return nil, err
	}

	ts := now()
	a.Version = 1
	a.CreatedAt = ts
	a.UpdatedAt = ts

	exclusive := policy != model.PolicyShared && a.ProductID != nil && a.Outstanding()
	args := append(assignmentArgs(a), exclusive, a.ProductID)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(assignmentFields)), ", ")
	res, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 SELECT `+placeholders+`
		 WHERE ? = 0 OR NOT EXISTS (`+outstandingForProduct+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("product %s is already assigned: %w", *a.ProductID, ErrConflict)
	}

	if exclusive {
		if err := markProductAssigned(ctx, tx, *a.ProductID, a.AssignedDate); err != nil {
			return nil, err
		}
	}

	if err := enqueueAssignmentNotice(ctx, tx, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing assignment: %w", err)
	}

	return GetAssignment(ctx, db, a.ID)
}

// linkProduct resolves the product an assignment refers to and copies its
// details. An explicit ProductID must exist; a serial number that matches
// nothing leaves the assignment unlinked.
func linkProduct(ctx context.Context, q querier, a *model.Assignment) error {
	var p *model.Product
	var err error
	switch {
	case a.ProductID != nil && *a.ProductID != "":
		p, err = getProduct(ctx, q, *a.ProductID)
		if err != nil {
			return err
		}
	case strings.TrimSpace(a.SerialNumber) != "":
		p, err = findProductBySerial(ctx, q, a.AssetType, a.SerialNumber)
		if errors.Is(err, ErrNotFound) {
			a.ProductID = nil
			return nil
		}
		if err != nil {
			return err
		}
	default:
		a.ProductID = nil
		return nil
	}

	if p.Variant != a.AssetType {
		return model.Invalid("assetType", "product %s is a %s, not a %s", p.ID, p.Variant, a.AssetType)
	}
	a.ApplyProduct(p)
	return nil
}

func enqueueAssignmentNotice(ctx context.Context, q querier, a *model.Assignment) error {
	payload, err := json.Marshal(model.NoticeFor(a))
	if err != nil {
		return fmt.Errorf("encoding notification payload: %w", err)
	}
	id := a.ID
	return enqueue(ctx, q, &model.Notification{
		AssignmentID:   &id,
		Kind:           model.NotificationAssignmentCreated,
		RecipientName:  a.EmployeeName,
		RecipientEmail: a.EmployeeEmail,
		Payload:        string(payload),
	})
}

// GetAssignment returns an assignment by ID.
func GetAssignment(ctx context.Context, db *sql.DB, id string) (*model.Assignment, error) {
	return getAssignment(ctx, db, id)
}

func getAssignment(ctx context.Context, q querier, id string) (*model.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx, assignmentSelect+` WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns assignments matching the filter, most recently
// assigned first.
func ListAssignments(ctx context.Context, db *sql.DB, filter AssignmentFilter) ([]model.Assignment, error) {
	var where []string
	var args []any
	if filter.EmployeeRef != "" {
		where = append(where, "a.employee_ref = ?")
		args = append(args, filter.EmployeeRef)
	}
	if filter.ProductID != "" {
		where = append(where, "a.product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.Active {
		where = append(where, "a.actual_return_date IS NULL AND a.is_active = 1")
	}
	if filter.History {
		where = append(where, "a.actual_return_date IS NOT NULL")
	}

	query := assignmentSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY a.assigned_date DESC, a.created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	assignments := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// ListActiveAssignments returns the assignments that are still out.
func ListActiveAssignments(ctx context.Context, db *sql.DB) ([]model.Assignment, error) {
	return ListAssignments(ctx, db, AssignmentFilter{Active: true})
}

// ListAssignmentHistory returns the assignments that have been returned.
func ListAssignmentHistory(ctx context.Context, db *sql.DB) ([]model.Assignment, error) {
	return ListAssignments(ctx, db, AssignmentFilter{History: true})
}

// ReturnAssignment closes an assignment. The return date defaults to now
// and notes are replaced only when non-empty. Returning twice overwrites
// the earlier return.
func ReturnAssignment(ctx context.Context, db *sql.DB, id string, returnedOn *model.Date, notes string) (*model.Assignment, error) {
	if returnedOn == nil || returnedOn.IsZero() {
		returnedOn = model.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAssignment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	a.ActualReturnDate = returnedOn
	if strings.TrimSpace(notes) != "" {
		a.Notes = notes
	}
	a.Normalize()

	_, err = tx.ExecContext(ctx,
		`UPDATE assignments SET actual_return_date = ?, notes = ?, is_active = 0,
		        version = version + 1, updated_at = ?
		 WHERE id = ?`,
		a.ActualReturnDate, a.Notes, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("returning assignment: %w", err)
	}

	if a.ProductID != nil {
		if err := markProductReturned(ctx, tx, *a.ProductID, returnedOn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	return GetAssignment(ctx, db, id)
}

// UpdateAssignment merges a JSON patch onto the stored assignment. The
// links to the employee and the product cannot change. Setting a return
// date closes the assignment; reopening one under the exclusive policy is
// checked like a new assignment.
func UpdateAssignment(ctx context.Context, db *sql.DB, id string, patch []byte, policy string) (*model.Assignment, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getAssignment(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	updated := *current.Clone()
	if err := json.Unmarshal(patch, &updated); err != nil {
		return nil, model.Invalid("", "invalid patch: %v", err)
	}
	if updated.ID != current.ID {
		return nil, model.Invalid("id", "cannot be changed")
	}
	if updated.Version != current.Version {
		return nil, fmt.Errorf("assignment %s version %d is stale: %w", id, updated.Version, ErrConflict)
	}
	updated.EmployeeRef = current.EmployeeRef
	updated.ProductID = current.ProductID
	updated.Employee = current.Employee
	updated.CreatedAt = current.CreatedAt
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	reopened := !current.Outstanding() && updated.Outstanding()
	if reopened && policy != model.PolicyShared && updated.ProductID != nil {
		var held int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assignments
			 WHERE product_id = ? AND id <> ? AND is_active = 1 AND actual_return_date IS NULL`,
			*updated.ProductID, id,
		).Scan(&held)
		if err != nil {
			return nil, fmt.Errorf("checking outstanding assignments: %w", err)
		}
		if held > 0 {
			return nil, fmt.Errorf("product %s is already assigned: %w", *updated.ProductID, ErrConflict)
		}
	}

	updated.UpdatedAt = now()
	sets := make([]string, 0, len(assignmentFields))
	var args []any
	values := assignmentArgs(&updated)
	for i, field := range assignmentFields {
		switch field {
		case "id", "employee_ref", "product_id", "created_at", "version":
			continue
		}
		sets = append(sets, field+" = ?")
		args = append(args, values[i])
	}
	args = append(args, id, current.Version)

	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET `+strings.Join(sets, ", ")+`, version = version + 1
		 WHERE id = ? AND version = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("updating assignment: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return nil, fmt.Errorf("updating assignment: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("assignment %s changed concurrently: %w", id, ErrConflict)
	}

	if updated.ProductID != nil && policy != model.PolicyShared {
		switch {
		case reopened:
			err = markProductAssigned(ctx, tx, *updated.ProductID, updated.AssignedDate)
		case current.Outstanding() && !updated.Outstanding():
			returnedOn := updated.ActualReturnDate
			if returnedOn == nil {
				returnedOn = model.Now()
			}
			err = markProductReturned(ctx, tx, *updated.ProductID, returnedOn)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing assignment update: %w", err)
	}

	return GetAssignment(ctx, db, id)
}

// DeleteAssignment removes an assignment record.
func DeleteAssignment(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting assignment: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("deleting assignment: %w", err)
	}
	if !ok {
		return fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return nil
}
