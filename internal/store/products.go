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

const productColumns = `id, product_type, serial_number, model, manufacturer, purchase_date, status,
	price, invoice_number, po_number, warranty, previous_user, vendor_contact, vendor_email, location,
	assigned_date, return_date, attached_invoice, attached_po, transaction_details, attributes,
	version, created_at, updated_at`

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Variant model.Variant
	Status  string
}

func scanProduct(s scanner) (*model.Product, error) {
	p := &model.Product{}
	var attributes string
	err := s.Scan(&p.ID, &p.Variant, &p.SerialNumber, &p.Model, &p.Manufacturer, &p.PurchaseDate, &p.Status,
		&p.Price, &p.InvoiceNumber, &p.PONumber, &p.Warranty, &p.PreviousUser, &p.VendorContact, &p.VendorEmail,
		&p.Location, &p.AssignedDate, &p.ReturnDate, &p.AttachedInvoice, &p.AttachedPO, &p.TransactionDetails,
		&attributes, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attributes), &p.Specs); err != nil {
		return nil, fmt.Errorf("decoding attributes of product %s: %w", p.ID, err)
	}
	return p, nil
}

// CreateProduct validates and stores a new product. The status defaults to
// available and a fresh id is always generated.
func CreateProduct(ctx context.Context, db *sql.DB, p *model.Product) (*model.Product, error) {
	p.ID = uuid.NewString()
	if p.Status == "" {
		p.Status = model.ProductStatusAvailable
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	attributes, err := json.Marshal(p.Specs)
	if err != nil {
		return nil, fmt.Errorf("encoding attributes: %w", err)
	}

	ts := now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.Variant, p.SerialNumber, p.Model, p.Manufacturer, p.PurchaseDate, p.Status,
		p.Price, p.InvoiceNumber, p.PONumber, p.Warranty, p.PreviousUser, p.VendorContact, p.VendorEmail,
		p.Location, p.AssignedDate, p.ReturnDate, p.AttachedInvoice, p.AttachedPO, p.TransactionDetails,
		string(attributes), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	return GetProduct(ctx, db, p.ID)
}

// GetProduct returns a product by ID.
func GetProduct(ctx context.Context, db *sql.DB, id string) (*model.Product, error) {
	return getProduct(ctx, db, id)
}

func getProduct(ctx context.Context, q querier, id string) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// findProductBySerial returns the oldest product of the given variant with
// the given serial number.
func findProductBySerial(ctx context.Context, q querier, variant model.Variant, serial string) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE product_type = ? AND serial_number = ?
		 ORDER BY created_at LIMIT 1`, variant, serial))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding product by serial: %w", err)
	}
	return p, nil
}

// ListProducts returns products matching the filter, oldest first.
func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter) ([]model.Product, error) {
	var where []string
	var args []any
	if filter.Variant != "" {
		where = append(where, "product_type = ?")
		args = append(args, filter.Variant)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct merges a JSON patch onto the stored product, variant fields
// included. The id and product type cannot change. When the patch carries a
// version it must match the stored one.
func UpdateProduct(ctx context.Context, db *sql.DB, id string, patch []byte) (*model.Product, error) {
	current, err := GetProduct(ctx, db, id)
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
	if updated.Variant != current.Variant {
		return nil, model.Invalid("productType", "cannot be changed from %s", current.Variant)
	}
	if updated.Version != current.Version {
		return nil, fmt.Errorf("product %s version %d is stale: %w", id, updated.Version, ErrConflict)
	}
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	attributes, err := json.Marshal(updated.Specs)
	if err != nil {
		return nil, fmt.Errorf("encoding attributes: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE products SET serial_number = ?, model = ?, manufacturer = ?, purchase_date = ?, status = ?,
		        price = ?, invoice_number = ?, po_number = ?, warranty = ?, previous_user = ?,
		        vendor_contact = ?, vendor_email = ?, location = ?, assigned_date = ?, return_date = ?,
		        attached_invoice = ?, attached_po = ?, transaction_details = ?, attributes = ?,
		        version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		updated.SerialNumber, updated.Model, updated.Manufacturer, updated.PurchaseDate, updated.Status,
		updated.Price, updated.InvoiceNumber, updated.PONumber, updated.Warranty, updated.PreviousUser,
		updated.VendorContact, updated.VendorEmail, updated.Location, updated.AssignedDate, updated.ReturnDate,
		updated.AttachedInvoice, updated.AttachedPO, updated.TransactionDetails, string(attributes),
		now(), id, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("product %s changed concurrently: %w", id, ErrConflict)
	}

	return GetProduct(ctx, db, id)
}

// DeleteProduct removes a product. Its attachments go with it; assignments
// keep their copied details.
func DeleteProduct(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

// markProductAssigned records that a product went out on the given date.
func markProductAssigned(ctx context.Context, q querier, id string, on *model.Date) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET status = ?, assigned_date = ?, return_date = NULL,
		        version = version + 1, updated_at = ?
		 WHERE id = ?`,
		model.ProductStatusAssigned, on, now(), id,
	)
	if err != nil {
		return fmt.Errorf("marking product assigned: %w", err)
	}
	return nil
}

// markProductReturned makes a product available again unless another
// outstanding assignment still holds it.
func markProductReturned(ctx context.Context, q querier, id string, on *model.Date) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET status = ?, return_date = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM assignments
		       WHERE product_id = ? AND is_active = 1 AND actual_return_date IS NULL)`,
		model.ProductStatusAvailable, on, now(), id, model.ProductStatusAssigned, id,
	)
	if err != nil {
		return fmt.Errorf("marking product returned: %w", err)
	}
	return nil
}
