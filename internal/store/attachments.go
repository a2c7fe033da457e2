package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/assetdesk/internal/model"
)

// SetAttachment stores a scanned document for a product, replacing any
// earlier one of the same kind, and points the product's reference field at
// it.
func SetAttachment(ctx context.Context, db *sql.DB, productID, kind string, data []byte, mime string) error {
	if !model.ValidAttachmentKind(kind) {
		return model.Invalid("kind", "unknown attachment kind %q", kind)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	column := "attached_invoice"
	if kind == model.AttachmentPO {
		column = "attached_po"
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET `+column+` = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		model.AttachmentURL(productID, kind), now(), productID,
	)
	if err != nil {
		return fmt.Errorf("setting attachment reference: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("setting attachment reference: %w", err)
	}
	if !ok {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attachments (product_id, kind, data, mime, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (product_id, kind) DO UPDATE SET data = excluded.data, mime = excluded.mime,
		     created_at = excluded.created_at`,
		productID, kind, data, mime, now(),
	)
	if err != nil {
		return fmt.Errorf("storing attachment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing attachment: %w", err)
	}
	return nil
}

// GetAttachment returns a product's attachment of the given kind.
func GetAttachment(ctx context.Context, db *sql.DB, productID, kind string) (*model.Attachment, error) {
	a := &model.Attachment{ProductID: productID, Kind: kind}
	err := db.QueryRowContext(ctx,
		`SELECT data, mime, created_at FROM attachments WHERE product_id = ? AND kind = ?`,
		productID, kind,
	).Scan(&a.Data, &a.Mime, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s attachment of product %s: %w", kind, productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	return a, nil
}
