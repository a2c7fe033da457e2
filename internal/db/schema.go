package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS operators (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_operators_username_active
    ON operators(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS products (
    id                  TEXT PRIMARY KEY,
    product_type        TEXT NOT NULL CHECK (product_type IN ('Laptop', 'Adapter', 'Printer', 'MiscItem')),
    serial_number       TEXT NOT NULL DEFAULT '',
    model               TEXT NOT NULL DEFAULT '',
    manufacturer        TEXT NOT NULL DEFAULT '',
    purchase_date       DATETIME,
    status              TEXT NOT NULL DEFAULT 'available'
        CHECK (status IN ('assigned', 'available', 'maintenance', 'retired', 'new', 'active', 'repair')),
    price               TEXT NOT NULL DEFAULT '',
    invoice_number      TEXT NOT NULL DEFAULT '',
    po_number           TEXT NOT NULL DEFAULT '',
    warranty            TEXT NOT NULL DEFAULT '',
    previous_user       TEXT NOT NULL DEFAULT '',
    vendor_contact      TEXT NOT NULL DEFAULT '',
    vendor_email        TEXT NOT NULL DEFAULT '',
    location            TEXT NOT NULL DEFAULT '',
    assigned_date       DATETIME,
    return_date         DATETIME,
    attached_invoice    TEXT NOT NULL DEFAULT '',
    attached_po         TEXT NOT NULL DEFAULT '',
    transaction_details TEXT NOT NULL DEFAULT '',
    attributes          TEXT NOT NULL DEFAULT '{}',
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_products_type_serial ON products(product_type, serial_number);

CREATE TABLE IF NOT EXISTS employees (
    id            TEXT PRIMARY KEY,
    employee_id   TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    department    TEXT NOT NULL,
    position      TEXT NOT NULL DEFAULT 'Staff',
    employee_type TEXT NOT NULL DEFAULT 'Full-time',
    version       INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assignments (
    id                    TEXT PRIMARY KEY,
    employee_ref          TEXT REFERENCES employees(id) ON DELETE SET NULL,
    product_id            TEXT REFERENCES products(id) ON DELETE SET NULL,
    employee_id           TEXT NOT NULL DEFAULT '',
    employee_name         TEXT NOT NULL,
    employee_email        TEXT NOT NULL,
    department            TEXT NOT NULL,
    employee_designation  TEXT NOT NULL DEFAULT '',
    operator_name         TEXT NOT NULL DEFAULT '',
    location              TEXT NOT NULL DEFAULT '',
    assigned_date         DATETIME NOT NULL,
    expected_return_date  DATETIME,
    actual_return_date    DATETIME,
    notes                 TEXT NOT NULL DEFAULT '',
    is_active             INTEGER NOT NULL DEFAULT 1,
    asset_type            TEXT NOT NULL CHECK (asset_type IN ('Laptop', 'Adapter', 'Printer', 'MiscItem')),
    serial_number         TEXT NOT NULL DEFAULT '',
    model                 TEXT NOT NULL DEFAULT '',
    manufacturer          TEXT NOT NULL DEFAULT '',
    purchase_date         DATETIME,
    status                TEXT NOT NULL DEFAULT 'active',
    processor_type        TEXT NOT NULL DEFAULT '',
    ram                   TEXT NOT NULL DEFAULT '',
    storage_capacity      TEXT NOT NULL DEFAULT '',
    operating_system      TEXT NOT NULL DEFAULT '',
    adapter_serial_number TEXT NOT NULL DEFAULT '',
    previous_user         TEXT NOT NULL DEFAULT '',
    price                 TEXT NOT NULL DEFAULT '',
    invoice_number        TEXT NOT NULL DEFAULT '',
    po_number             TEXT NOT NULL DEFAULT '',
    warranty              TEXT NOT NULL DEFAULT '',
    vendor_contact        TEXT NOT NULL DEFAULT '',
    vendor_email          TEXT NOT NULL DEFAULT '',
    transaction_details   TEXT NOT NULL DEFAULT '',
    version               INTEGER NOT NULL DEFAULT 1,
    created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assignments_product ON assignments(product_id);
CREATE INDEX IF NOT EXISTS idx_assignments_employee ON assignments(employee_ref);

CREATE TABLE IF NOT EXISTS notifications (
    id              TEXT PRIMARY KEY,
    assignment_id   TEXT REFERENCES assignments(id) ON DELETE SET NULL,
    kind            TEXT NOT NULL,
    recipient_name  TEXT NOT NULL DEFAULT '',
    recipient_email TEXT NOT NULL,
    payload         TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'sent', 'failed')),
    attempts        INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT NOT NULL DEFAULT '',
    next_attempt_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sent_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, next_attempt_at);

CREATE TABLE IF NOT EXISTS attachments (
    product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    kind       TEXT NOT NULL CHECK (kind IN ('invoice', 'po')),
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (product_id, kind)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return migrate(db)
}
