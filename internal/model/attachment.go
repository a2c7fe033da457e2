package model

import (
	"fmt"
	"time"
)

// Attachment kinds.
const (
	AttachmentInvoice = "invoice"
	AttachmentPO      = "po"
)

// ValidAttachmentKind reports whether kind names a supported attachment.
func ValidAttachmentKind(kind string) bool {
	return kind == AttachmentInvoice || kind == AttachmentPO
}

// AttachmentURL is the reference stored on the product for an attachment.
func AttachmentURL(productID, kind string) string {
	return fmt.Sprintf("/api/inventory/%s/attachments/%s", productID, kind)
}

// Attachment is a scanned document kept with a product.
type Attachment struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Data      []byte    `json:"-"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"createdAt"`
}
