package model

import (
	"strings"
	"time"
)

// Variant is the equipment subtype of a product. A product keeps its
// variant for its whole lifetime.
type Variant string

// Product variants.
const (
	VariantLaptop   Variant = "Laptop"
	VariantAdapter  Variant = "Adapter"
	VariantPrinter  Variant = "Printer"
	VariantMiscItem Variant = "MiscItem"
)

// Variants lists all known variants in display order.
var Variants = []Variant{VariantLaptop, VariantAdapter, VariantPrinter, VariantMiscItem}

// ParseVariant maps a tag or route segment ("laptop", "Misc", "MiscItem")
// to a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "laptop":
		return VariantLaptop, true
	case "adapter":
		return VariantAdapter, true
	case "printer":
		return VariantPrinter, true
	case "misc", "miscitem", "misc_item":
		return VariantMiscItem, true
	default:
		return "", false
	}
}

// Product statuses.
const (
	ProductStatusAssigned    = "assigned"
	ProductStatusAvailable   = "available"
	ProductStatusMaintenance = "maintenance"
	ProductStatusRetired     = "retired"
	ProductStatusNew         = "new"
	ProductStatusActive      = "active"
	ProductStatusRepair      = "repair"
)

// ValidProductStatus reports whether status is one of the known statuses.
func ValidProductStatus(status string) bool {
	switch status {
	case ProductStatusAssigned, ProductStatusAvailable, ProductStatusMaintenance,
		ProductStatusRetired, ProductStatusNew, ProductStatusActive, ProductStatusRepair:
		return true
	}
	return false
}

// Product is a unit of trackable equipment. Base fields apply to every
// variant; Specs holds the variant-specific fields, of which only those
// belonging to Variant may be set.
type Product struct {
	ID                 string  `json:"id"`
	Variant            Variant `json:"productType"`
	SerialNumber       string  `json:"serialNumber,omitempty"`
	Model              string  `json:"model,omitempty"`
	Manufacturer       string  `json:"manufacturer,omitempty"`
	PurchaseDate       *Date   `json:"purchaseDate,omitempty"`
	Status             string  `json:"status"`
	Price              string  `json:"price,omitempty"`
	InvoiceNumber      string  `json:"invoiceNumber,omitempty"`
	PONumber           string  `json:"poNumber,omitempty"`
	Warranty           string  `json:"warranty,omitempty"`
	PreviousUser       string  `json:"previousUser,omitempty"`
	VendorContact      string  `json:"vendorContact,omitempty"`
	VendorEmail        string  `json:"vendorEmail,omitempty"`
	Location           string  `json:"location,omitempty"`
	AssignedDate       *Date   `json:"assignedDate,omitempty"`
	ReturnDate         *Date   `json:"returnDate,omitempty"`
	AttachedInvoice    string  `json:"attachedInvoice,omitempty"`
	AttachedPO         string  `json:"attachedPO,omitempty"`
	TransactionDetails string  `json:"transactionDetails,omitempty"`
	Specs
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Specs holds every variant-specific field. They are stored together as
// one JSON document.
type Specs struct {
	// Laptop.
	ProcessorType       string `json:"processorType,omitempty"`
	RAM                 string `json:"ram,omitempty"`
	StorageCapacity     string `json:"storageCapacity,omitempty"`
	OperatingSystem     string `json:"operatingSystem,omitempty"`
	PurchasedWindowsKey string `json:"purchasedWindowsKey,omitempty"`
	OfficeKey           string `json:"officeKey,omitempty"`
	ControlAccounts     string `json:"controlAccounts,omitempty"`
	AdminPassword       string `json:"adminPassword,omitempty"`

	// Adapter.
	Wattage           string `json:"wattage,omitempty"`
	CompatibleDevices string `json:"compatibleDevices,omitempty"`
	CableLength       string `json:"cableLength,omitempty"`

	// Printer.
	PrinterType  string `json:"type,omitempty"`
	Connectivity string `json:"connectivity,omitempty"`
	PaperSize    string `json:"paperSize,omitempty"`

	// MiscItem.
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`

	// Shared by several variants.
	AdapterSerialNumber string `json:"adapterSerialNumber,omitempty"`
	MACAddress          string `json:"macAddress,omitempty"`
	IPAddress           string `json:"ipAddress,omitempty"`
	HostName            string `json:"hostName,omitempty"`
	PartCode            string `json:"partCode,omitempty"`
	VerifiedStatus      string `json:"verifiedStatus,omitempty"`
	ConditionStatus     string `json:"conditionStatus,omitempty"`
}

type specField struct {
	name  string
	value *string
}

func (s *Specs) fields() []specField {
	return []specField{
		{"processorType", &s.ProcessorType},
		{"ram", &s.RAM},
		{"storageCapacity", &s.StorageCapacity},
		{"operatingSystem", &s.OperatingSystem},
		{"purchasedWindowsKey", &s.PurchasedWindowsKey},
		{"officeKey", &s.OfficeKey},
		{"controlAccounts", &s.ControlAccounts},
		{"adminPassword", &s.AdminPassword},
		{"wattage", &s.Wattage},
		{"compatibleDevices", &s.CompatibleDevices},
		{"cableLength", &s.CableLength},
		{"type", &s.PrinterType},
		{"connectivity", &s.Connectivity},
		{"paperSize", &s.PaperSize},
		{"category", &s.Category},
		{"description", &s.Description},
		{"adapterSerialNumber", &s.AdapterSerialNumber},
		{"macAddress", &s.MACAddress},
		{"ipAddress", &s.IPAddress},
		{"hostName", &s.HostName},
		{"partCode", &s.PartCode},
		{"verifiedStatus", &s.VerifiedStatus},
		{"conditionStatus", &s.ConditionStatus},
	}
}

type variantRule struct {
	required []string
	optional []string
}

var variantRules = map[Variant]variantRule{
	VariantLaptop: {
		required: []string{"processorType", "ram", "storageCapacity", "operatingSystem"},
		optional: []string{"adapterSerialNumber", "purchasedWindowsKey", "macAddress", "ipAddress",
			"hostName", "officeKey", "controlAccounts", "adminPassword", "conditionStatus"},
	},
	VariantAdapter: {
		required: []string{"wattage", "compatibleDevices", "cableLength"},
		optional: []string{"verifiedStatus", "partCode"},
	},
	VariantPrinter: {
		required: []string{"type", "connectivity", "paperSize"},
		optional: []string{"macAddress", "ipAddress", "hostName", "partCode", "verifiedStatus", "conditionStatus"},
	},
	VariantMiscItem: {
		required: []string{"category", "description"},
		optional: []string{"partCode", "adapterSerialNumber", "verifiedStatus", "conditionStatus"},
	},
}

// RequiredFields returns the variant fields that must be non-empty.
func RequiredFields(v Variant) []string {
	return variantRules[v].required
}

// Validate checks the variant tag, the status and the variant-specific
// fields: required ones must be present and fields of other variants must
// be empty.
func (p *Product) Validate() error {
	rule, ok := variantRules[p.Variant]
	if !ok {
		return Invalid("productType", "unknown product type %q", p.Variant)
	}
	if !ValidProductStatus(p.Status) {
		return Invalid("status", "invalid status %q", p.Status)
	}

	allowed := make(map[string]bool, len(rule.required)+len(rule.optional))
	for _, name := range rule.required {
		allowed[name] = true
	}
	for _, name := range rule.optional {
		allowed[name] = true
	}

	values := make(map[string]string)
	for _, f := range p.Specs.fields() {
		v := strings.TrimSpace(*f.value)
		if v != "" && !allowed[f.name] {
			return Invalid(f.name, "not applicable to %s", p.Variant)
		}
		values[f.name] = v
	}
	for _, name := range rule.required {
		if values[name] == "" {
			return Invalid(name, "required for %s", p.Variant)
		}
	}
	return nil
}

// Normalize drops blank dates.
func (p *Product) Normalize() {
	p.PurchaseDate = present(p.PurchaseDate)
	p.AssignedDate = present(p.AssignedDate)
	p.ReturnDate = present(p.ReturnDate)
}

// Clone returns a copy of p that shares no pointers with it.
func (p *Product) Clone() *Product {
	c := *p
	c.PurchaseDate = cloneDate(p.PurchaseDate)
	c.AssignedDate = cloneDate(p.AssignedDate)
	c.ReturnDate = cloneDate(p.ReturnDate)
	return &c
}

// DisplayName is a short human label such as "Lenovo X1".
func (p *Product) DisplayName() string {
	name := strings.TrimSpace(p.Manufacturer + " " + p.Model)
	if name == "" {
		return string(p.Variant)
	}
	return name
}
