package model

import (
	"strings"
	"time"
)

// Assignment policies decide whether a product may be held by more than one
// employee at a time.
const (
	PolicyExclusive = "exclusive"
	PolicyShared    = "shared"
)

// ValidPolicy reports whether p is a known assignment policy.
func ValidPolicy(p string) bool {
	return p == PolicyExclusive || p == PolicyShared
}

// Assignment records a product handed to an employee. Employee and product
// details are copied in when the assignment is created so the record stays
// readable after either source changes or disappears.
type Assignment struct {
	ID          string  `json:"id"`
	EmployeeRef *string `json:"employeeRef"`
	ProductID   *string `json:"productId"`

	EmployeeID          string `json:"employeeId"`
	EmployeeName        string `json:"employeeName"`
	EmployeeEmail       string `json:"employeeEmail"`
	Department          string `json:"department"`
	EmployeeDesignation string `json:"employeeDesignation,omitempty"`
	OperatorName        string `json:"operatorName,omitempty"`
	Location            string `json:"location,omitempty"`

	AssignedDate       *Date  `json:"assignedDate"`
	ExpectedReturnDate *Date  `json:"expectedReturnDate"`
	ActualReturnDate   *Date  `json:"actualReturnDate"`
	Notes              string `json:"notes,omitempty"`
	IsActive           bool   `json:"isActive"`

	AssetType           Variant `json:"assetType"`
	SerialNumber        string  `json:"serialNumber,omitempty"`
	Model               string  `json:"model,omitempty"`
	Manufacturer        string  `json:"manufacturer,omitempty"`
	PurchaseDate        *Date   `json:"purchaseDate,omitempty"`
	Status              string  `json:"status"`
	ProcessorType       string  `json:"processorType,omitempty"`
	RAM                 string  `json:"ram,omitempty"`
	StorageCapacity     string  `json:"storageCapacity,omitempty"`
	OperatingSystem     string  `json:"operatingSystem,omitempty"`
	AdapterSerialNumber string  `json:"adapterSerialNumber,omitempty"`
	PreviousUser        string  `json:"previousUser,omitempty"`
	Price               string  `json:"price,omitempty"`
	InvoiceNumber       string  `json:"invoiceNumber,omitempty"`
	PONumber            string  `json:"poNumber,omitempty"`
	Warranty            string  `json:"warranty,omitempty"`
	VendorContact       string  `json:"vendorContact,omitempty"`
	VendorEmail         string  `json:"vendorEmail,omitempty"`
	TransactionDetails  string  `json:"transactionDetails,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Joined from the employee directory when the employee still exists.
	Employee *Employee `json:"employee,omitempty"`
}

// Clone returns a copy of a that shares no pointers with it.
func (a *Assignment) Clone() *Assignment {
	c := *a
	c.EmployeeRef = cloneString(a.EmployeeRef)
	c.ProductID = cloneString(a.ProductID)
	c.AssignedDate = cloneDate(a.AssignedDate)
	c.ExpectedReturnDate = cloneDate(a.ExpectedReturnDate)
	c.ActualReturnDate = cloneDate(a.ActualReturnDate)
	c.PurchaseDate = cloneDate(a.PurchaseDate)
	if a.Employee != nil {
		e := *a.Employee
		c.Employee = &e
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Outstanding reports whether the equipment is currently out.
func (a *Assignment) Outstanding() bool {
	return a.IsActive && a.ActualReturnDate == nil
}

// Normalize drops blank dates and keeps the lifecycle flags consistent: a
// recorded return always closes the assignment.
func (a *Assignment) Normalize() {
	a.AssignedDate = present(a.AssignedDate)
	a.ExpectedReturnDate = present(a.ExpectedReturnDate)
	a.ActualReturnDate = present(a.ActualReturnDate)
	a.PurchaseDate = present(a.PurchaseDate)
	if a.ActualReturnDate != nil {
		a.IsActive = false
	}
}

// Validate checks the asset type and the denormalized fields every
// assignment must carry. A recognized asset type is canonicalized.
func (a *Assignment) Validate() error {
	v, ok := ParseVariant(string(a.AssetType))
	if !ok {
		return Invalid("assetType", "invalid asset type %q, must be one of: Laptop, Printer, Adapter, MiscItem", a.AssetType)
	}
	a.AssetType = v

	if a.AssignedDate == nil {
		return Invalid("assignedDate", "required")
	}
	if strings.TrimSpace(a.EmployeeName) == "" {
		return Invalid("employeeName", "required")
	}
	if strings.TrimSpace(a.EmployeeEmail) == "" {
		return Invalid("employeeEmail", "required")
	}
	if strings.TrimSpace(a.Department) == "" {
		return Invalid("department", "required")
	}
	if a.Status != "" && !ValidProductStatus(a.Status) {
		return Invalid("status", "invalid status %q", a.Status)
	}
	return nil
}

// ApplyEmployee copies the employee's descriptive fields onto the
// assignment.
func (a *Assignment) ApplyEmployee(e *Employee) {
	ref := e.ID
	a.EmployeeRef = &ref
	a.EmployeeID = e.EmployeeID
	a.EmployeeName = e.Name
	a.EmployeeEmail = e.Email
	a.Department = e.Department
	if a.EmployeeDesignation == "" {
		a.EmployeeDesignation = e.Position
	}
}

// ApplyProduct links the assignment to p and fills descriptive fields the
// caller left empty.
func (a *Assignment) ApplyProduct(p *Product) {
	id := p.ID
	a.ProductID = &id
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&a.SerialNumber, p.SerialNumber)
	fill(&a.Model, p.Model)
	fill(&a.Manufacturer, p.Manufacturer)
	fill(&a.ProcessorType, p.ProcessorType)
	fill(&a.RAM, p.RAM)
	fill(&a.StorageCapacity, p.StorageCapacity)
	fill(&a.OperatingSystem, p.OperatingSystem)
	fill(&a.AdapterSerialNumber, p.AdapterSerialNumber)
	fill(&a.PreviousUser, p.PreviousUser)
	fill(&a.Price, p.Price)
	fill(&a.InvoiceNumber, p.InvoiceNumber)
	fill(&a.PONumber, p.PONumber)
	fill(&a.Warranty, p.Warranty)
	fill(&a.VendorContact, p.VendorContact)
	fill(&a.VendorEmail, p.VendorEmail)
	fill(&a.Location, p.Location)
	if a.PurchaseDate == nil && p.PurchaseDate != nil {
		d := *p.PurchaseDate
		a.PurchaseDate = &d
	}
}

// AssetName is the label used in notifications.
func (a *Assignment) AssetName() string {
	name := strings.TrimSpace(a.Manufacturer + " " + a.Model)
	if name == "" {
		return string(a.AssetType)
	}
	return name
}
