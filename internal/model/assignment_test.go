package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAssignmentNormalize(t *testing.T) {
	a := &Assignment{IsActive: true}
	if !a.Outstanding() {
		t.Fatal("new assignment should be outstanding")
	}
	a.ActualReturnDate = Now()
	a.Normalize()
	if a.IsActive {
		t.Error("return date set but still active")
	}
	if a.Outstanding() {
		t.Error("returned assignment reported as outstanding")
	}
}

func TestAssignmentValidate(t *testing.T) {
	base := func() *Assignment {
		return &Assignment{
			AssetType:     "misc",
			AssignedDate:  Now(),
			EmployeeName:  "Jane",
			EmployeeEmail: "jane@example.com",
			Department:    "IT",
		}
	}

	a := base()
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.AssetType != VariantMiscItem {
		t.Errorf("assetType = %q, want canonical MiscItem", a.AssetType)
	}

	a = base()
	a.AssetType = "Phone"
	if err := a.Validate(); err == nil {
		t.Error("expected error for unknown asset type")
	}

	a = base()
	a.EmployeeEmail = ""
	if err := a.Validate(); err == nil {
		t.Error("expected error for missing employee email")
	}
}

func TestApplyProductKeepsExplicitValues(t *testing.T) {
	a := &Assignment{Model: "Custom"}
	p := &Product{
		ID:           "p1",
		Model:        "X1",
		Manufacturer: "Lenovo",
		SerialNumber: "SN1",
		PurchaseDate: NewDate(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
		Specs:        Specs{RAM: "16GB"},
	}
	a.ApplyProduct(p)

	if a.ProductID == nil || *a.ProductID != "p1" {
		t.Fatalf("productId = %v, want p1", a.ProductID)
	}
	if a.Model != "Custom" {
		t.Errorf("model overwritten: %q", a.Model)
	}
	if a.Manufacturer != "Lenovo" || a.SerialNumber != "SN1" || a.RAM != "16GB" {
		t.Errorf("product fields not copied: %+v", a)
	}
	if a.PurchaseDate == nil || a.PurchaseDate.Year() != 2023 {
		t.Errorf("purchaseDate = %v", a.PurchaseDate)
	}
}

func TestDateAcceptsCalendarDates(t *testing.T) {
	var body struct {
		When *Date `json:"when"`
	}
	if err := json.Unmarshal([]byte(`{"when":"2024-01-01"}`), &body); err != nil {
		t.Fatal(err)
	}
	if body.When == nil || body.When.Format("2006-01-02") != "2024-01-01" {
		t.Fatalf("when = %v", body.When)
	}

	out, err := json.Marshal(body.When)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"2024-01-01T00:00:00Z"` {
		t.Errorf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"when":"yesterday"}`), &body); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestBlankDatesNormalizeToNil(t *testing.T) {
	var a Assignment
	body := `{"employeeId":"E1","assetType":"misc","assignedDate":"2024-02-01","purchaseDate":"","expectedReturnDate":" "}`
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	a.Normalize()
	if a.PurchaseDate != nil || a.ExpectedReturnDate != nil {
		t.Errorf("blank dates = %v, %v, want nil", a.PurchaseDate, a.ExpectedReturnDate)
	}
	if a.AssignedDate == nil || a.AssignedDate.Format("2006-01-02") != "2024-02-01" {
		t.Errorf("assignedDate = %v", a.AssignedDate)
	}

	var p Product
	if err := json.Unmarshal([]byte(`{"purchaseDate":""}`), &p); err != nil {
		t.Fatalf("unmarshal product: %v", err)
	}
	p.Normalize()
	if p.PurchaseDate != nil {
		t.Errorf("product purchaseDate = %v, want nil", p.PurchaseDate)
	}
}

func TestCloneSharesNoPointers(t *testing.T) {
	ref, pid := "emp", "prod"
	a := &Assignment{EmployeeRef: &ref, ProductID: &pid, AssignedDate: Now(), Employee: &Employee{Name: "Jane"}}

	c := a.Clone()
	if err := json.Unmarshal([]byte(`{"productId":"other","employeeRef":"x","assignedDate":"2020-01-01"}`), c); err != nil {
		t.Fatal(err)
	}
	c.Employee.Name = "John"

	if *a.ProductID != "prod" || *a.EmployeeRef != "emp" {
		t.Errorf("links changed through clone: %s, %s", *a.EmployeeRef, *a.ProductID)
	}
	if a.AssignedDate.Year() == 2020 {
		t.Error("assignedDate changed through clone")
	}
	if a.Employee.Name != "Jane" {
		t.Error("employee changed through clone")
	}

	p := &Product{PurchaseDate: Now()}
	pc := p.Clone()
	if err := json.Unmarshal([]byte(`{"purchaseDate":"2020-01-01"}`), pc); err != nil {
		t.Fatal(err)
	}
	if p.PurchaseDate.Year() == 2020 {
		t.Error("purchaseDate changed through clone")
	}
}
