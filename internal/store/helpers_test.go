package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/assetdesk/internal/model"
)

func newLaptop(t *testing.T, database *sql.DB, serial string) *model.Product {
	t.Helper()
	p, err := CreateProduct(context.Background(), database, &model.Product{
		Variant:      model.VariantLaptop,
		SerialNumber: serial,
		Model:        "X1 Carbon",
		Manufacturer: "Lenovo",
		Specs: model.Specs{
			ProcessorType:   "i7",
			RAM:             "16GB",
			StorageCapacity: "512GB",
			OperatingSystem: "Windows 11",
		},
	})
	require.NoError(t, err)
	return p
}

func newEmployee(t *testing.T, database *sql.DB, employeeID string) *model.Employee {
	t.Helper()
	e, err := CreateEmployee(context.Background(), database, &model.Employee{
		EmployeeID: employeeID,
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Department: "IT",
	})
	require.NoError(t, err)
	return e
}

func assignmentFor(e *model.Employee, p *model.Product) *model.Assignment {
	a := &model.Assignment{AssetType: model.VariantLaptop}
	a.ApplyEmployee(e)
	if p != nil {
		id := p.ID
		a.ProductID = &id
	}
	return a
}
