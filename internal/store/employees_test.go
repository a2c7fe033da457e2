package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/assetdesk/internal/db"
	"github.com/erazemk/assetdesk/internal/model"
)

func TestCreateEmployeeAppliesDefaults(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")
	assert.Equal(t, model.DefaultPosition, e.Position)
	assert.Equal(t, model.DefaultEmployeeType, e.EmployeeType)

	got, err := GetEmployeeByExternalID(ctx, database, "E-1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = GetEmployeeByExternalID(ctx, database, "E-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEmployeeRejectsDuplicatesAndMissingFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	newEmployee(t, database, "E-1")

	_, err := CreateEmployee(ctx, database, &model.Employee{
		EmployeeID: "E-1", Name: "Other", Email: "other@example.com", Department: "HR",
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = CreateEmployee(ctx, database, &model.Employee{EmployeeID: "E-2", Name: "No Email", Department: "HR"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
}

func TestUpdateEmployee(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")
	newEmployee(t, database, "E-2")

	updated, err := UpdateEmployee(ctx, database, e.ID, []byte(`{"department":"Finance","position":"Lead"}`))
	require.NoError(t, err)
	assert.Equal(t, "Finance", updated.Department)
	assert.Equal(t, "Lead", updated.Position)
	assert.Equal(t, 2, updated.Version)

	_, err = UpdateEmployee(ctx, database, e.ID, []byte(`{"employeeId":"E-2"}`))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = UpdateEmployee(ctx, database, e.ID, []byte(`{"version":1,"name":"Stale"}`))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListAndDeleteEmployees(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")
	newEmployee(t, database, "E-2")

	employees, err := ListEmployees(ctx, database)
	require.NoError(t, err)
	assert.Len(t, employees, 2)

	require.NoError(t, DeleteEmployee(ctx, database, e.ID))
	assert.ErrorIs(t, DeleteEmployee(ctx, database, e.ID), ErrNotFound)

	employees, err = ListEmployees(ctx, database)
	require.NoError(t, err)
	assert.Len(t, employees, 1)
}
