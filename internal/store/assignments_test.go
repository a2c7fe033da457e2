package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/assetdesk/internal/db"
	"github.com/erazemk/assetdesk/internal/model"
)

func TestCreateAssignmentCopiesDetailsAndMarksProduct(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")

	a, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	assert.True(t, a.IsActive)
	assert.Nil(t, a.ActualReturnDate)
	assert.NotNil(t, a.AssignedDate)
	assert.Equal(t, "E-1", a.EmployeeID)
	assert.Equal(t, "Jane Doe", a.EmployeeName)
	assert.Equal(t, "Lenovo", a.Manufacturer)
	assert.Equal(t, "16GB", a.RAM)
	require.NotNil(t, a.Employee)
	assert.Equal(t, e.ID, a.Employee.ID)

	got, err := GetProduct(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusAssigned, got.Status)
	assert.NotNil(t, got.AssignedDate)
}

func TestCreateAssignmentLinksBySerialNumber(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-42")
	e := newEmployee(t, database, "E-1")

	in := assignmentFor(e, nil)
	in.SerialNumber = "SN-42"
	a, err := CreateAssignment(ctx, database, in, model.PolicyExclusive)
	require.NoError(t, err)
	require.NotNil(t, a.ProductID)
	assert.Equal(t, p.ID, *a.ProductID)

	in = assignmentFor(e, nil)
	in.SerialNumber = "UNKNOWN"
	a, err = CreateAssignment(ctx, database, in, model.PolicyExclusive)
	require.NoError(t, err)
	assert.Nil(t, a.ProductID)
}

func TestCreateAssignmentErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")

	in := assignmentFor(e, nil)
	in.AssetType = "Phone"
	_, err := CreateAssignment(ctx, database, in, model.PolicyExclusive)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)

	missing := "no-such-product"
	in = assignmentFor(e, nil)
	in.ProductID = &missing
	_, err = CreateAssignment(ctx, database, in, model.PolicyExclusive)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := ListAssignments(ctx, database, AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExclusivePolicyRejectsDoubleAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")

	first, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	_, err = CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = ReturnAssignment(ctx, database, first.ID, nil, "")
	require.NoError(t, err)

	_, err = CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	assert.NoError(t, err)
}

func TestSharedPolicyAllowsDoubleAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")

	_, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyShared)
	require.NoError(t, err)
	_, err = CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyShared)
	require.NoError(t, err)

	active, err := ListAssignments(ctx, database, AssignmentFilter{ProductID: p.ID, Active: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestReturnAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")
	in := assignmentFor(e, p)
	in.Notes = "initial"
	a, err := CreateAssignment(ctx, database, in, model.PolicyExclusive)
	require.NoError(t, err)

	returned, err := ReturnAssignment(ctx, database, a.ID, nil, "")
	require.NoError(t, err)
	assert.False(t, returned.IsActive)
	require.NotNil(t, returned.ActualReturnDate)
	assert.Equal(t, "initial", returned.Notes)

	on := model.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	again, err := ReturnAssignment(ctx, database, a.ID, on, "returned damaged")
	require.NoError(t, err)
	assert.Equal(t, "returned damaged", again.Notes)
	assert.True(t, again.ActualReturnDate.Equal(on.Time))

	got, err := GetProduct(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusAvailable, got.Status)
	assert.NotNil(t, got.ReturnDate)

	_, err = ReturnAssignment(ctx, database, "missing", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveAndHistoryPartition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")
	var ids []string
	for _, serial := range []string{"A", "B", "C"} {
		a, err := CreateAssignment(ctx, database, assignmentFor(e, newLaptop(t, database, serial)), model.PolicyExclusive)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := ReturnAssignment(ctx, database, ids[1], nil, "")
	require.NoError(t, err)

	active, err := ListActiveAssignments(ctx, database)
	require.NoError(t, err)
	history, err := ListAssignmentHistory(ctx, database)
	require.NoError(t, err)
	all, err := ListAssignments(ctx, database, AssignmentFilter{})
	require.NoError(t, err)

	assert.Len(t, active, 2)
	require.Len(t, history, 1)
	assert.Equal(t, ids[1], history[0].ID)
	assert.Len(t, all, len(active)+len(history))
	for _, a := range active {
		assert.True(t, a.Outstanding())
	}
}

func TestUpdateAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")
	a, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	updated, err := UpdateAssignment(ctx, database, a.ID, []byte(`{"location":"Branch office"}`), model.PolicyExclusive)
	require.NoError(t, err)
	assert.Equal(t, "Branch office", updated.Location)
	assert.Equal(t, 2, updated.Version)

	_, err = UpdateAssignment(ctx, database, a.ID, []byte(`{"version":1,"notes":"stale"}`), model.PolicyExclusive)
	assert.ErrorIs(t, err, ErrConflict)

	closed, err := UpdateAssignment(ctx, database, a.ID, []byte(`{"actualReturnDate":"2024-05-01","isActive":true}`), model.PolicyExclusive)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)

	got, err := GetProduct(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusAvailable, got.Status)
}

func TestUpdateAssignmentReopenChecksPolicy(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")
	first, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)
	_, err = ReturnAssignment(ctx, database, first.ID, nil, "")
	require.NoError(t, err)
	_, err = CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	_, err = UpdateAssignment(ctx, database, first.ID, []byte(`{"actualReturnDate":null,"isActive":true}`), model.PolicyExclusive)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAssignmentSurvivesDeletes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")
	a, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	require.NoError(t, DeleteProduct(ctx, database, p.ID))
	require.NoError(t, DeleteEmployee(ctx, database, e.ID))

	got, err := GetAssignment(ctx, database, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProductID)
	assert.Nil(t, got.EmployeeRef)
	assert.Nil(t, got.Employee)
	assert.Equal(t, "Jane Doe", got.EmployeeName)
	assert.Equal(t, "SN-1", got.SerialNumber)

	require.NoError(t, DeleteAssignment(ctx, database, a.ID))
	assert.ErrorIs(t, DeleteAssignment(ctx, database, a.ID), ErrNotFound)
}

func TestCreateAssignmentEnqueuesNotification(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	e := newEmployee(t, database, "E-1")
	a, err := CreateAssignment(ctx, database, assignmentFor(e, p), model.PolicyExclusive)
	require.NoError(t, err)

	pending, err := ListNotifications(ctx, database, model.NotificationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n := pending[0]
	assert.Equal(t, model.NotificationAssignmentCreated, n.Kind)
	assert.Equal(t, "jane@example.com", n.RecipientEmail)
	require.NotNil(t, n.AssignmentID)
	assert.Equal(t, a.ID, *n.AssignmentID)

	var notice model.AssignmentNotice
	require.NoError(t, json.Unmarshal([]byte(n.Payload), &notice))
	assert.Equal(t, "Lenovo X1 Carbon", notice.Asset.Name)
	assert.Equal(t, "SN-1", notice.Asset.SerialNumber)
}

func TestUpdateAssignmentKeepsProductLink(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	held := newLaptop(t, database, "SN-1")
	other := newLaptop(t, database, "SN-2")
	e := newEmployee(t, database, "E-1")

	a, err := CreateAssignment(ctx, database, assignmentFor(e, held), model.PolicyExclusive)
	require.NoError(t, err)

	patch, err := json.Marshal(map[string]any{
		"productId":        other.ID,
		"employeeRef":      "someone-else",
		"actualReturnDate": "2024-05-01",
	})
	require.NoError(t, err)

	updated, err := UpdateAssignment(ctx, database, a.ID, patch, model.PolicyExclusive)
	require.NoError(t, err)
	require.NotNil(t, updated.ProductID)
	assert.Equal(t, held.ID, *updated.ProductID)
	require.NotNil(t, updated.EmployeeRef)
	assert.Equal(t, e.ID, *updated.EmployeeRef)
	assert.False(t, updated.IsActive)

	got, err := GetProduct(ctx, database, held.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusAvailable, got.Status, "held product should be released")

	got, err = GetProduct(ctx, database, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusAvailable, got.Status)
	assert.Nil(t, got.ReturnDate)
}

func TestCreateAssignmentTreatsBlankDatesAsUnset(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	e := newEmployee(t, database, "E-1")

	in := assignmentFor(e, nil)
	require.NoError(t, json.Unmarshal([]byte(
		`{"assetType":"misc","assignedDate":"","purchaseDate":"","expectedReturnDate":""}`), in))

	a, err := CreateAssignment(ctx, database, in, model.PolicyExclusive)
	require.NoError(t, err)
	require.NotNil(t, a.AssignedDate)
	assert.WithinDuration(t, time.Now(), a.AssignedDate.Time, time.Minute)
	assert.Nil(t, a.PurchaseDate)
	assert.Nil(t, a.ExpectedReturnDate)
	assert.True(t, a.Outstanding())
}
