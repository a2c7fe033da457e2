package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/assetdesk/internal/db"
	"github.com/erazemk/assetdesk/internal/model"
)

func TestCreateAndGetOperator(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	op, err := CreateOperator(ctx, database, "testuser", "hash123", model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "testuser", op.Username)
	assert.Equal(t, model.RoleUser, op.Role)

	got, err := GetOperator(ctx, database, op.ID)
	require.NoError(t, err)
	assert.Equal(t, "testuser", got.Username)
	assert.Equal(t, "hash123", got.PasswordHash)
}

func TestCreateOperatorRejectsDuplicateAndBadRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateOperator(ctx, database, "alice", "hash", model.RoleAdmin)
	require.NoError(t, err)

	_, err = CreateOperator(ctx, database, "alice", "hash", model.RoleUser)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = CreateOperator(ctx, database, "bob", "hash", "superuser")
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetOperatorByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateOperator(ctx, database, "alice", "hash", model.RoleAdmin)
	require.NoError(t, err)

	op, err := GetOperatorByUsername(ctx, database, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", op.Username)

	_, err = GetOperatorByUsername(ctx, database, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountOperators(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateOperator(ctx, database, "a", "hash", model.RoleUser)
	require.NoError(t, err)
	_, err = CreateOperator(ctx, database, "b", "hash", model.RoleManager)
	require.NoError(t, err)

	ops, err := ListOperators(ctx, database)
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	n, err := CountOperators(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteOperatorFreesUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	op, err := CreateOperator(ctx, database, "deleteme", "hash", model.RoleUser)
	require.NoError(t, err)
	require.NoError(t, DeleteOperator(ctx, database, op.ID))

	ops, err := ListOperators(ctx, database)
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = GetOperatorByUsername(ctx, database, "deleteme")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, DeleteOperator(ctx, database, op.ID), ErrNotFound)

	_, err = CreateOperator(ctx, database, "deleteme", "hash", model.RoleUser)
	assert.NoError(t, err)
}

func TestUpdateOperatorPasswordAndRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	op, err := CreateOperator(ctx, database, "pwuser", "oldhash", model.RoleUser)
	require.NoError(t, err)

	require.NoError(t, UpdateOperatorPassword(ctx, database, op.ID, "newhash"))
	require.NoError(t, UpdateOperatorRole(ctx, database, op.ID, model.RoleManager))

	got, err := GetOperator(ctx, database, op.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.Equal(t, model.RoleManager, got.Role)

	assert.ErrorIs(t, UpdateOperatorRole(ctx, database, 999, model.RoleUser), ErrNotFound)
}
