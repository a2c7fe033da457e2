package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/assetdesk/internal/db"
	"github.com/erazemk/assetdesk/internal/model"
)

func TestSetAndGetAttachment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")

	require.NoError(t, SetAttachment(ctx, database, p.ID, model.AttachmentInvoice, []byte("v1"), "image/jpeg"))
	require.NoError(t, SetAttachment(ctx, database, p.ID, model.AttachmentInvoice, []byte("v2"), "image/jpeg"))

	a, err := GetAttachment(ctx, database, p.ID, model.AttachmentInvoice)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), a.Data)
	assert.Equal(t, "image/jpeg", a.Mime)

	got, err := GetProduct(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttachmentURL(p.ID, model.AttachmentInvoice), got.AttachedInvoice)
	assert.Empty(t, got.AttachedPO)

	_, err = GetAttachment(ctx, database, p.ID, model.AttachmentPO)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAttachmentErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	err := SetAttachment(ctx, database, "missing", model.AttachmentPO, []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrNotFound)

	p := newLaptop(t, database, "SN-1")
	err = SetAttachment(ctx, database, p.ID, "receipt", []byte("x"), "image/jpeg")
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAttachmentsDeletedWithProduct(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := newLaptop(t, database, "SN-1")
	require.NoError(t, SetAttachment(ctx, database, p.ID, model.AttachmentPO, []byte("x"), "image/jpeg"))
	require.NoError(t, DeleteProduct(ctx, database, p.ID))

	_, err := GetAttachment(ctx, database, p.ID, model.AttachmentPO)
	assert.ErrorIs(t, err, ErrNotFound)
}
