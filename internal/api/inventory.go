package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/cache"
	"github.com/erazemk/assetdesk/internal/imaging"
	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

// InventoryHandler handles the product catalog endpoints.
type InventoryHandler struct {
	DB      *sql.DB
	Catalog *cache.Catalog
	Log     *zap.Logger
}

// List handles GET /api/inventory?type=&status=.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.ProductFilter
	if t := r.URL.Query().Get("type"); t != "" {
		v, ok := model.ParseVariant(t)
		if !ok {
			jsonError(w, http.StatusBadRequest, "unknown product type "+t)
			return
		}
		filter.Variant = v
	}
	filter.Status = r.URL.Query().Get("status")

	products, err := store.ListProducts(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, products)
}

// Create handles POST /api/inventory/{kind}, where kind is laptop, adapter,
// printer or misc.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	variant, ok := model.ParseVariant(r.PathValue("kind"))
	if !ok {
		jsonError(w, http.StatusNotFound, "unknown product type "+r.PathValue("kind"))
		return
	}

	var p model.Product
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if p.Variant != "" {
		if v, ok := model.ParseVariant(string(p.Variant)); !ok || v != variant {
			jsonError(w, http.StatusBadRequest, "productType does not match the route")
			return
		}
	}
	p.Variant = variant

	created, err := store.CreateProduct(r.Context(), h.DB, &p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("product created",
		zap.String("product_id", created.ID),
		zap.String("type", string(created.Variant)),
		zap.String("serial_number", created.SerialNumber),
	)
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/inventory/{id}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Update handles PATCH /api/inventory/{id}. The body is a JSON merge-patch
// and may carry the version the client last read.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	patch, err := readPatch(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	p, err := store.UpdateProduct(r.Context(), h.DB, id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Catalog.Invalidate(r.Context(), id)
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/inventory/{id}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteProduct(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Catalog.Invalidate(r.Context(), id)

	h.Log.Info("product deleted", zap.String("product_id", id))
	jsonResponse(w, http.StatusOK, messageResponse{Message: "product deleted"})
}

// Assignments handles GET /api/inventory/{id}/assignments: everyone who has
// held the product, newest first.
func (h *InventoryHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Catalog.Get(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	assignments, err := store.ListAssignments(r.Context(), h.DB, store.AssignmentFilter{ProductID: id})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, assignments)
}

// UploadAttachment handles PUT /api/inventory/{id}/attachments/{kind}. The
// body is the raw image of a scanned invoice or purchase order.
func (h *InventoryHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, kind := r.PathValue("id"), r.PathValue("kind")
	if !model.ValidAttachmentKind(kind) {
		jsonError(w, http.StatusBadRequest, "unknown attachment kind "+kind)
		return
	}

	defer r.Body.Close()
	img, err := imaging.Process(r.Body, imaging.Options{})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if err := store.SetAttachment(r.Context(), h.DB, id, kind, img.Data, img.MIME); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Catalog.Invalidate(r.Context(), id)

	h.Log.Info("attachment stored",
		zap.String("product_id", id),
		zap.String("kind", kind),
		zap.Int("bytes", len(img.Data)),
	)
	jsonResponse(w, http.StatusOK, map[string]any{
		"url":    model.AttachmentURL(id, kind),
		"width":  img.Width,
		"height": img.Height,
	})
}

// GetAttachment handles GET /api/inventory/{id}/attachments/{kind}.
func (h *InventoryHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	a, err := store.GetAttachment(r.Context(), h.DB, r.PathValue("id"), r.PathValue("kind"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", a.Mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}
