package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ImedBousakhria/fluffy-lamp/internal/hub"
	"github.com/ImedBousakhria/fluffy-lamp/internal/store"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

// ProductHandlers exposes the product CRUD endpoints. Every successful
// mutation commits to the store first and then publishes the change event,
// so subscribers never see an event for a write that did not land.
type ProductHandlers struct {
	store  *store.Store
	hub    *hub.Hub
	logger *slog.Logger
}

func NewProductHandlers(s *store.Store, h *hub.Hub, logger *slog.Logger) *ProductHandlers {
	return &ProductHandlers{
		store:  s,
		hub:    h,
		logger: logger.With(slog.String("component", "api_products")),
	}
}

// List handles GET /api/products.
func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}.
func (h *ProductHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Create handles POST /api/products.
func (h *ProductHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var input store.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.hub.Publish(protocol.ChangeEvent{
		Kind:      protocol.EventCreated,
		ProductID: product.ID,
		Product:   product,
	})
	writeJSON(w, http.StatusCreated, product)
}

// Update handles PUT /api/products/{id}.
func (h *ProductHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var input store.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.hub.Publish(protocol.ChangeEvent{
		Kind:      protocol.EventUpdated,
		ProductID: product.ID,
		Product:   product,
	})
	writeJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.hub.Publish(protocol.ChangeEvent{
		Kind:      protocol.EventDeleted,
		ProductID: id,
	})
	writeMessage(w, http.StatusOK, "Product removed")
}

func (h *ProductHandlers) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, store.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("store operation failed", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Something went wrong!")
	}
}

// productID extracts and parses the {id} route variable, answering 404 for
// identifiers that cannot name any product.
func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return uuid.Nil, false
	}
	return id, true
}
