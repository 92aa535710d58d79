package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shoplist/internal/cache"
	"github.com/erazemk/shoplist/internal/model"
	"github.com/erazemk/shoplist/internal/query"
	"github.com/erazemk/shoplist/internal/store"
	"github.com/erazemk/shoplist/internal/validate"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB    *sql.DB
	Cache *cache.PageCache
}

type itemsPage struct {
	Items       []model.Item `json:"items"`
	TotalItems  int          `json:"totalItems"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}

// Create handles POST /item.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields validate.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	patch, err := validate.NewItem(fields)
	if err != nil {
		writeError(w, r, err, msgItemNotFound)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, *patch.Name, *patch.Description, *patch.Price)
	if err != nil {
		serverError(w, r, err)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusCreated, item)
}

// List handles GET /item.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := query.Parse(r.URL.Query())

	var resp itemsPage
	entry, hit := cachedPage(r, h.Cache, "items", p, &resp)
	if hit {
		jsonResponse(w, http.StatusOK, resp)
		return
	}

	page, err := store.ListItems(r.Context(), h.DB, p)
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp = itemsPage{
		Items:       page.Records,
		TotalItems:  page.TotalCount,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}
	storePage(r, h.Cache, entry, resp)
	jsonResponse(w, http.StatusOK, resp)
}

// Get handles GET /item/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		serverError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, msgItemNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /item/{id}. Only provided fields change.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields validate.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	patch, err := validate.ItemUpdate(fields)
	if err != nil {
		writeError(w, r, err, msgItemNotFound)
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err, msgItemNotFound)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /item/{id} and removes the item from every list.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := store.DeleteItem(r.Context(), h.DB, r.PathValue("id")); err != nil {
		writeError(w, r, err, msgItemNotFound)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusOK, messageResponse{Message: msgItemDeleted})
}
