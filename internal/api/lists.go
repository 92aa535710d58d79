package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/erazemk/shoplist/internal/cache"
	"github.com/erazemk/shoplist/internal/model"
	"github.com/erazemk/shoplist/internal/query"
	"github.com/erazemk/shoplist/internal/store"
	"github.com/erazemk/shoplist/internal/validate"
)

// ListsHandler handles shopping list CRUD endpoints.
type ListsHandler struct {
	DB    *sql.DB
	Cache *cache.PageCache
}

type listsPage struct {
	Lists       []model.List `json:"lists"`
	TotalLists  int          `json:"totalLists"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}

// Create handles POST /list.
func (h *ListsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields validate.ListFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	patch, err := validate.NewList(fields)
	if err == nil {
		err = h.checkReferences(r.Context(), patch)
	}
	if err != nil {
		writeError(w, r, err, msgListNotFound)
		return
	}

	list, err := store.CreateList(r.Context(), h.DB, *patch.Name, *patch.Description, patch.Entries)
	if err != nil {
		serverError(w, r, err)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusCreated, list)
}

// List handles GET /list.
func (h *ListsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := query.Parse(r.URL.Query())

	var resp listsPage
	entry, hit := cachedPage(r, h.Cache, "lists", p, &resp)
	if hit {
		jsonResponse(w, http.StatusOK, resp)
		return
	}

	page, err := store.ListLists(r.Context(), h.DB, p)
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp = listsPage{
		Lists:       page.Records,
		TotalLists:  page.TotalCount,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}
	storePage(r, h.Cache, entry, resp)
	jsonResponse(w, http.StatusOK, resp)
}

// Get handles GET /list/{id}.
func (h *ListsHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, err := store.GetList(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		serverError(w, r, err)
		return
	}
	if list == nil {
		jsonError(w, http.StatusNotFound, msgListNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Update handles PUT /list/{id}. A provided items array replaces all entries.
func (h *ListsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields validate.ListFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	patch, err := validate.ListUpdate(fields)
	if err == nil {
		err = h.checkReferences(r.Context(), patch)
	}
	if err != nil {
		writeError(w, r, err, msgListNotFound)
		return
	}

	list, err := store.UpdateList(r.Context(), h.DB, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err, msgListNotFound)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusOK, list)
}

// Delete handles DELETE /list/{id}.
func (h *ListsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteList(r.Context(), h.DB, r.PathValue("id")); err != nil {
		writeError(w, r, err, msgListNotFound)
		return
	}

	invalidatePages(r, h.Cache)
	jsonResponse(w, http.StatusOK, messageResponse{Message: msgListDeleted})
}

// checkReferences fails with validate.Errors if any entry names an item that
// does not exist.
func (h *ListsHandler) checkReferences(ctx context.Context, patch model.ListPatch) error {
	if len(patch.Entries) == 0 {
		return nil
	}
	items, err := store.ItemsByID(ctx, h.DB, patch.ItemIDs())
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(items))
	for id := range items {
		known[id] = true
	}
	return validate.UnknownItems(patch.Entries, known)
}
