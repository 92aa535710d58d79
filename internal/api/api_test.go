package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shoplist/internal/cache"
	"github.com/erazemk/shoplist/internal/db"
	"github.com/erazemk/shoplist/internal/model"
	"github.com/erazemk/shoplist/internal/store"
)

func setupTestServer(t *testing.T, opts Options) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, opts))
	t.Cleanup(server.Close)
	return server, database
}

// do sends body (a string is sent verbatim, anything else is JSON encoded)
// and returns the status code and response body.
func do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

func createItem(t *testing.T, server *httptest.Server, name string, price float64) model.Item {
	t.Helper()
	status, body := do(t, "POST", server.URL+"/item", map[string]any{
		"name":        name,
		"description": name + " description",
		"price":       price,
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", body)
	return decode[model.Item](t, body)
}

func TestItemsAPIFlow(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	status, body := do(t, "POST", server.URL+"/item", map[string]any{
		"name":        "Apple",
		"description": "A fresh apple",
		"price":       0.5,
	})
	require.Equal(t, http.StatusCreated, status)
	item := decode[model.Item](t, body)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Apple", item.Name)
	assert.Equal(t, "A fresh apple", item.Description)
	assert.Equal(t, 0.5, item.Price)

	status, body = do(t, "GET", server.URL+"/item/"+item.ID, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[model.Item](t, body)
	assert.Equal(t, item.Name, got.Name)
	assert.Equal(t, item.Description, got.Description)
	assert.Equal(t, item.Price, got.Price)

	status, body = do(t, "PUT", server.URL+"/item/"+item.ID, map[string]any{"price": 0.6})
	require.Equal(t, http.StatusOK, status)
	got = decode[model.Item](t, body)
	assert.Equal(t, "Apple", got.Name)
	assert.Equal(t, 0.6, got.Price)

	status, body = do(t, "DELETE", server.URL+"/item/"+item.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, msgItemDeleted, decode[messageResponse](t, body).Message)

	for range 2 {
		status, body = do(t, "GET", server.URL+"/item/"+item.ID, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Item not found", decode[messageResponse](t, body).Message)
	}

	status, _ = do(t, "PUT", server.URL+"/item/"+item.ID, map[string]any{"price": 1})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, "DELETE", server.URL+"/item/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateItemValidation(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	tests := []struct {
		name string
		body any
		want []string
	}{
		{
			name: "name too long",
			body: map[string]any{"name": strings.Repeat("a", 51), "price": 1},
			want: []string{"Name must not exceed 50 characters."},
		},
		{
			name: "description too long",
			body: map[string]any{"name": "Milk", "description": strings.Repeat("d", 256), "price": 1},
			want: []string{"Description must not exceed 255 characters."},
		},
		{
			name: "zero price",
			body: map[string]any{"name": "Milk", "price": 0},
			want: []string{"Price is required and must be a positive number."},
		},
		{
			name: "negative price",
			body: map[string]any{"name": "Milk", "price": -1},
			want: []string{"Price is required and must be a positive number."},
		},
		{
			name: "string price",
			body: map[string]any{"name": "Milk", "price": "abc"},
			want: []string{"Price is required and must be a positive number."},
		},
		{
			name: "everything missing",
			body: map[string]any{},
			want: []string{
				"Name is required and must be a non-empty string.",
				"Price is required and must be a positive number.",
			},
		},
		{
			name: "empty body",
			body: "",
			want: []string{
				"Name is required and must be a non-empty string.",
				"Price is required and must be a positive number.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, "POST", server.URL+"/item", tt.body)
			require.Equal(t, http.StatusBadRequest, status)
			resp := decode[messageResponse](t, body)
			assert.Equal(t, "Validation failed", resp.Message)
			for _, msg := range tt.want {
				assert.Contains(t, resp.Errors, msg)
			}
		})
	}

	// Nothing was persisted.
	_, body := do(t, "GET", server.URL+"/item", nil)
	assert.Equal(t, 0, decode[itemsPage](t, body).TotalItems)
}

func TestUpdateItemValidation(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	item := createItem(t, server, "Milk", 1.5)

	status, body := do(t, "PUT", server.URL+"/item/"+item.ID, map[string]any{"name": "", "price": "free"})
	require.Equal(t, http.StatusBadRequest, status)
	resp := decode[messageResponse](t, body)
	assert.Equal(t, []string{
		"Name must be a non-empty string if provided.",
		"Price must be a positive number if provided.",
	}, resp.Errors)

	_, body = do(t, "GET", server.URL+"/item/"+item.ID, nil)
	assert.Equal(t, "Milk", decode[model.Item](t, body).Name)
}

func TestUpdateItemDeletedDuringUpdate(t *testing.T) {
	server, database := setupTestServer(t, Options{})
	item := createItem(t, server, "Milk", 1.5)

	_, err := database.Exec(`CREATE TRIGGER vanish AFTER UPDATE ON items BEGIN DELETE FROM items WHERE id = NEW.id; END`)
	require.NoError(t, err)

	status, body := do(t, "PUT", server.URL+"/item/"+item.ID, map[string]any{"price": 2})
	require.Equal(t, http.StatusNotFound, status, "body: %s", body)
	assert.Equal(t, msgItemNotFound, decode[messageResponse](t, body).Message)
}

func TestItemSanitized(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	status, body := do(t, "POST", server.URL+"/item", map[string]any{
		"name":        "<b>Milk</b><script>alert(1)</script>",
		"description": "Fish &amp; <i>chips</i>",
		"price":       2,
	})
	require.Equal(t, http.StatusCreated, status)
	item := decode[model.Item](t, body)
	assert.Equal(t, "Milk", item.Name)
	assert.Equal(t, "Fish & chips", item.Description)
}

func TestInvalidRequestBody(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	for _, path := range []string{"/item", "/list"} {
		status, body := do(t, "POST", server.URL+path, "{not json")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid request body", decode[messageResponse](t, body).Message)
	}
}

func TestItemsPagination(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	createItem(t, server, "Apple", 0.5)
	createItem(t, server, "Banana", 0.3)

	status, body := do(t, "GET", server.URL+"/item?limit=1&page=1", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[itemsPage](t, body)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	// Invalid values fall back to the defaults.
	_, body = do(t, "GET", server.URL+"/item?limit=abc&page=-3", nil)
	page = decode[itemsPage](t, body)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
}

func TestItemsSearchAndSort(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	createItem(t, server, "banana", 0.3)
	createItem(t, server, "Apple", 0.5)
	createItem(t, server, "Pineapple", 2.5)

	_, body := do(t, "GET", server.URL+"/item?filter=name&search=apple&sortBy=price&order=desc", nil)
	page := decode[itemsPage](t, body)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Pineapple", page.Items[0].Name)
	assert.Equal(t, "Apple", page.Items[1].Name)

	_, body = do(t, "GET", server.URL+"/item?sortBy=name", nil)
	page = decode[itemsPage](t, body)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "Apple", page.Items[0].Name)
	assert.Equal(t, "banana", page.Items[1].Name)

	_, body = do(t, "GET", server.URL+"/item?filter=colour&search=red", nil)
	page = decode[itemsPage](t, body)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}

func TestItemsSearchUnicode(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	createItem(t, server, "Äpfel", 1)
	createItem(t, server, "Čokolada", 2)

	for _, search := range []string{"äpfel", "ÄPFEL", "čok"} {
		q := url.Values{"filter": {"name"}, "search": {search}}
		status, body := do(t, "GET", server.URL+"/item?"+q.Encode(), nil)
		require.Equal(t, http.StatusOK, status)
		page := decode[itemsPage](t, body)
		assert.Equal(t, 1, page.TotalItems, "search=%s", search)
	}
}

func TestItemsPageOutOfRange(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	createItem(t, server, "Apple", 0.5)

	status, body := do(t, "GET", server.URL+"/item?page=9223372036854775807&limit=2", nil)
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	page := decode[itemsPage](t, body)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)

	status, body = do(t, "GET", server.URL+"/item?limit=9223372036854775807", nil)
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	page = decode[itemsPage](t, body)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListsAPIFlow(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	apple := createItem(t, server, "Apple", 0.5)
	milk := createItem(t, server, "Milk", 1.5)

	status, body := do(t, "POST", server.URL+"/list", map[string]any{
		"name":        "Weekly Groceries",
		"description": "Items to buy for the week",
		"items": []map[string]any{
			{"item": apple.ID, "quantity": 5},
			{"item": milk.ID, "quantity": 2, "status": "purchased"},
		},
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", body)
	list := decode[model.List](t, body)
	assert.NotEmpty(t, list.ID)
	require.Len(t, list.Items, 2)
	require.NotNil(t, list.Items[0].Item)
	assert.Equal(t, "Apple", list.Items[0].Item.Name)
	assert.Equal(t, model.StatusNotPurchased, list.Items[0].Status)
	assert.Equal(t, model.StatusPurchased, list.Items[1].Status)

	status, body = do(t, "PUT", server.URL+"/list/"+list.ID, map[string]any{
		"name":  "Updated List",
		"items": []map[string]any{{"item": milk.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	updated := decode[model.List](t, body)
	assert.Equal(t, "Updated List", updated.Name)
	assert.Equal(t, "Items to buy for the week", updated.Description)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Milk", updated.Items[0].Item.Name)

	status, body = do(t, "GET", server.URL+"/list", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[listsPage](t, body)
	assert.Equal(t, 1, page.TotalLists)
	require.Len(t, page.Lists, 1)
	require.Len(t, page.Lists[0].Items, 1)
	assert.Equal(t, "Milk", page.Lists[0].Items[0].Item.Name)

	status, body = do(t, "DELETE", server.URL+"/list/"+list.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Shopping list deleted", decode[messageResponse](t, body).Message)

	for range 2 {
		status, body = do(t, "GET", server.URL+"/list/"+list.ID, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Shopping list not found", decode[messageResponse](t, body).Message)
	}

	status, _ = do(t, "DELETE", server.URL+"/list/"+list.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, "PUT", server.URL+"/list/"+list.ID, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCascadeDelete(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	item := createItem(t, server, "Bread", 2.2)

	status, body := do(t, "POST", server.URL+"/list", map[string]any{
		"name":  "Bakery",
		"items": []map[string]any{{"item": item.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, status)
	list := decode[model.List](t, body)

	status, body = do(t, "DELETE", server.URL+"/item/"+item.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Item deleted and removed from all shopping lists", decode[messageResponse](t, body).Message)

	status, body = do(t, "GET", server.URL+"/list/"+list.ID, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[model.List](t, body)
	assert.Empty(t, got.Items)
	assert.Contains(t, string(body), `"items":[]`)
}

func TestListEntryValidation(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	status, body := do(t, "POST", server.URL+"/list", map[string]any{
		"name":  "Test List",
		"items": []map[string]any{{"item": "", "quantity": 0}},
	})
	require.Equal(t, http.StatusBadRequest, status)
	resp := decode[messageResponse](t, body)
	assert.Contains(t, resp.Errors, "Item at index 0 is missing 'item'.")
	assert.Contains(t, resp.Errors, "Item at index 0 must have a valid 'quantity' greater than 0.")

	status, body = do(t, "POST", server.URL+"/list", map[string]any{"name": "Test List", "items": "nope"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"Items must be an array."}, decode[messageResponse](t, body).Errors)
}

func TestListUnknownItem(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	item := createItem(t, server, "Milk", 1.5)

	status, body := do(t, "POST", server.URL+"/list", map[string]any{
		"name": "Test List",
		"items": []map[string]any{
			{"item": item.ID, "quantity": 1},
			{"item": "no-such-item", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t,
		[]string{"Item at index 1 references an item that does not exist."},
		decode[messageResponse](t, body).Errors,
	)

	_, body = do(t, "GET", server.URL+"/list", nil)
	assert.Equal(t, 0, decode[listsPage](t, body).TotalLists)
}

func TestListsFilterByItem(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	milk := createItem(t, server, "Milk", 1.5)

	status, _ := do(t, "POST", server.URL+"/list", map[string]any{
		"name":  "Dairy",
		"items": []map[string]any{{"item": milk.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, status)
	status, _ = do(t, "POST", server.URL+"/list", map[string]any{"name": "Empty", "items": []any{}})
	require.Equal(t, http.StatusCreated, status)

	_, body := do(t, "GET", server.URL+"/list?filter=item&search=milk", nil)
	page := decode[listsPage](t, body)
	require.Len(t, page.Lists, 1)
	assert.Equal(t, "Dairy", page.Lists[0].Name)

	status, body = do(t, "GET", server.URL+"/list?filter=item&search=NonExistentItem", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"lists":[],"totalLists":0,"currentPage":1,"totalPages":0}`, string(body))
}

func TestUnknownIDs(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	for _, path := range []string{"/item/not-a-uuid", "/item/00000000-0000-0000-0000-000000000000"} {
		status, body := do(t, "GET", server.URL+path, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Item not found", decode[messageResponse](t, body).Message)
	}

	status, body := do(t, "GET", server.URL+"/list/12345", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Shopping list not found", decode[messageResponse](t, body).Message)
}

func TestRequestID(t *testing.T) {
	server, _ := setupTestServer(t, Options{})

	resp, err := http.Get(server.URL + "/item")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)

	req, _ := http.NewRequest("GET", server.URL+"/item", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	server, _ := setupTestServer(t, Options{CORSOrigins: []string{"http://localhost:3000"}})

	req, _ := http.NewRequest("OPTIONS", server.URL+"/item", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest("GET", server.URL+"/item", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/item", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal Server Error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	server, database := setupTestServer(t, Options{Version: "1.0.0"})

	for _, path := range []string{"/health", "/healthz"} {
		status, body := do(t, "GET", server.URL+path, nil)
		require.Equal(t, http.StatusOK, status)
		resp := decode[HealthResponse](t, body)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "shoplist", resp.Service)
		assert.Equal(t, "1.0.0", resp.Version)
		assert.Equal(t, "up", resp.DB)
		assert.Equal(t, "disabled", resp.Cache)
	}

	database.Close()
	status, body := do(t, "GET", server.URL+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "down", decode[HealthResponse](t, body).DB)
}

func setupCachedServer(t *testing.T) (*httptest.Server, *sql.DB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	server, database := setupTestServer(t, Options{Cache: cache.New(client, time.Minute)})
	return server, database, mr
}

func TestPageCache(t *testing.T) {
	server, database, mr := setupCachedServer(t)
	createItem(t, server, "Apple", 0.5)

	_, body := do(t, "GET", server.URL+"/item", nil)
	assert.Equal(t, 1, decode[itemsPage](t, body).TotalItems)
	_, body = do(t, "GET", server.URL+"/list?page=1&limit=20", nil)
	assert.Equal(t, 0, decode[listsPage](t, body).TotalLists)
	assert.True(t, mr.Exists(cache.Key(1, "items", url.Values{"page": {"1"}, "limit": {"20"}})))

	// Writes that bypass the API are not visible until the cache is invalidated.
	_, err := store.CreateItem(context.Background(), database, "Banana", "", 0.3)
	require.NoError(t, err)
	_, body = do(t, "GET", server.URL+"/item?page=1", nil)
	assert.Equal(t, 1, decode[itemsPage](t, body).TotalItems)

	createItem(t, server, "Cherry", 4)

	_, body = do(t, "GET", server.URL+"/item", nil)
	assert.Equal(t, 3, decode[itemsPage](t, body).TotalItems)
}

func TestCachedListAfterCascadeDelete(t *testing.T) {
	server, _, mr := setupCachedServer(t)
	bread := createItem(t, server, "Bread", 2.2)

	status, body := do(t, "POST", server.URL+"/list", map[string]any{
		"name":  "Bakery",
		"items": []map[string]any{{"item": bread.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", body)

	_, body = do(t, "GET", server.URL+"/list", nil)
	page := decode[listsPage](t, body)
	require.Len(t, page.Lists, 1)
	require.Len(t, page.Lists[0].Items, 1)

	// Redis fails while the item is deleted, then recovers.
	mr.SetError("transient")
	status, body = do(t, "DELETE", server.URL+"/item/"+bread.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, msgItemDeleted, decode[messageResponse](t, body).Message)
	mr.SetError("")

	_, body = do(t, "GET", server.URL+"/list", nil)
	page = decode[listsPage](t, body)
	require.Len(t, page.Lists, 1)
	assert.Empty(t, page.Lists[0].Items)

	// Served from the cache again, still without the deleted item.
	_, body = do(t, "GET", server.URL+"/list", nil)
	page = decode[listsPage](t, body)
	require.Len(t, page.Lists, 1)
	assert.Empty(t, page.Lists[0].Items)
}

func TestPageCacheUnavailable(t *testing.T) {
	server, _, mr := setupCachedServer(t)
	mr.Close()

	createItem(t, server, "Apple", 0.5)
	status, body := do(t, "GET", server.URL+"/item", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[itemsPage](t, body).TotalItems)

	status, body = do(t, "GET", server.URL+"/health", nil)
	require.Equal(t, http.StatusOK, status)
	resp := decode[HealthResponse](t, body)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Cache)
}
