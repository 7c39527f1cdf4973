package inventory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MiniInventory/internal/inventory"
	"MiniInventory/pkg/kit"
)

type errorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func violationsOf(t *testing.T, b errorBody) []string {
	t.Helper()
	var out []string
	require.NoError(t, json.Unmarshal(b.Details, &out), "details=%s", string(b.Details))
	return out
}

type deleteBody struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	DeletedProduct inventory.Product `json:"deletedProduct"`
}

type failingSave struct {
	*inventory.MemBackend
}

func (failingSave) Save(context.Context, []inventory.Product) error {
	return errors.New("disk full")
}

func newTS(t *testing.T, backend inventory.Backend) *httptest.Server {
	t.Helper()

	s := &inventory.Server{
		Store: inventory.NewStore(backend, zap.NewNop(), nil),
		Log:   zap.NewNop(),
	}
	ts := httptest.NewServer(inventory.NewHandler(s, inventory.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "inventory",
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newFileTS(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	return newTS(t, inventory.NewFileBackend(path)), path
}

func doRaw(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	if body == nil {
		return doRaw(t, method, url, "")
	}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	return doRaw(t, method, url, buf.String())
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body=%s", string(raw))
	return v
}

func listAll(t *testing.T, ts *httptest.Server) []inventory.Product {
	t.Helper()
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[[]inventory.Product](t, raw)
}

func createProduct(t *testing.T, ts *httptest.Server, body any) inventory.Product {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/products", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", string(raw))
	return decode[inventory.Product](t, raw)
}

func TestListAll_EmptyCollectionIsArray(t *testing.T) {
	ts, path := newFileTS(t)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `[]`, string(raw))

	_, err := os.Stat(path)
	assert.NoError(t, err, "first read creates the data file")
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend())

	first := createProduct(t, ts, map[string]any{"name": "A", "price": 1})
	second := createProduct(t, ts, map[string]any{"name": "B", "price": 2})
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)

	seeded := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 41, Name: "Seed", Price: 1}))
	assert.Equal(t, 42, createProduct(t, seeded, map[string]any{"name": "C", "price": 3}).ID)
}

func TestCreate_TrimsNameAndDefaultsInStock(t *testing.T) {
	ts, _ := newFileTS(t)

	created := createProduct(t, ts, map[string]any{"name": "  Widget  ", "price": 10})
	assert.Equal(t, inventory.Product{ID: 1, Name: "Widget", Price: 10, InStock: true}, created)

	assert.Equal(t, []inventory.Product{created}, listAll(t, ts), "list-all returns the created record unchanged")
}

func TestCreate_ClientIDIgnored(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend())

	created := createProduct(t, ts, map[string]any{"id": 99, "name": "A", "price": 1, "inStock": false})
	assert.Equal(t, inventory.Product{ID: 1, Name: "A", Price: 1, InStock: false}, created)
}

func TestCreate_ValidationFailures(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend())

	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "empty name", body: `{"name":"","price":10}`, want: []string{"name must not be empty"}},
		{name: "missing everything", body: `{}`, want: []string{"name is required", "price is required"}},
		{name: "empty body", body: ``, want: []string{"name is required", "price is required"}},
		{
			name: "collects all",
			body: `{"name":5,"price":-3,"inStock":"true"}`,
			want: []string{"name must be a string", "price must be greater than or equal to 0", "inStock must be a boolean"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := doRaw(t, http.MethodPost, ts.URL+"/products", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decode[errorBody](t, raw)
			assert.Equal(t, "Validation failed", body.Error)
			assert.Equal(t, tt.want, violationsOf(t, body))
		})
	}

	assert.Empty(t, listAll(t, ts))
}

func TestCreate_InvalidJSON(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend())

	for _, body := range []string{`{"name": "x",`, `[1,2]`, `"text"`, `null`, `{"name":"a","price":1} {}`} {
		resp, raw := doRaw(t, http.MethodPost, ts.URL+"/products", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)

		got := decode[errorBody](t, raw)
		assert.Equal(t, "Invalid JSON", got.Error, "body %q", body)
		assert.NotEmpty(t, got.Message)
	}
}

func TestCreate_PersistFailure(t *testing.T) {
	ts := newTS(t, failingSave{inventory.NewMemBackend()})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/products", map[string]any{"name": "A", "price": 1})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decode[errorBody](t, raw).Error)
	assert.Empty(t, listAll(t, ts))
}

func TestListInStock(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(
		inventory.Product{ID: 1, Name: "A", Price: 1, InStock: true},
		inventory.Product{ID: 2, Name: "B", Price: 2, InStock: false},
		inventory.Product{ID: 3, Name: "C", Price: 3, InStock: true},
	))

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products/instock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[[]inventory.Product](t, raw)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 3, got[1].ID)
}

func TestListInStock_NoneInStock(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 2, Name: "B", Price: 2}))

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products/instock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestGetByID(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 7, Name: "A", Price: 1, InStock: true}))

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products/7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, inventory.Product{ID: 7, Name: "A", Price: 1, InStock: true}, decode[inventory.Product](t, raw))

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products/8", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products/seven", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdate_OnlySuppliedFieldsChange(t *testing.T) {
	ts, _ := newFileTS(t)
	created := createProduct(t, ts, map[string]any{"name": "Widget", "price": 10, "inStock": false})

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/1", map[string]any{"price": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", string(raw))

	want := created
	want.Price = 5
	assert.Equal(t, want, decode[inventory.Product](t, raw))
	assert.Equal(t, []inventory.Product{want}, listAll(t, ts))
}

func TestUpdate_NegativePriceRejected(t *testing.T) {
	ts, _ := newFileTS(t)
	created := createProduct(t, ts, map[string]any{"name": "Widget", "price": 10})

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/1", map[string]any{"price": -1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorBody](t, raw)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Equal(t, []string{"price must be greater than or equal to 0"}, violationsOf(t, body))
	assert.Equal(t, []inventory.Product{created}, listAll(t, ts))
}

func TestUpdate_ReportsOnlyFirstViolation(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 1, Name: "A", Price: 1, InStock: true}))

	resp, raw := doRaw(t, http.MethodPut, ts.URL+"/products/1", `{"inStock":"no","price":"cheap","name":"  "}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"name must not be empty"}, violationsOf(t, decode[errorBody](t, raw)))
}

func TestUpdate_MissingProduct(t *testing.T) {
	ts, path := newFileTS(t)
	createProduct(t, ts, map[string]any{"name": "Widget", "price": 10})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/999", map[string]any{"price": 1})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Product not found", decode[errorBody](t, raw).Error)

	// Existence is checked before the fields, so an invalid body still yields 404.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/999", map[string]any{"price": -1})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdate_BadIDAndBadJSON(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 1, Name: "A", Price: 1}))

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/abc", map[string]any{"price": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid product ID", decode[errorBody](t, raw).Error)

	resp, raw = doRaw(t, http.MethodPut, ts.URL+"/products/1", `{"price":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", decode[errorBody](t, raw).Error)
}

func TestUpdate_IDIsImmutable(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend(inventory.Product{ID: 1, Name: "A", Price: 1}))

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/1", map[string]any{"id": 5, "name": " B "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, inventory.Product{ID: 1, Name: "B", Price: 1}, decode[inventory.Product](t, raw))
}

func TestUpdate_PersistFailure(t *testing.T) {
	ts := newTS(t, failingSave{inventory.NewMemBackend(inventory.Product{ID: 1, Name: "A", Price: 1})})

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/products/1", map[string]any{"price": 2})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, []inventory.Product{{ID: 1, Name: "A", Price: 1}}, listAll(t, ts))
}

func TestDelete(t *testing.T) {
	ts, _ := newFileTS(t)
	a := createProduct(t, ts, map[string]any{"name": "A", "price": 1})
	b := createProduct(t, ts, map[string]any{"name": "B", "price": 2, "inStock": false})

	resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/products/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[deleteBody](t, raw)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, b, body.DeletedProduct)

	assert.Equal(t, []inventory.Product{a}, listAll(t, ts))

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/1.5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelete_PersistFailure(t *testing.T) {
	ts := newTS(t, failingSave{inventory.NewMemBackend(inventory.Product{ID: 1, Name: "A", Price: 1})})

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/products/1", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, listAll(t, ts), 1)
}

func TestRouteNotFound(t *testing.T) {
	ts := newTS(t, inventory.NewMemBackend())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/nope"},
		{http.MethodPatch, "/products/1"},
		{http.MethodPost, "/products/1"},
		{http.MethodDelete, "/products"},
	}

	for _, tt := range tests {
		resp, raw := doJSON(t, tt.method, ts.URL+tt.path, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tt.method, tt.path)

		body := decode[errorBody](t, raw)
		assert.Equal(t, "Route not found", body.Error)
		assert.Equal(t, "Cannot "+tt.method+" "+tt.path, body.Message)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	s := &inventory.Server{
		Store:   inventory.NewStore(inventory.NewMemBackend(), nil, nil),
		Limiter: kit.NewIPRateLimiter(0.001, 1),
	}
	ts := httptest.NewServer(inventory.NewHandler(s, inventory.HTTPDeps{Service: "inventory"}))
	t.Cleanup(ts.Close)

	createProduct(t, ts, map[string]any{"name": "A", "price": 1})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/products", map[string]any{"name": "B", "price": 1})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	assert.Len(t, listAll(t, ts), 1, "reads are not limited")
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := &inventory.Server{
		Store: inventory.NewStore(inventory.NewMemBackend(), nil, inventory.NewStoreMetrics(reg)),
	}
	ts := httptest.NewServer(inventory.NewHandler(s, inventory.HTTPDeps{
		Service:        "inventory",
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "scrape",
	}))
	t.Cleanup(ts.Close)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	createProduct(t, ts, map[string]any{"name": "A", "price": 1})

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer scrape")
	mresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer mresp.Body.Close()

	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Contains(t, string(raw), `inventory_store_persist_total{result="ok"} 1`)
	assert.Contains(t, string(raw), `path="/products"`)
}

func TestReadyz_FreshDataDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "products.json")
	ts := newTS(t, inventory.NewFileBackend(path))

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "readiness must not write the collection")
}

type panickingLoad struct {
	*inventory.MemBackend
}

func (panickingLoad) Load(context.Context) ([]inventory.Product, error) {
	panic("backend exploded")
}

func TestPanic_RecordedAsServerError(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := &inventory.Server{Store: inventory.NewStore(panickingLoad{inventory.NewMemBackend()}, nil, nil)}
	ts := httptest.NewServer(inventory.NewHandler(s, inventory.HTTPDeps{
		Service:        "inventory",
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "scrape",
	}))
	t.Cleanup(ts.Close)

	for range 2 {
		resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", nil)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decode[errorBody](t, raw)
		assert.Equal(t, "Internal server error", body.Error)
		assert.Equal(t, "backend exploded", body.Message)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer scrape")
	mresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer mresp.Body.Close()

	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `http_requests_total{method="GET",path="/products",service="inventory",status="500"} 2`)
	// Only the scrape itself is in flight.
	assert.Contains(t, string(raw), "http_requests_in_flight 1\n")
}
