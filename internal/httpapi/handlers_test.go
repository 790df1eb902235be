package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dapurstok/backend/internal/service"
	"dapurstok/backend/internal/store/memory"
)

// newTestAPI builds a full API with a seeded in-memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 0)
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, repo)

	return New(svc, auth, "*")
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

// login obtains a bearer token for the given seeded account.
func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access_token in login response")
	}
	return resp.AccessToken
}

// csrfToken fetches a CSRF token for mutating requests.
func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}
	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf body: %v", err)
	}
	return body.CSRFToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %v", body["status"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Status != "error" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute from one client key.
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleBahan_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bahan", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleBahan_ListAsKasir(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/bahan", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var list []map[string]any
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode bahan list: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("expected seeded bahan")
	}
}

func TestHandleBahan_CreateForbiddenForKasir(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bahan", token, csrf, map[string]any{
		"name": "Keju", "unit": "gram", "initial_stock": 500, "unit_price": 0.09,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleBahan_CreateUpdateDeleteAsAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bahan", token, csrf, map[string]any{
		"name": "Keju", "unit": "gram", "initial_stock": 500, "unit_price": 0.09,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil || created.ID == "" {
		t.Fatalf("expected created bahan id, got %s (err %v)", env.Data, err)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/bahan/"+created.ID, token, csrf, map[string]any{
		"stock_quantity": 750,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/bahan/"+created.ID, token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bahan/"+created.ID, token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", rec.Code)
	}
}

func TestHandleSales_RecordAndFetch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/penjualan", token, csrf, map[string]any{
		"menu_id": "mnu-roti-bakar", "date": "2026-08-30", "quantity_sold": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var sale struct {
		ID           string  `json:"id"`
		TotalCost    float64 `json:"total_cost"`
		UsageDetails []struct {
			BahanID string `json:"bahan_id"`
		} `json:"usage_details"`
	}
	if err := json.Unmarshal(env.Data, &sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if sale.ID == "" || sale.TotalCost <= 0 || len(sale.UsageDetails) == 0 {
		t.Fatalf("unexpected sale payload: %s", env.Data)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/penjualan/"+sale.ID, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d", rec.Code)
	}
}

func TestHandleSales_InsufficientStockIs422(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/penjualan", token, csrf, map[string]any{
		"menu_id": "mnu-roti-bakar", "date": "2026-08-30", "quantity_sold": 100000,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "error" || env.Message == "" {
		t.Fatalf("expected error envelope with message, got %+v", env)
	}
}

func TestHandleSales_UnknownMenuIs404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/penjualan", token, csrf, map[string]any{
		"menu_id": "mnu-missing", "date": "2026-08-30", "quantity_sold": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSales_BadDateIs400(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/penjualan", token, csrf, map[string]any{
		"menu_id": "mnu-roti-bakar", "date": "30/08/2026", "quantity_sold": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleDailySummary_JSONAndCSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/penjualan", token, csrf, map[string]any{
		"menu_id": "mnu-kopi-susu", "date": "2026-08-30", "quantity_sold": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/penjualan/daily/2026-08-30", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var summary struct {
		SaleCount      int `json:"sale_count"`
		TotalItemsSold int `json:"total_items_sold"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.SaleCount != 1 || summary.TotalItemsSold != 3 {
		t.Fatalf("unexpected summary: %s", env.Data)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/penjualan/daily/2026-08-30?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("csv content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "summary,date,2026-08-30") {
		t.Fatalf("csv missing summary row: %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/penjualan/daily/2026-08-30?format=html", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("html: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("html content type = %q", ct)
	}
}

func TestHandleLowStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stock/low?threshold=200", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var low []struct {
		ID            string  `json:"id"`
		StockQuantity float64 `json:"stock_quantity"`
	}
	if err := json.Unmarshal(env.Data, &low); err != nil {
		t.Fatalf("decode low stock: %v", err)
	}
	for _, b := range low {
		if b.StockQuantity >= 200 {
			t.Errorf("bahan %s has stock %v, not below threshold", b.ID, b.StockQuantity)
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/stock/low", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing threshold: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/stock/low?threshold=abc", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad threshold: expected 400, got %d", rec.Code)
	}
}

func TestHandleMenuRecipe(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "kasir", "kasir123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/menu/mnu-roti-bakar/recipe", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var body struct {
		Menu   string `json:"menu"`
		Recipe []struct {
			BahanID string `json:"bahan_id"`
		} `json:"recipe"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode recipe: %v", err)
	}
	if body.Menu != "Roti Bakar" || len(body.Recipe) == 0 {
		t.Fatalf("unexpected recipe payload: %s", env.Data)
	}
}

func TestHandleAuditLogs_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	kasirToken := login(t, handler, "kasir", "kasir123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", kasirToken, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("kasir: expected 403, got %d", rec.Code)
	}

	adminToken := login(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleBahan_UnknownFieldRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bahan", token, csrf, map[string]any{
		"name": "Keju", "unit": "gram", "bogus_field": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDeleteSeededBahan_ConflictIs409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	// bhn-tepung is referenced by seeded menus.
	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/bahan/bhn-tepung", token, csrf, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}
