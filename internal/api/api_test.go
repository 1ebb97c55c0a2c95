package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/orodjarna/internal/auth"
	"github.com/erazemk/orodjarna/internal/db"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/scan"
	"github.com/erazemk/orodjarna/internal/store"
)

const testJWTSecret = "test-secret"

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st := store.New(db.NewTestDB(t))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	lc := lifecycle.New(st,
		lifecycle.WithMetrics(m),
		lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return NewRouter(Deps{
		Store:     st,
		Lifecycle: lc,
		Scanner:   scan.NewResolver(st),
		Tokens:    auth.NewIssuer(testJWTSecret, time.Hour),
		Metrics:   m,
		Gatherer:  reg,
	}), st
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	router, st := newTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := st.CreateUser(context.Background(), "admin", string(hash), model.RoleAdmin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	return server, login(t, server, "admin", "password")
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// call performs an authenticated request, checks the status and decodes the
// response into out when out is not nil.
func call(t *testing.T, method, url, token string, body any, want int, out any) {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, want, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
}

func createTool(t *testing.T, server *httptest.Server, token, name string) model.Tool {
	t.Helper()
	var categories []model.Category
	call(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &categories)
	if len(categories) == 0 {
		call(t, "POST", server.URL+"/api/categories", token,
			map[string]string{"name": "Power tools"}, http.StatusCreated, nil)
	}

	var tool model.Tool
	call(t, "POST", server.URL+"/api/tools", token, map[string]string{
		"name":     name,
		"category": "Power tools",
	}, http.StatusCreated, &tool)
	return tool
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Test missing fields.
	body, _ = json.Marshal(map[string]string{"username": "admin"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	call(t, "GET", server.URL+"/api/tools", token, nil, http.StatusOK, nil)
	call(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	call(t, "GET", server.URL+"/api/tools", token, nil, http.StatusUnauthorized, nil)
}

func TestUnauthenticatedAccess(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/tools")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	server, adminToken := setupTestServer(t)
	tool := createTool(t, server, adminToken, "Drill")

	call(t, "POST", server.URL+"/api/users", adminToken, map[string]string{
		"username": "user1",
		"password": "password1",
		"role":     model.RoleUser,
	}, http.StatusCreated, nil)
	userToken := login(t, server, "user1", "password1")

	// Regular user should not be able to create tools (manager+ required).
	call(t, "POST", server.URL+"/api/tools", userToken, map[string]string{
		"name": "Test", "category": "Power tools",
	}, http.StatusForbidden, nil)

	// Regular user should not access /api/users.
	call(t, "GET", server.URL+"/api/users", userToken, nil, http.StatusForbidden, nil)

	base := server.URL + "/api/tools/" + itoa(tool.ID)

	// Regular user should not change status directly.
	call(t, "POST", base+"/status", userToken,
		map[string]string{"status": "Retired"}, http.StatusForbidden, nil)

	// But may check tools out and back in.
	call(t, "POST", base+"/export", userToken, map[string]string{
		"exported_by": "Kim", "purpose": "site A",
	}, http.StatusOK, nil)
	call(t, "POST", base+"/return", userToken, nil, http.StatusOK, nil)
}

func TestCreateUserDuplicate(t *testing.T) {
	server, token := setupTestServer(t)

	user := map[string]string{"username": "kim", "password": "password1", "role": model.RoleManager}
	call(t, "POST", server.URL+"/api/users", token, user, http.StatusCreated, nil)
	call(t, "POST", server.URL+"/api/users", token, user, http.StatusConflict, nil)

	user["username"] = "lee"
	user["role"] = "owner"
	call(t, "POST", server.URL+"/api/users", token, user, http.StatusBadRequest, nil)
}

func TestExportReturnFlow(t *testing.T) {
	server, token := setupTestServer(t)
	tool := createTool(t, server, token, "Cordless drill")
	base := server.URL + "/api/tools/" + itoa(tool.ID)

	var exported model.Tool
	call(t, "POST", base+"/export", token, map[string]string{
		"exported_by": "Kim", "purpose": "site A",
	}, http.StatusOK, &exported)
	if exported.Status != model.StatusExported || exported.ExportedBy != "Kim" {
		t.Fatalf("unexpected tool after export: %+v", exported)
	}

	// A second export is refused with the domain code.
	var body errorBody
	call(t, "POST", base+"/export", token, map[string]string{
		"exported_by": "Lee", "purpose": "site B",
	}, http.StatusConflict, &body)
	if body.Code != "NOT_AVAILABLE" {
		t.Errorf("expected NOT_AVAILABLE, got %q", body.Code)
	}

	var open []model.ExportEvent
	call(t, "GET", server.URL+"/api/exports", token, nil, http.StatusOK, &open)
	if len(open) != 1 || open[0].ProductID != tool.ID {
		t.Fatalf("expected one open export, got %+v", open)
	}

	var returned model.Tool
	call(t, "POST", base+"/return", token, nil, http.StatusOK, &returned)
	if returned.Status != model.StatusAvailable || returned.HasExportCache() {
		t.Fatalf("unexpected tool after return: %+v", returned)
	}

	call(t, "POST", base+"/return", token, nil, http.StatusConflict, &body)
	if body.Code != "NOT_EXPORTED" {
		t.Errorf("expected NOT_EXPORTED, got %q", body.Code)
	}

	var history struct {
		Events []model.ExportEvent `json:"events"`
	}
	call(t, "GET", base+"/history", token, nil, http.StatusOK, &history)
	if len(history.Events) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history.Events))
	}
	if ev := history.Events[0]; ev.ReturnDate == nil || ev.ReturnedBy != "Kim" {
		t.Errorf("expected event closed by Kim, got %+v", ev)
	}

	// Tools with history cannot be deleted.
	call(t, "DELETE", base, token, nil, http.StatusConflict, nil)
}

func TestExportValidationDetails(t *testing.T) {
	server, token := setupTestServer(t)
	tool := createTool(t, server, token, "Grinder")

	var body errorBody
	call(t, "POST", server.URL+"/api/tools/"+itoa(tool.ID)+"/export", token,
		map[string]string{"exported_by": "Kim"}, http.StatusBadRequest, &body)
	if body.Code != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %q", body.Code)
	}
	if body.Details["purpose"] == "" {
		t.Errorf("expected a detail for purpose, got %v", body.Details)
	}
}

func TestStatusChangeEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	tool := createTool(t, server, token, "Saw")
	base := server.URL + "/api/tools/" + itoa(tool.ID)

	var updated model.Tool
	call(t, "POST", base+"/status", token, map[string]string{"status": "maintenance"},
		http.StatusOK, &updated)
	if updated.Status != model.StatusUnderMaintenance {
		t.Fatalf("expected Under Maintenance, got %s", updated.Status)
	}

	call(t, "POST", base+"/status", token, map[string]string{"status": "broken"},
		http.StatusBadRequest, nil)

	call(t, "POST", base+"/status", token, map[string]string{"status": "Retired"},
		http.StatusOK, nil)

	var body errorBody
	call(t, "POST", base+"/status", token, map[string]string{"status": "Available"},
		http.StatusUnprocessableEntity, &body)
	if body.Code != "INVALID_TRANSITION" {
		t.Errorf("expected INVALID_TRANSITION, got %q", body.Code)
	}
}

func TestUnknownToolIsNotFound(t *testing.T) {
	server, token := setupTestServer(t)

	call(t, "GET", server.URL+"/api/tools/99", token, nil, http.StatusNotFound, nil)
	call(t, "POST", server.URL+"/api/tools/99/export", token, map[string]string{
		"exported_by": "Kim", "purpose": "site A",
	}, http.StatusNotFound, nil)
	call(t, "GET", server.URL+"/api/tools/abc", token, nil, http.StatusBadRequest, nil)
}

func TestScanEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	createTool(t, server, token, "Impact driver")

	var found model.Tool
	call(t, "GET", server.URL+"/api/scan?q=P001", token, nil, http.StatusOK, &found)
	if found.Name != "Impact driver" {
		t.Errorf("expected Impact driver, got %q", found.Name)
	}

	call(t, "GET", server.URL+"/api/scan?q=impact", token, nil, http.StatusOK, &found)
	call(t, "GET", server.URL+"/api/scan?q=nothing-like-it", token, nil, http.StatusNotFound, nil)
	call(t, "GET", server.URL+"/api/scan", token, nil, http.StatusNotFound, nil)
}

func TestReconcileEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	tool := createTool(t, server, token, "Level")

	var report lifecycle.Report
	call(t, "POST", server.URL+"/api/tools/"+itoa(tool.ID)+"/reconcile", token, nil, http.StatusOK, &report)
	if report.Repaired {
		t.Error("expected nothing to repair on a fresh tool")
	}

	var sum lifecycle.Summary
	call(t, "POST", server.URL+"/api/reconcile", token, nil, http.StatusOK, &sum)
	if sum.Checked != 1 || len(sum.Problems) != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	tool := createTool(t, server, token, "Drill")
	createTool(t, server, token, "Saw")
	call(t, "POST", server.URL+"/api/tools/"+itoa(tool.ID)+"/export", token, map[string]string{
		"exported_by": "Kim", "purpose": "site A",
	}, http.StatusOK, nil)

	var stats statsResponse
	call(t, "GET", server.URL+"/api/stats", token, nil, http.StatusOK, &stats)
	if stats.Stats == nil || stats.Total != 2 || stats.Available != 1 || stats.Exported != 1 {
		t.Errorf("unexpected stats: %+v", stats.Stats)
	}
	if len(stats.Categories) != 1 {
		t.Errorf("expected 1 category row, got %d", len(stats.Categories))
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	server, token := setupTestServer(t)

	req, _ := authRequest("GET", server.URL+"/api/tools", token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), `orodjarna_http_requests_total{method="GET",route="GET /api/tools",status="200"}`) {
		t.Errorf("expected request counter in metrics output, got:\n%s", data)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
