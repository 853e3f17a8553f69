package templates

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func newRouter() *mux.Router {
	r := mux.NewRouter()
	NewHandlers(NewStore(nil)).RegisterRoutes(r)
	return r
}

func do(r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestTemplatesCRUD(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/api/templates", `{"name":"order","topic":"orders","value":"{\"id\":1}"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created Template
	json.NewDecoder(rec.Body).Decode(&created)
	if created.ID == "" || created.Headers == nil {
		t.Errorf("unexpected created template %+v", created)
	}

	rec = do(r, http.MethodPut, "/api/templates/"+created.ID, `{"name":"order-v2","topic":"orders"}`)
	var updated Template
	json.NewDecoder(rec.Body).Decode(&updated)
	if rec.Code != http.StatusOK || updated.Name != "order-v2" || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("unexpected update %d %+v", rec.Code, updated)
	}

	rec = do(r, http.MethodGet, "/api/templates", "")
	var list []Template
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 1 || list[0].Name != "order-v2" {
		t.Errorf("unexpected list %+v", list)
	}

	if rec := do(r, http.MethodDelete, "/api/templates/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/templates/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestTemplatesValidation(t *testing.T) {
	r := newRouter()
	if rec := do(r, http.MethodPost, "/api/templates", `{"topic":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without name, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPut, "/api/templates/missing", `{"name":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 updating missing template, got %d", rec.Code)
	}
}
