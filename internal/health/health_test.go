package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	Handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestCheckOrigin_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := CheckOrigin(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckOrigin: %v", err)
	}
}

func TestCheckOrigin_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	if err := CheckOrigin(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestCheckOrigin_emptyURL(t *testing.T) {
	if err := CheckOrigin(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCheckDecisionCollaborator_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()
	if err := CheckDecisionCollaborator(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckDecisionCollaborator: %v", err)
	}
}

func TestCheckDecisionCollaborator_5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	if err := CheckDecisionCollaborator(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503")
	}
}
