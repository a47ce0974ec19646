package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_x" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"status":true,"message":"Verification successful",
			"data":{"reference":"ref-123","status":"success","amount":500000,
			"channel":"card","gateway_response":"Approved"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_x")
	res, err := c.Verify(context.Background(), "ref-123")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("expected success, got %s", res.Status)
	}
	if res.Amount != 5000 {
		t.Errorf("expected amount 5000 (minor units converted), got %v", res.Amount)
	}
}

func TestVerify_FailedTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"Verification successful",
			"data":{"reference":"ref-9","status":"failed","amount":100000,
			"gateway_response":"Declined"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_x")
	res, err := c.Verify(context.Background(), "ref-9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}
}

func TestVerify_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_x")
	if _, err := c.Verify(context.Background(), "unknown"); err == nil {
		t.Error("expected error for gateway 404")
	}
}

func TestVerify_EmptyReference(t *testing.T) {
	c := NewClient("http://localhost", "sk")
	if _, err := c.Verify(context.Background(), ""); err == nil {
		t.Error("expected error for empty reference")
	}
}
