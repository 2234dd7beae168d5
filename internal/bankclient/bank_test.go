package bankclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.RetryCount = 2
	cfg.ConnectTimeout = 500 * time.Millisecond
	cfg.ReadTimeout = 500 * time.Millisecond
	cfg.BreakerFailureThreshold = 10
	return cfg
}

func TestClient_Process_Authorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{"authorized": true, "authorization_code": "OK123"})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), zap.NewNop())
	resp, err := client.Process(context.Background(), Request{"amount": 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	authorized, _ := resp.Bool("authorized")
	if !authorized {
		t.Error("expected authorized response")
	}
}

func TestClient_Process_FallsBackToIndeterminateOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), zap.NewNop())
	resp, err := client.Process(context.Background(), Request{"amount": 1000})
	if err != nil {
		t.Fatalf("expected no transport error, got: %v", err)
	}
	indeterminate, _ := resp.Bool("indeterminate")
	if !indeterminate {
		t.Error("expected indeterminate fallback response")
	}
	authorized, _ := resp.Bool("authorized")
	if authorized {
		t.Error("fallback response must never report authorized=true")
	}
}

func TestClient_Process_FallsBackOnConnectionRefused(t *testing.T) {
	client := New(testConfig("http://127.0.0.1:1"), zap.NewNop())
	resp, err := client.Process(context.Background(), Request{"amount": 1000})
	if err != nil {
		t.Fatalf("expected no transport error, got: %v", err)
	}
	indeterminate, _ := resp.Bool("indeterminate")
	if !indeterminate {
		t.Error("expected indeterminate fallback response for unreachable bank")
	}
}
