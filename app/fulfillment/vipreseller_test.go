package fulfillment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*VIPReseller, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewVIPReseller(VIPResellerConfig{
		BaseURL:        srv.URL,
		APIID:          "api-id",
		APIKey:         "api-key",
		CallbackSecret: "cb-secret",
		RetryBaseDelay: time.Second,
	})
	sleeps := make([]time.Duration, 0)
	p.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return p, &sleeps
}

func TestPlaceOrderSignsRequestAndMapsStatus(t *testing.T) {
	var payload map[string]string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"result":true,"message":"Order received","data":{"trxid":"TRX-1","status":"pending"}}`))
	})

	result := p.PlaceOrder(context.Background(), PlaceOrderRequest{SKU: "ML86", TargetID: "123456789", TargetServer: "1234"})
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.TrxID != "TRX-1" || result.Status != StatusProcessing {
		t.Fatalf("unexpected result: %+v", result)
	}

	sum := md5.Sum([]byte("api-idapi-key"))
	if payload["sign"] != hex.EncodeToString(sum[:]) || payload["api_id"] != "api-id" {
		t.Fatalf("unexpected signature fields: %v", payload)
	}
	if payload["service"] != "ML86" || payload["data_no"] != "123456789|1234" {
		t.Fatalf("unexpected order fields: %v", payload)
	}
}

func TestPlaceOrderBusinessRejectionIsNotRetried(t *testing.T) {
	var calls int32
	p, sleeps := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"result":false,"message":"Saldo tidak cukup"}`))
	})

	result := p.PlaceOrder(context.Background(), PlaceOrderRequest{SKU: "FF100", TargetID: "123456"})
	if result.Success || result.Status != StatusFailed {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.Error != "Saldo tidak cukup" {
		t.Fatalf("unexpected error: %q", result.Error)
	}
	if atomic.LoadInt32(&calls) != 1 || len(*sleeps) != 0 {
		t.Fatalf("expected one call and no retries, got %d calls", calls)
	}
}

func TestRequestRetriesServerErrorsWithLinearBackoff(t *testing.T) {
	var calls int32
	p, sleeps := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"result":true,"data":{"trxid":"TRX-1","status":"success","sn":"SN-1"}}`))
	})

	result := p.CheckStatus(context.Background(), "TRX-1")
	if !result.Success || result.Status != StatusSuccess || result.SN != "SN-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff: %v", *sleeps)
	}
}

func TestRequestGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	result := p.PlaceOrder(context.Background(), PlaceOrderRequest{SKU: "ML86", TargetID: "123456789"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestServicesAndProfile(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services":
			_, _ = w.Write([]byte(`{"result":true,"data":[{"code":"ML86","game":"Mobile Legends","name":"86 Diamonds","price":"19000","status":"available"}]}`))
		case "/profile":
			_, _ = w.Write([]byte(`{"result":true,"data":{"full_name":"Store","username":"store","balance":"150000","level":"gold"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	services, err := p.Services(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(services) != 1 || services[0].Code != "ML86" {
		t.Fatalf("unexpected services: %+v", services)
	}

	profile, err := p.Profile(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.Balance != "150000" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestVerifyCallbackSignature(t *testing.T) {
	p := NewVIPReseller(VIPResellerConfig{CallbackSecret: "cb-secret"})
	payload := []byte(`{"trxid":"TRX-1","status":"success"}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	header := fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(SignCallback("cb-secret", ts, payload)))

	if !p.VerifyCallbackSignature(payload, header) {
		t.Fatal("expected signature to validate")
	}
	if p.VerifyCallbackSignature([]byte(`{"trxid":"TRX-2"}`), header) {
		t.Fatal("expected tampered payload to fail")
	}

	stale := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	staleHeader := fmt.Sprintf("t=%s,v1=%s", stale, hex.EncodeToString(SignCallback("cb-secret", stale, payload)))
	if p.VerifyCallbackSignature(payload, staleHeader) {
		t.Fatal("expected stale timestamp to fail")
	}

	unconfigured := NewVIPReseller(VIPResellerConfig{})
	if unconfigured.VerifyCallbackSignature(payload, header) {
		t.Fatal("expected unconfigured secret to reject")
	}
}

func TestNormalizeCallback(t *testing.T) {
	p := NewVIPReseller(VIPResellerConfig{})

	event, err := p.NormalizeCallback([]byte(`{"trxid":"TRX-1","status":"ERROR","message":"Invalid target"}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.TrxID != "TRX-1" || event.Status != StatusFailed || event.Message != "Invalid target" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := p.NormalizeCallback([]byte(`{"status":"success"}`)); err == nil {
		t.Fatal("expected error for callback without trxid")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]string{
		"pending": StatusProcessing,
		"process": StatusProcessing,
		"success": StatusSuccess,
		"failed":  StatusFailed,
		"error":   StatusFailed,
		"partial": "partial",
	}
	for in, expected := range cases {
		if got := MapStatus(in); got != expected {
			t.Fatalf("MapStatus(%q) = %q, expected %q", in, got, expected)
		}
	}
}
