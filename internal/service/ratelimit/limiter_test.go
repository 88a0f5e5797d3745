package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestAllowBurstPerKey(t *testing.T) {
	l := New(2, 0.001, time.Minute)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatal("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are independent")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New(1, 50, time.Minute)
	if !l.Allow("a") {
		t.Fatal("first call should pass")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("token should have refilled")
	}
}

func get(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareReturns429Envelope(t *testing.T) {
	e := echo.New()
	l := New(1, 0, time.Minute)
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, l.Middleware())

	if rec := get(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("first code=%d", rec.Code)
	}
	rec := get(e, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second code=%d", rec.Code)
	}
	var body struct {
		Status int `json:"status"`
		Data   []struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != http.StatusTooManyRequests || len(body.Data) != 1 || body.Data[0].Code != "ERR_RATE_LIMITED" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := get(e, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client code=%d", rec.Code)
	}
}
