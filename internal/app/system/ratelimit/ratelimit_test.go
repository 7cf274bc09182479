package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyed_AllowAndReset(t *testing.T) {
	k := New(3, time.Minute)
	now := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !k.Allow("a") {
			t.Fatalf("attempt %d rejected", i+1)
		}
	}
	if k.Allow("a") {
		t.Fatal("fourth attempt allowed")
	}
	if !k.Allow("b") {
		t.Fatal("other key limited")
	}

	k.Reset("a")
	if !k.Allow("a") {
		t.Fatal("reset key still limited")
	}
}

func TestKeyed_Refills(t *testing.T) {
	k := New(2, time.Minute)
	now := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	k.Allow("a")
	k.Allow("a")
	if k.Allow("a") {
		t.Fatal("limit not enforced")
	}
	now = now.Add(30 * time.Second)
	if !k.Allow("a") {
		t.Fatal("token not refilled after window/limit")
	}
}

func TestKeyed_SweepsIdleKeys(t *testing.T) {
	k := New(1, time.Minute)
	now := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	k.Allow("old")
	now = now.Add(3 * time.Minute)
	k.Allow("new")
	if got := k.Len(); got != 1 {
		t.Fatalf("tracked keys = %d, want 1", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "192.0.2.1:5000", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.9 "}, "192.0.2.1:5000", "10.0.0.9"},
		{"remote with port", nil, "192.0.2.1:5000", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_PerAccount(t *testing.T) {
	l := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 2; i++ {
		if ok, _ := l.Check(r, "Ana@school.test"); !ok {
			t.Fatalf("attempt %d rejected", i+1)
		}
	}
	if ok, reason := l.Check(r, "ana@school.test "); ok || reason == "" {
		t.Fatalf("third attempt = %v %q, want rejection with reason", ok, reason)
	}

	l.ResetEmail("ana@school.test")
	if ok, _ := l.Check(r, "ana@school.test"); !ok {
		t.Fatal("reset account still limited")
	}
}
