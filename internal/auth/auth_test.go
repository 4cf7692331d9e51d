package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware(t *testing.T) {
	const secret = "test-secret"

	var gotUserID string
	handler := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	validToken, err := NewToken(secret, "user-42", time.Minute)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	expiredToken, err := NewToken(secret, "user-42", -time.Minute)
	if err != nil {
		t.Fatalf("NewToken (expired): %v", err)
	}
	wrongKeyToken, err := NewToken("other-secret", "user-42", time.Minute)
	if err != nil {
		t.Fatalf("NewToken (wrong key): %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid", "Bearer " + validToken, http.StatusOK, "user-42"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", validToken, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expiredToken, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + wrongKeyToken, http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUserID != tt.wantUser {
				t.Fatalf("userID = %q, want %q", gotUserID, tt.wantUser)
			}
		})
	}
}

func TestUserID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserID(req.Context()); ok {
		t.Fatal("UserID on bare context should report absence")
	}
}
