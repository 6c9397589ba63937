package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testKeys() []KeyConfig {
	return []KeyConfig{
		{Key: "ops-key", UserID: "ops-bot", Roles: []string{"admin"}, Permissions: []string{"account.create"}},
		{Key: "old-key", UserID: "retired", Disabled: true},
	}
}

func TestNewKeyStore(t *testing.T) {
	tests := []struct {
		name    string
		keys    []KeyConfig
		wantErr bool
	}{
		{name: "valid", keys: testKeys()},
		{name: "empty list", keys: nil},
		{name: "empty key", keys: []KeyConfig{{UserID: "u"}}, wantErr: true},
		{name: "missing user", keys: []KeyConfig{{Key: "k"}}, wantErr: true},
		{name: "duplicate", keys: []KeyConfig{{Key: "k", UserID: "a"}, {Key: "k", UserID: "b"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyStore(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewKeyStore() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyStore_Validate(t *testing.T) {
	store, err := NewKeyStore(testKeys())
	if err != nil {
		t.Fatal(err)
	}

	p, err := store.Validate("ops-key")
	if err != nil {
		t.Fatalf("Validate(ops-key) error = %v", err)
	}
	if p.UserID != "ops-bot" || len(p.Roles) != 1 || p.Roles[0] != "admin" {
		t.Errorf("principal = %+v", p)
	}

	// Returned principals are copies.
	p.UserID = "mutated"
	again, _ := store.Validate("ops-key")
	if again.UserID != "ops-bot" {
		t.Errorf("store principal was mutated through a returned copy")
	}

	if _, err := store.Validate("old-key"); !errors.Is(err, ErrKeyDisabled) {
		t.Errorf("Validate(old-key) error = %v, want ErrKeyDisabled", err)
	}
	if _, err := store.Validate("nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Validate(nope) error = %v, want ErrInvalidKey", err)
	}
}

func TestKeyStore_Replace(t *testing.T) {
	store, _ := NewKeyStore(testKeys())

	if err := store.Replace([]KeyConfig{{Key: ""}}); err == nil {
		t.Fatal("Replace() with an empty key should fail")
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d after failed Replace, want 2", store.Len())
	}

	if err := store.Replace([]KeyConfig{{Key: "new-key", UserID: "ops-bot"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := store.Validate("ops-key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("old key still accepted after Replace")
	}
	if _, err := store.Validate("new-key"); err != nil {
		t.Errorf("new key rejected: %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	store, _ := NewKeyStore(testKeys())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(store, nil, []string{"/health"}, logger)(next)

	tests := []struct {
		name       string
		path       string
		header     map[string]string
		wantStatus int
		wantUser   string
	}{
		{name: "bearer", path: "/v1/validate", header: map[string]string{"Authorization": "Bearer ops-key"}, wantStatus: http.StatusNoContent, wantUser: "ops-bot"},
		{name: "api key header", path: "/v1/validate", header: map[string]string{"X-API-Key": "ops-key"}, wantStatus: http.StatusNoContent, wantUser: "ops-bot"},
		{name: "wrong scheme", path: "/v1/validate", header: map[string]string{"Authorization": "Basic ops-key"}, wantStatus: http.StatusUnauthorized},
		{name: "missing", path: "/v1/validate", wantStatus: http.StatusUnauthorized},
		{name: "invalid", path: "/v1/validate", header: map[string]string{"X-API-Key": "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "disabled", path: "/v1/validate", header: map[string]string{"X-API-Key": "old-key"}, wantStatus: http.StatusUnauthorized},
		{name: "public path", path: "/health", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Error.Code != "unauthorized" {
					t.Errorf("error code = %q, want unauthorized", body.Error.Code)
				}
				if rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("missing WWW-Authenticate header")
				}
				return
			}
			if tt.wantUser == "" {
				if seen != nil {
					t.Errorf("public path got principal %+v", seen)
				}
				return
			}
			if seen == nil || seen.UserID != tt.wantUser {
				t.Errorf("principal = %+v, want user %s", seen, tt.wantUser)
			}
		})
	}
}

func TestMiddleware_QuerySource(t *testing.T) {
	store, _ := NewKeyStore(testKeys())
	handler := Middleware(store, []Source{{Type: "query", Name: "api_key"}}, nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schemas?api_key=ops-key", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("query key: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/schemas", nil)
	req.Header.Set("X-API-Key", "ops-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("header key with query-only source: status = %d, want 401", rec.Code)
	}
}
