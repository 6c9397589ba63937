package secrets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("RECORDGUARD_SECRET_FIELD_KEY", "from-env")
	p := NewEnvProvider("")

	value, err := p.Get(context.Background(), "field-key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "from-env" {
		t.Errorf("Get() = %q, want %q", value, "from-env")
	}

	if _, err := p.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "api-key", "  from-file\n", 0o600)
	writeSecret(t, dir, "loose", "value", 0o644)

	p, err := NewFileProvider(dir, false, discard())
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	defer p.Close()

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr string
	}{
		{name: "trimmed", secret: "api-key", want: "from-file"},
		{name: "insecure mode", secret: "loose", wantErr: "insecure permissions"},
		{name: "missing", secret: "nope", wantErr: "secret not found"},
		{name: "traversal", secret: "../etc/passwd", wantErr: "invalid secret name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Get(context.Background(), tt.secret)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Get(%q) error = %v, want %q", tt.secret, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%q) error = %v", tt.secret, err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}

	if !p.Supports("api-key") || p.Supports("nope") || p.Supports("../x") {
		t.Error("Supports() reports the wrong files")
	}
}

func TestFileProvider_RefreshRereads(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "token", "v1", 0o600)
	p, err := NewFileProvider(dir, false, discard())
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := p.Get(context.Background(), "token"); v != "v1" {
		t.Fatalf("Get() = %q, want v1", v)
	}
	writeSecret(t, dir, "token", "v2", 0o600)
	if v, _ := p.Get(context.Background(), "token"); v != "v1" {
		t.Errorf("value should be cached until refresh, got %q", v)
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := p.Get(context.Background(), "token"); v != "v2" {
		t.Errorf("Get() after Refresh = %q, want v2", v)
	}
}

func TestFileProvider_WatchDropsCache(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "token", "v1", 0o600)
	p, err := NewFileProvider(dir, true, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if v, _ := p.Get(context.Background(), "token"); v != "v1" {
		t.Fatalf("Get() = %q, want v1", v)
	}
	writeSecret(t, dir, "token", "v2", 0o600)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := p.Get(context.Background(), "token"); v == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watched provider did not pick up the rotated secret")
}

func TestNewFileProvider_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	writeSecret(t, filepath.Dir(file), "f", "x", 0o600)
	if _, err := NewFileProvider(file, false, discard()); err == nil {
		t.Error("NewFileProvider() on a file should fail")
	}
}

func TestManager_ProviderOrder(t *testing.T) {
	t.Setenv("RECORDGUARD_SECRET_SHARED", "env")
	dir := t.TempDir()
	writeSecret(t, dir, "shared", "file", 0o600)
	writeSecret(t, dir, "file-only", "file", 0o600)

	fp, err := NewFileProvider(dir, false, discard())
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager([]Provider{fp, NewEnvProvider("")}, discard())
	defer m.Close()

	if v, err := m.Get(context.Background(), "shared"); err != nil || v != "file" {
		t.Errorf("Get(shared) = %q, %v; want file value first", v, err)
	}
	if _, err := m.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
	}
}

func TestManager_Resolve(t *testing.T) {
	t.Setenv("RECORDGUARD_SECRET_USER", "svc")
	t.Setenv("RECORDGUARD_SECRET_PASS", "hunter2")
	m := NewManager([]Provider{NewEnvProvider("")}, discard())

	got, err := m.Resolve(context.Background(), "${secret:user}:${secret:pass}")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "svc:hunter2" {
		t.Errorf("Resolve() = %q", got)
	}

	got, err = m.Resolve(context.Background(), "key=${secret:missing}")
	if err == nil {
		t.Error("Resolve() with a missing secret should fail")
	}
	if got != "key=${secret:missing}" {
		t.Errorf("unresolved reference should be kept, got %q", got)
	}
}

func TestManager_ResolveAll(t *testing.T) {
	t.Setenv("RECORDGUARD_SECRET_FIELD_KEY", "k1")
	m := NewManager([]Provider{NewEnvProvider("")}, discard())

	key, plain, empty := "${secret:field-key}", "literal", ""
	if err := m.ResolveAll(context.Background(), &key, &plain, &empty, nil); err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if key != "k1" || plain != "literal" || empty != "" {
		t.Errorf("ResolveAll() = %q, %q, %q", key, plain, empty)
	}
}

func TestManager_Cache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	t.Setenv("RECORDGUARD_SECRET_TOKEN", "v1")
	m := NewManager([]Provider{NewEnvProvider("")}, discard(),
		WithCache(CacheConfig{TTL: time.Minute, MaxSize: 1}),
		WithClock(func() time.Time { return now }))

	if v, _ := m.Get(context.Background(), "token"); v != "v1" {
		t.Fatalf("Get() = %q", v)
	}
	t.Setenv("RECORDGUARD_SECRET_TOKEN", "v2")
	if v, _ := m.Get(context.Background(), "token"); v != "v1" {
		t.Errorf("cached Get() = %q, want v1", v)
	}

	now = now.Add(2 * time.Minute)
	if v, _ := m.Get(context.Background(), "token"); v != "v2" {
		t.Errorf("Get() after TTL = %q, want v2", v)
	}

	t.Setenv("RECORDGUARD_SECRET_OTHER", "o")
	_, _ = m.Get(context.Background(), "other")
	if n := m.cache.size(); n != 1 {
		t.Errorf("cache size = %d, want 1 (MaxSize)", n)
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := m.cache.size(); n != 0 {
		t.Errorf("cache size after Refresh = %d, want 0", n)
	}
}

func TestRedact(t *testing.T) {
	if got := redact("abc"); got != "***" {
		t.Errorf("redact(abc) = %q", got)
	}
	if got := redact("field-key"); got != "fi...ey" {
		t.Errorf("redact(field-key) = %q", got)
	}
}
