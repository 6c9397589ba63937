package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/config"
	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/server/middleware"
	"recordguard-hq/recordguard/pkg/validation"
)

func withAuth(cfg *config.ServerConfig) {
	cfg.Auth.Enabled = true
	cfg.Auth.Keys = []auth.KeyConfig{{
		Key:         "ops-key",
		UserID:      "ops-bot",
		Roles:       []string{"agent"},
		Permissions: []string{"*"},
	}}
}

func TestNewServer_InvalidKeys(t *testing.T) {
	cfg := config.Default().Server
	cfg.Auth.Enabled = true
	cfg.Auth.Keys = []auth.KeyConfig{{Key: "dup", UserID: "a"}, {Key: "dup", UserID: "b"}}

	_, err := NewServer(&cfg, nil, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API keys")
}

func TestAuth(t *testing.T) {
	srv, eng := newConfiguredServer(t, nil, withAuth)
	h := srv.Handler()
	require.NotNil(t, srv.Keys())

	w := do(t, h, http.MethodPost, "/v1/validate", accountRequest("Acme", 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeBody[middleware.ErrorBody](t, w)
	assert.Equal(t, "unauthorized", body.Error.Code)

	for _, path := range []string{"/health", "/metrics"} {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, nil).Code, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/validate",
		strings.NewReader(`{"record":{"accountName":"Acme","accountType":1},"context":{"operation":"create","entity_type":"Account","user_id":"someone-else","security":{"user_id":"someone-else","roles":["admin"],"session_id":"s1"}}}`))
	req.Header.Set("Authorization", "Bearer ops-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries := eng.AuditLog()
	require.NotEmpty(t, entries)
	assert.Equal(t, "ops-bot", entries[len(entries)-1].Actor, "the key's principal replaces claimed identity")
}

func TestWithTransport_Principal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{
		UserID:      "ops-bot",
		Roles:       []string{"admin"},
		Permissions: []string{"account.create"},
	}))

	got := withTransport(req, &validation.Context{Operation: validation.OperationCreate, EntityType: "Account"}, "")
	require.NotNil(t, got.Security)
	assert.Equal(t, "ops-bot", got.UserID)
	assert.Equal(t, "ops-bot", got.Security.UserID)
	assert.Equal(t, []string{"admin"}, got.Security.Roles)
	assert.Equal(t, "192.0.2.1", got.Security.IPAddress)
}

func TestWithTransport_ClientCertificate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", nil)
	req.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{
		{Subject: pkix.Name{CommonName: "svc-billing"}},
	}}}

	got := withTransport(req, &validation.Context{Operation: validation.OperationRead, EntityType: "Account"}, "subject.CN")
	require.NotNil(t, got.Security)
	assert.Equal(t, "svc-billing", got.UserID)
	assert.Equal(t, "svc-billing", got.Security.UserID)

	claimed := accountRequest("Acme", 1).Context
	assert.Equal(t, "u1", withTransport(req, claimed, "").Security.UserID, "a claimed user is kept without an API key")
}

func TestRateLimit(t *testing.T) {
	srv, _ := newConfiguredServer(t, nil, func(cfg *config.ServerConfig) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/schemas", nil).Code)
	w := do(t, h, http.MethodGet, "/v1/schemas", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code, "probes are not limited")
}

func writeTestCert(t *testing.T, dir string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "tls.crt")
	keyFile := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestServe_TLS(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir())
	srv, _ := newConfiguredServer(t, nil, func(cfg *config.ServerConfig) {
		cfg.TLS.Enabled = true
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}, // #nosec G402 - self-signed test certificate
	}}
	url := "https://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK && resp.TLS != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_TLSMissingCertificate(t *testing.T) {
	srv, _ := newConfiguredServer(t, nil, func(cfg *config.ServerConfig) {
		cfg.TLS.Enabled = true
		cfg.TLS.CertFile = filepath.Join(t.TempDir(), "missing.crt")
		cfg.TLS.KeyFile = filepath.Join(t.TempDir(), "missing.key")
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = srv.Serve(context.Background(), ln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to configure TLS")
}
