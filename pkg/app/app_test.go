package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/config"
	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/telemetry/health"
	"recordguard-hq/recordguard/pkg/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func accountCtx() *validation.Context {
	return &validation.Context{
		Operation:  validation.OperationCreate,
		EntityType: "Account",
		UserID:     "u1",
		Security: &validation.SecurityContext{
			UserID:      "u1",
			Roles:       []string{"agent"},
			Permissions: []string{"*"},
			SessionID:   "s1",
			IPAddress:   "10.0.0.1",
		},
	}
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(nil, WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.True(t, a.Registry.Has("Account", ""))
	assert.Nil(t, a.Engine.Cache())
	assert.Same(t, a.Audit, a.Engine.Audit(), "the engine shares the app audit log")

	result, err := a.Engine.Validate(context.Background(),
		validation.Record{"accountName": "Acme", "accountType": 1}, accountCtx())
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Positive(t, a.Audit.Len())

	report := a.Health.Readiness(context.Background())
	assert.Equal(t, health.StatusReady, report.Status)
}

func TestNew_FullStack(t *testing.T) {
	dir := t.TempDir()
	schemaDir := filepath.Join(dir, "schemas")
	require.NoError(t, os.Mkdir(schemaDir, 0o755))

	cfg := config.Default()
	cfg.Cache.Enabled = true
	cfg.Audit.SQLite.Enabled = true
	cfg.Audit.SQLite.Path = filepath.Join(dir, "audit.db")
	cfg.Schema.Dir = schemaDir
	cfg.Schema.Watch = true
	cfg.Schema.Debounce = 10 * time.Millisecond
	cfg.Telemetry.Tracing.Enabled = true
	require.NoError(t, config.Validate(cfg))

	reg := prometheus.NewRegistry()
	exporter := tracetest.NewInMemoryExporter()
	a, err := New(cfg,
		WithLogger(discardLogger()),
		WithPrometheusRegistry(reg),
		WithSpanExporter(exporter),
		WithVersion("test"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, a.Start(ctx))

	require.NotNil(t, a.Engine.Cache())
	_, err = a.Engine.Validate(ctx, validation.Record{"accountName": "Acme", "accountType": 1}, accountCtx())
	require.NoError(t, err)

	assert.NotEmpty(t, exporter.GetSpans(), "spans reach the configured exporter")

	n, err := testutil.GatherAndCount(reg, "recordguard_audit_entries_total")
	require.NoError(t, err)
	assert.Positive(t, n)

	entries, err := a.sqlite.Query(ctx, &audit.Filter{Category: audit.CategorySecurity})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "entries are persisted through the breaker")

	report := a.Health.Readiness(ctx)
	assert.Equal(t, health.StatusReady, report.Status)
	assert.Contains(t, report.Checks, "audit_sink")

	schemaYAML := `entity_type: Widget
version: "1.0"
fields:
  - name: name
    kind: string
    required: true
`
	// Rewritten until seen: the watcher registers the directory asynchronously.
	assert.Eventually(t, func() bool {
		if a.Registry.Has("Widget", "") {
			return true
		}
		_ = os.WriteFile(filepath.Join(schemaDir, "widget.yaml"), []byte(schemaYAML), 0o600)
		return false
	}, 3*time.Second, 50*time.Millisecond, "the watcher reloads the schema directory")

	require.NoError(t, a.Close(context.Background()))
	assert.NoError(t, a.Close(context.Background()), "close is idempotent")
}

func TestNew_InvalidComponentConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sanitizer.MaxDepth = 0

	a, err := New(cfg, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "failed to create sanitizer")
}

func TestNew_FailureReleasesOpenedResources(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Audit.SQLite.Enabled = true
	cfg.Audit.SQLite.Path = filepath.Join(dir, "audit.db")
	cfg.Sanitizer.MaxDepth = 0

	var (
		a   *App
		err error
	)
	require.NotPanics(t, func() {
		a, err = New(cfg, WithLogger(discardLogger()))
	})
	require.Error(t, err)
	assert.Nil(t, a)

	// The audit database was closed, so a second app can open it.
	cfg = config.Default()
	cfg.Audit.SQLite.Enabled = true
	cfg.Audit.SQLite.Path = filepath.Join(dir, "audit.db")
	a, err = New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.NoError(t, a.Close(context.Background()))
}

func TestClose_NilApp(t *testing.T) {
	var a *App
	assert.NoError(t, a.Close(context.Background()))
}

func TestNew_ResolvesSecrets(t *testing.T) {
	secretDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secretDir, "ops-key"), []byte("s3cr3t-ops\n"), 0o600))
	t.Setenv("RECORDGUARD_SECRET_FIELD_KEY", "field-passphrase")

	cfg := config.Default()
	cfg.Secrets.Dir = secretDir
	cfg.Security.EncryptionKey = "${secret:field-key}"
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.Keys = []auth.KeyConfig{{Key: "${secret:ops-key}", UserID: "ops-bot"}}
	require.NoError(t, config.Validate(cfg))

	a, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, "field-passphrase", a.Config.Security.EncryptionKey)
	assert.Equal(t, "s3cr3t-ops", a.Config.Server.Auth.Keys[0].Key)
}

func TestNew_UnresolvedSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Security.EncryptionKey = "${secret:does-not-exist}"

	_, err := New(cfg, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve secrets")
}
