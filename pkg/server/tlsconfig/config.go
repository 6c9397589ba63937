package tlsconfig

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// DefaultReloadInterval is how often certificate files are checked for
// changes when ReloadInterval is unset.
const DefaultReloadInterval = 5 * time.Minute

// Config configures TLS for the HTTP API. TLS 1.0 and 1.1 are never
// accepted.
type Config struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM-encoded server certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 cipher suites. Empty uses Go's
	// defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadInterval is how often the certificate files are checked for
	// rotation.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// MTLS configures client certificate authentication.
	MTLS MTLSConfig `yaml:"mtls"`
}

// MTLSConfig configures client certificates.
type MTLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// ClientCAFile is the PEM bundle client certificates are verified
	// against.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuthType is "require", "request" or "verify_if_given".
	// Default: "require"
	ClientAuthType string `yaml:"client_auth_type"`

	// IdentitySource selects the certificate attribute used as the
	// caller's user ID: "subject.CN", "subject.OU", "subject.O" or "SAN".
	// Default: "subject.CN"
	IdentitySource string `yaml:"identity_source"`
}

var cipherSuites = map[string]uint16{
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// Check validates the static parts of the configuration without touching
// the filesystem.
func (c *Config) Check() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.CertFile == "" {
		errs = append(errs, errors.New("cert_file is required when TLS is enabled"))
	}
	if c.KeyFile == "" {
		errs = append(errs, errors.New("key_file is required when TLS is enabled"))
	}
	if _, err := parseVersion(c.MinVersion); err != nil {
		errs = append(errs, err)
	}
	for _, name := range c.CipherSuites {
		if _, ok := cipherSuites[name]; !ok {
			errs = append(errs, fmt.Errorf("unsupported cipher suite %q", name))
		}
	}
	if c.ReloadInterval < 0 {
		errs = append(errs, errors.New("reload_interval must not be negative"))
	}
	if c.MTLS.Enabled {
		if c.MTLS.ClientCAFile == "" {
			errs = append(errs, errors.New("mtls.client_ca_file is required when mTLS is enabled"))
		}
		if _, err := parseClientAuth(c.MTLS.ClientAuthType); err != nil {
			errs = append(errs, err)
		}
		switch c.MTLS.IdentitySource {
		case "", "subject.CN", "subject.OU", "subject.O", "SAN":
		default:
			errs = append(errs, fmt.Errorf("unsupported identity source %q", c.MTLS.IdentitySource))
		}
	}
	return errors.Join(errs...)
}

// Build loads the certificate, starts a Reloader bound to ctx and returns
// a tls.Config serving the current certificate. It returns nil when TLS is
// disabled.
func (c *Config) Build(ctx context.Context, logger *slog.Logger) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	minVersion, _ := parseVersion(c.MinVersion)

	interval := c.ReloadInterval
	if interval == 0 {
		interval = DefaultReloadInterval
	}
	reloader := NewReloader(c.CertFile, c.KeyFile, interval, logger)
	if err := reloader.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	// #nosec G402 - MinVersion is 1.2 or 1.3
	cfg := &tls.Config{
		MinVersion:     minVersion,
		GetCertificate: reloader.GetCertificateFunc(),
	}
	for _, name := range c.CipherSuites {
		cfg.CipherSuites = append(cfg.CipherSuites, cipherSuites[name])
	}

	if c.MTLS.Enabled {
		pem, err := os.ReadFile(c.MTLS.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.MTLS.ClientCAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth, _ = parseClientAuth(c.MTLS.ClientAuthType)
	}
	return cfg, nil
}

func parseVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported min_version %q (use 1.2 or 1.3)", v)
	}
}

func parseClientAuth(v string) (tls.ClientAuthType, error) {
	switch v {
	case "require", "":
		return tls.RequireAndVerifyClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven, nil
	default:
		return 0, fmt.Errorf("unsupported client_auth_type %q", v)
	}
}
