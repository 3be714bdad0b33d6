// Package tlsutil builds TLS configurations from file-based settings for the
// HTTP server, the NATS connection and outbound HTTP fetches.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/semql/errors"
)

// ServerConfig configures a TLS listener, with optional client certificate
// verification.
type ServerConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	CertFile   string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty" yaml:"min_version,omitempty"`

	// ClientCAFiles turns on client certificate verification.
	ClientCAFiles     []string `json:"client_ca_files,omitempty" yaml:"client_ca_files,omitempty"`
	RequireClientCert bool     `json:"require_client_cert,omitempty" yaml:"require_client_cert,omitempty"`
	AllowedClientCNs  []string `json:"allowed_client_cns,omitempty" yaml:"allowed_client_cns,omitempty"`
}

// Validate checks the settings without reading any file.
func (c ServerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return invalid("tls cert_file and key_file are required")
	}
	if c.RequireClientCert && len(c.ClientCAFiles) == 0 {
		return invalid("tls require_client_cert needs client_ca_files")
	}
	return validateVersion(c.MinVersion)
}

// ClientConfig configures an outgoing TLS connection. CAFiles extend the
// system pool.
type ClientConfig struct {
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile            string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`
}

// Validate checks the settings without reading any file.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return invalid("tls cert_file and key_file must be set together")
	}
	return validateVersion(c.MinVersion)
}

// LoadServerConfig returns nil when TLS is disabled.
func LoadServerConfig(cfg ServerConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "load certificate")
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseVersion(cfg.MinVersion),
	}

	if len(cfg.ClientCAFiles) == 0 {
		return tlsConfig, nil
	}
	pool := x509.NewCertPool()
	if err := appendCAs(pool, cfg.ClientCAFiles); err != nil {
		return nil, err
	}
	tlsConfig.ClientCAs = pool
	tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	if cfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	if len(cfg.AllowedClientCNs) > 0 {
		allowed := cfg.AllowedClientCNs
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, chains [][]*x509.Certificate) error {
			return verifyClientCN(chains, allowed)
		}
	}
	return tlsConfig, nil
}

// LoadClientConfig returns nil when TLS is disabled.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if err := appendCAs(pool, cfg.CAFiles); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		RootCAs:            pool,
		MinVersion:         parseVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test environments
	}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func appendCAs(pool *x509.CertPool, files []string) error {
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return errors.WrapFatal(err, "tlsutil", "appendCAs", "read CA file "+file)
		}
		if !pool.AppendCertsFromPEM(data) {
			return errors.WrapFatal(fmt.Errorf("no PEM certificates in %s", file),
				"tlsutil", "appendCAs", "parse CA file")
		}
	}
	return nil
}

func verifyClientCN(chains [][]*x509.Certificate, allowed []string) error {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return fmt.Errorf("no verified certificate chains")
	}
	cn := chains[0][0].Subject.CommonName
	for _, a := range allowed {
		if cn == a {
			return nil
		}
	}
	return fmt.Errorf("client certificate CN %q not in allowed list", cn)
}

func validateVersion(v string) error {
	switch v {
	case "", "1.2", "1.3":
		return nil
	}
	return invalid(fmt.Sprintf("tls min_version %q must be 1.2 or 1.3", v))
}

// parseVersion defaults to TLS 1.2.
func parseVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "Validate", msg)
}
