package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Build returns the *tls.Config for the broker connection, or nil when TLS is
// disabled. With no CA file the system roots are used.
func (t TLSConfig) Build(serverName string) (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	minVersion := uint16(tls.VersionTLS12)
	if t.MinVersion == TLSVersion13 {
		minVersion = tls.VersionTLS13
	}

	tlsCfg := &tls.Config{
		MinVersion:         minVersion,
		ServerName:         serverName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in, surfaced as a config warning
	}

	if t.CAFile != "" {
		caBytes, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("no certificates found in CA file")
		}
		tlsCfg.RootCAs = pool
	}

	if t.CertFile != "" || t.KeyFile != "" {
		if t.CertFile == "" || t.KeyFile == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}

	return tlsCfg, nil
}
