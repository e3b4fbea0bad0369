package api

import (
	"crypto/tls"
	"fmt"
	"os"
)

// TLSConfig holds certificate paths for serving HTTPS.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// TLSFromEnv reads ASSEMBLY_TLS_CERT and ASSEMBLY_TLS_KEY. It returns nil
// unless both are set.
func TLSFromEnv() *TLSConfig {
	certFile := os.Getenv("ASSEMBLY_TLS_CERT")
	keyFile := os.Getenv("ASSEMBLY_TLS_KEY")
	if certFile == "" || keyFile == "" {
		return nil
	}
	return &TLSConfig{CertFile: certFile, KeyFile: keyFile}
}

// Enabled reports whether both paths are set.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

// Load reads the key pair. A disabled config yields nil, nil.
func (c *TLSConfig) Load() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
