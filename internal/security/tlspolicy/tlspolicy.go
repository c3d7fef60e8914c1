// Package tlspolicy builds crypto/tls.Config values for TurboMCP's
// listening transports. The default policy refuses anything below
// TLS 1.3; any caller that wants a weaker floor must say so explicitly
// via Insecure; without it, Build rejects a lower floor with an error
// rather than silently downgrading.
package tlspolicy

import (
	"crypto/tls"
	"fmt"
)

// Policy describes the TLS posture for one transport's listener.
type Policy struct {
	// CertFile and KeyFile are PEM paths. Both required when Enabled.
	CertFile string
	KeyFile  string

	// Enabled turns TLS on for the listener this policy is attached to.
	// When false, Build returns (nil, nil): the caller listens in
	// plaintext, matching the teacher's own stance that TLS termination
	// is the deploying operator's concern, not this process's default.
	Enabled bool

	// MinVersion overrides the default floor of tls.VersionTLS13. Zero
	// means "use the default floor."
	MinVersion uint16

	// Insecure permits MinVersion below TLS 1.3. Without it, a
	// sub-1.3 MinVersion is a config error, not a silent downgrade.
	Insecure bool
}

// Build loads the configured certificate and returns a *tls.Config
// honoring this policy, or (nil, nil) if TLS is disabled.
func (p Policy) Build() (*tls.Config, error) {
	if !p.Enabled {
		return nil, nil
	}
	if p.CertFile == "" || p.KeyFile == "" {
		return nil, fmt.Errorf("tlspolicy: cert_file and key_file are required when tls is enabled")
	}

	minVersion := p.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS13
	}
	if minVersion < tls.VersionTLS13 && !p.Insecure {
		return nil, fmt.Errorf("tlspolicy: min_version below TLS 1.3 requires insecure: true")
	}

	cert, err := tls.LoadX509KeyPair(p.CertFile, p.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlspolicy: load certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}
