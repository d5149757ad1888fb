package enrich

import (
	"context"
	"net"
	"strings"
	"time"
)

// MXVerifier probes email existence by checking the domain publishes at least
// one MX record. Deliberately lightweight: no SMTP mailbox dialog, so it
// catches typo'd domains without tripping anti-abuse defenses.
type MXVerifier struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewMXVerifier creates an MXVerifier with the given per-lookup timeout.
func NewMXVerifier(timeout time.Duration) *MXVerifier {
	return &MXVerifier{resolver: net.DefaultResolver, timeout: timeout}
}

// Verify reports whether the address's domain has MX records. Lookup errors
// count as a negative result.
func (v *MXVerifier) Verify(ctx context.Context, email string) bool {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	records, err := v.resolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}
