package bridge

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// PackName encodes a dotted name into DNS wire format. The empty name
// packs to the root label.
func PackName(name string) ([]byte, error) {
	buf := make([]byte, 256)
	off, err := dns.PackDomainName(dns.Fqdn(name), buf, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("pack name %q: %w", name, err)
	}
	return buf[:off], nil
}

// UnpackName decodes a DNS wire-format name back to dotted form without
// the trailing dot.
func UnpackName(wire []byte) (string, error) {
	name, _, err := dns.UnpackDomainName(wire, 0)
	if err != nil {
		return "", fmt.Errorf("unpack name: %w", err)
	}
	return strings.TrimSuffix(name, "."), nil
}

// UnpackLabels decodes a DNS wire-format name into its labels.
func UnpackLabels(wire []byte) ([]string, error) {
	name, _, err := dns.UnpackDomainName(wire, 0)
	if err != nil {
		return nil, fmt.Errorf("unpack name: %w", err)
	}
	return dns.SplitDomainName(name), nil
}
