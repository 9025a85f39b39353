package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"couchremote/internal/admission"
)

//go:embed default_access.yaml
var defaultAccess []byte

// Access is the trusted-origin allow-list.
type Access struct {
	Networks  []admission.Range
	Addresses []string
}

type accessFile struct {
	TrustedNetworks  []string `yaml:"trusted_networks"`
	TrustedAddresses []string `yaml:"trusted_addresses"`
}

// LoadAccess reads the allow-list from path, falling back to the built-in
// defaults when the file does not exist.
func LoadAccess(path string) (Access, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Access{}, fmt.Errorf("read access file %s: %w", path, err)
		}
		log.Warn("Access file not found, using built-in trusted networks", "path", path)
		data = defaultAccess
	}

	access, err := ParseAccess(data)
	if err != nil {
		return Access{}, fmt.Errorf("access file %s: %w", path, err)
	}

	log.Debug("Trusted origins loaded", "networks", len(access.Networks), "addresses", len(access.Addresses))
	return access, nil
}

func ParseAccess(data []byte) (Access, error) {
	var raw accessFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Access{}, fmt.Errorf("decode yaml: %w", err)
	}

	var access Access
	for _, cidr := range raw.TrustedNetworks {
		r, err := admission.ParseRange(cidr)
		if err != nil {
			return Access{}, err
		}
		access.Networks = append(access.Networks, r)
	}

	for _, entry := range raw.TrustedAddresses {
		addr, err := canonicalAddress(entry)
		if err != nil {
			return Access{}, err
		}
		access.Addresses = append(access.Addresses, addr)
	}

	if len(access.Networks) == 0 && len(access.Addresses) == 0 {
		return Access{}, admission.ErrEmptyAllowList
	}
	return access, nil
}

// canonicalAddress rewrites a trusted literal into the form peers are
// reported in, so the exact-match check in the filter can hit it.
// IPv4-mapped IPv6 forms are refused; list the dotted quad instead.
func canonicalAddress(raw string) (string, error) {
	if ip, err := admission.ParseIPv4(raw); err == nil {
		return admission.FormatIPv4(ip), nil
	}
	if ip := net.ParseIP(raw); ip != nil && ip.To4() == nil {
		return ip.String(), nil
	}
	return "", fmt.Errorf("trusted address %q: %w", raw, admission.ErrMalformedAddress)
}
