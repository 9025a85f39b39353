package config

import (
	"net/url"
	"strings"
)

// LinkBlocklist holds normalized hostnames the browser must never be sent to
// through /link. A host also blocks all of its subdomains.
type LinkBlocklist struct {
	hosts map[string]struct{}
}

// NewLinkBlocklist trims, lowercases and deduplicates host entries.
func NewLinkBlocklist(entries []string) LinkBlocklist {
	hosts := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		host := normalizeHostname(raw)
		if host == "" {
			continue
		}
		hosts[host] = struct{}{}
	}
	return LinkBlocklist{hosts: hosts}
}

// Blocks reports whether the given URL or hostname matches the blocklist.
func (b LinkBlocklist) Blocks(rawURL string) bool {
	if len(b.hosts) == 0 {
		return false
	}

	host := normalizeHostname(rawURL)
	if host == "" {
		return false
	}

	if _, ok := b.hosts[host]; ok {
		return true
	}
	for blocked := range b.hosts {
		if strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func normalizeHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Allow bare hostnames by prefixing a scheme for URL parsing.
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.Trim(host, ".")
}
