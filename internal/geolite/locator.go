package geolite

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Locator resolves addresses to ISO country codes from a GeoLite2 Country
// database. A nil *Locator is valid and resolves nothing.
type Locator struct {
	countryDB *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geolite database %s: %w", path, err)
	}
	return &Locator{countryDB: db}, nil
}

// Country returns the ISO code for ip, or "" when unknown. Private and
// malformed addresses are unknown.
func (l *Locator) Country(ip string) string {
	if l == nil || l.countryDB == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() {
		return ""
	}

	record, err := l.countryDB.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (l *Locator) Close() error {
	if l == nil || l.countryDB == nil {
		return nil
	}
	return l.countryDB.Close()
}
