// Package geo annotates ban diagnostics with the country of an address using
// a local GeoLite2-Country database. Everything is optional: a nil resolver or
// a missing database yields empty annotations, never errors.
package geo

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

type Resolver struct {
	mu sync.RWMutex
	db *geoip2.Reader
}

// Open loads the mmdb at path. An empty path returns a nil resolver, which
// every method tolerates.
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo database %q: %w", path, err)
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO country code for the address, or "" when the
// resolver is disabled or the address is unknown.
func (r *Resolver) Country(address string) string {
	if r == nil {
		return ""
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return ""
	}
	record, err := r.db.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
