// Package geoip resolves viewer IP addresses to a coarse location for view
// analytics. Without a MaxMind database the resolver stays loaded but every
// lookup returns empty values, so callers never need a nil check.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Resolver struct {
	reader *maxminddb.Reader
}

type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// New opens the MaxMind database at dbPath. An empty path or an unreadable
// file yields a disabled resolver rather than an error, since geolocation is
// optional for view tracking.
func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip disabled, database not readable", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip database loaded", "path", dbPath)
	return &Resolver{reader: reader}, nil
}

// Lookup returns the ISO country code and English city name for an IP.
// Unparseable addresses and misses resolve to empty strings.
func (r *Resolver) Lookup(ipStr string) (country, city string) {
	if r.reader == nil || ipStr == "" {
		return "", ""
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", ""
	}
	var record mmdbRecord
	if err := r.reader.Lookup(ip, &record); err != nil {
		return "", ""
	}
	return record.Country.ISOCode, record.City.Names["en"]
}

func (r *Resolver) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
