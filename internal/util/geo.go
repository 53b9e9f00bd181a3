package util

import (
	"fmt"
	"net"

	"github.com/ip2location/ip2location-go/v9"
)

// GeoLocator resolves client addresses to ISO country codes.
// A nil *GeoLocator resolves nothing.
type GeoLocator struct {
	db *ip2location.DB
}

// NewGeoLocator opens the IP2Location database at path
func NewGeoLocator(path string) (*GeoLocator, error) {
	db, err := ip2location.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IP2Location database %s: %w", path, err)
	}
	return &GeoLocator{db: db}, nil
}

// Country returns the short country code of ip, or "" when unknown
func (g *GeoLocator) Country(ip string) string {
	if g == nil || g.db == nil || net.ParseIP(ip) == nil {
		return ""
	}
	record, err := g.db.Get_country_short(ip)
	if err != nil || record.Country_short == "-" {
		return ""
	}
	return record.Country_short
}

// Close releases the database
func (g *GeoLocator) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}
