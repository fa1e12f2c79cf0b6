// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package geofence classifies raw coordinates against an ordered list
// of circular zones and produces privacy-masked display locations.
//
// Classification is first-match-wins, not nearest-match: zone order is
// part of the observable contract. Any sample that matches no zone, or
// that cannot be classified at all, resolves to the fixed masked
// location so that raw out-of-zone coordinates never leak.
package geofence

import "math"

// Zone is a named circular geofence region.
type Zone struct {
	Name      string
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Classification is the result of classifying one raw sample.
type Classification struct {
	IsInsideAnyZone  bool
	ZoneName         string
	DisplayLatitude  float64
	DisplayLongitude float64
}

// Engine maps raw coordinates to display locations. It is immutable
// after construction and safe for concurrent use.
type Engine struct {
	zones      []Zone
	maskedLat  float64
	maskedLon  float64
	maskedName string
}

// NewEngine creates an engine over the given ordered zone list. The
// masked coordinates are returned verbatim for every sample that falls
// outside all zones.
func NewEngine(zones []Zone, maskedLat, maskedLon float64, maskedName string) *Engine {
	zs := make([]Zone, len(zones))
	copy(zs, zones)
	return &Engine{
		zones:      zs,
		maskedLat:  maskedLat,
		maskedLon:  maskedLon,
		maskedName: maskedName,
	}
}

// Zones returns a copy of the configured zone list.
func (e *Engine) Zones() []Zone {
	zs := make([]Zone, len(e.zones))
	copy(zs, e.zones)
	return zs
}

// Classify maps a raw sample to a display location. The first zone in
// configuration order whose center is within its radius of the sample
// wins. Non-finite inputs and zero- or negative-radius zones never
// match; masking is the safe default on any ambiguity.
func (e *Engine) Classify(lat, lon float64) Classification {
	if !finite(lat) || !finite(lon) {
		return e.masked()
	}

	for _, z := range e.zones {
		if z.RadiusKm <= 0 || !finite(z.Latitude) || !finite(z.Longitude) {
			continue
		}
		d := haversineKm(lat, lon, z.Latitude, z.Longitude)
		if !finite(d) {
			continue
		}
		if d <= z.RadiusKm {
			return Classification{
				IsInsideAnyZone:  true,
				ZoneName:         z.Name,
				DisplayLatitude:  lat,
				DisplayLongitude: lon,
			}
		}
	}

	return e.masked()
}

// masked returns the fixed out-of-zone classification.
func (e *Engine) masked() Classification {
	return Classification{
		IsInsideAnyZone:  false,
		ZoneName:         e.maskedName,
		DisplayLatitude:  e.maskedLat,
		DisplayLongitude: e.maskedLon,
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MaskedZoneName returns the placeholder zone name used for samples
// outside every configured zone.
func (e *Engine) MaskedZoneName() string {
	return e.maskedName
}

// haversineKm computes the great-circle distance between two points in
// kilometers using the Haversine formula.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
