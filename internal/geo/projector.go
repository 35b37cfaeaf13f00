package geo

import "math"

// Reference-ellipsoid constants for the offset transform (Krasovsky 1940).
const (
	semiMajorAxis     = 6378245.0
	eccentricitySq    = 0.00669342162296594323
	degreesPerHalfArc = 180.0
)

// Bounding box of the region where the offset transform applies.
// Coordinates outside it are returned unchanged.
const (
	boxLonMin = 72.004
	boxLonMax = 137.8347
	boxLatMin = 0.8293
	boxLatMax = 55.8271
)

// Project converts a WGS-84 coordinate to the offset datum used for map
// display. Pure and stateless; outside the bounding box it is the identity.
func Project(p Point) Point {
	if outsideBox(p) {
		return p
	}

	dLat := offsetLat(p.Lon-105.0, p.Lat-35.0)
	dLon := offsetLon(p.Lon-105.0, p.Lat-35.0)

	radLat := p.Lat / degreesPerHalfArc * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricitySq*magic*magic
	sqrtMagic := math.Sqrt(magic)

	// Scale by the meridian and parallel radii of curvature at this latitude.
	dLat = (dLat * degreesPerHalfArc) / ((semiMajorAxis * (1 - eccentricitySq)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * degreesPerHalfArc) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return Point{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

// ProjectRoute converts every point of a route independently.
func ProjectRoute(route []Point) []Point {
	if len(route) == 0 {
		return route
	}
	out := make([]Point, len(route))
	for i, p := range route {
		out[i] = Project(p)
	}
	return out
}

// outsideBox reports whether the offset transform does not apply to p.
func outsideBox(p Point) bool {
	if p.Lon < boxLonMin || p.Lon > boxLonMax {
		return true
	}
	if p.Lat < boxLatMin || p.Lat > boxLatMax {
		return true
	}
	return false
}

func offsetLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320.0*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func offsetLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
