package livetracking

import "github.com/BearBump/FlightBox/internal/integrations/opensky"

// roughly ±0.25° around each aerodrome reference point
var airports = map[string]opensky.BoundingBox{
	"SIN": box(1.3644, 103.9915),
	"KUL": box(2.7456, 101.7099),
	"BKK": box(13.6900, 100.7501),
	"HKG": box(22.3080, 113.9185),
	"MEL": box(-37.6690, 144.8410),
	"SYD": box(-33.9399, 151.1753),
	"CGK": box(-6.1256, 106.6559),
	"DPS": box(-8.7482, 115.1672),
	"NRT": box(35.7720, 140.3929),
	"HND": box(35.5494, 139.7798),
	"ICN": box(37.4602, 126.4407),
	"DXB": box(25.2532, 55.3657),
	"DOH": box(25.2731, 51.6081),
	"LHR": box(51.4700, -0.4543),
	"CDG": box(49.0097, 2.5479),
	"FRA": box(50.0379, 8.5622),
	"JFK": box(40.6413, -73.7781),
	"LAX": box(33.9416, -118.4085),
}

func box(lat, lon float64) opensky.BoundingBox {
	const d = 0.25
	return opensky.BoundingBox{LaMin: lat - d, LoMin: lon - d, LaMax: lat + d, LoMax: lon + d}
}

func AirportBox(iata string) (opensky.BoundingBox, bool) {
	b, ok := airports[iata]
	return b, ok
}
