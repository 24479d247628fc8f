// Package callsign converts commercial IATA flight numbers into the ICAO callsigns
// broadcast by aircraft transponders ("SQ114" -> "SIA114").
package callsign

import (
	"regexp"
	"strings"
)

// Airline designator: two characters, at least one of them a letter ("SQ", "3K", "U2").
var flightNumberRe = regexp.MustCompile(`^([A-Z]{2}|[A-Z][0-9]|[0-9][A-Z])([0-9]{1,4}[A-Z]?)$`)

var iataToICAO = map[string]string{
	"SQ": "SIA", // Singapore Airlines
	"TR": "TGW", // Scoot
	"MI": "SLK", // SilkAir
	"3K": "JSA", // Jetstar Asia
	"MH": "MAS", // Malaysia Airlines
	"AK": "AXM", // AirAsia
	"D7": "XAX", // AirAsia X
	"OD": "MXD", // Batik Air Malaysia
	"GA": "GIA", // Garuda Indonesia
	"QZ": "AWQ", // Indonesia AirAsia
	"TG": "THA", // Thai Airways
	"FD": "AIQ", // Thai AirAsia
	"VN": "HVN", // Vietnam Airlines
	"VJ": "VJC", // VietJet
	"PR": "PAL", // Philippine Airlines
	"5J": "CEB", // Cebu Pacific
	"CX": "CPA", // Cathay Pacific
	"UO": "HKE", // HK Express
	"CI": "CAL", // China Airlines
	"BR": "EVA", // EVA Air
	"JL": "JAL", // Japan Airlines
	"NH": "ANA", // All Nippon Airways
	"KE": "KAL", // Korean Air
	"OZ": "AAR", // Asiana
	"CA": "CCA", // Air China
	"MU": "CES", // China Eastern
	"CZ": "CSN", // China Southern
	"AI": "AIC", // Air India
	"6E": "IGO", // IndiGo
	"EK": "UAE", // Emirates
	"EY": "ETD", // Etihad
	"QR": "QTR", // Qatar Airways
	"TK": "THY", // Turkish Airlines
	"QF": "QFA", // Qantas
	"JQ": "JST", // Jetstar
	"VA": "VOZ", // Virgin Australia
	"NZ": "ANZ", // Air New Zealand
	"BA": "BAW", // British Airways
	"VS": "VIR", // Virgin Atlantic
	"LH": "DLH", // Lufthansa
	"LX": "SWR", // Swiss
	"OS": "AUA", // Austrian
	"AF": "AFR", // Air France
	"KL": "KLM", // KLM
	"IB": "IBE", // Iberia
	"AY": "FIN", // Finnair
	"SK": "SAS", // SAS
	"U2": "EZY", // easyJet
	"FR": "RYR", // Ryanair
	"AA": "AAL", // American Airlines
	"UA": "UAL", // United Airlines
	"DL": "DAL", // Delta Air Lines
	"AC": "ACA", // Air Canada
}

// FromFlightNumber returns the ICAO callsign for an IATA flight number. Unknown airlines keep
// their IATA code; input that does not look like a flight number is returned normalized.
func FromFlightNumber(flightNumber string) string {
	normalized := normalize(flightNumber)
	m := flightNumberRe.FindStringSubmatch(normalized)
	if m == nil {
		return normalized
	}
	return AirlineICAO(m[1]) + m[2]
}

// AirlineICAO maps a 2-letter IATA airline code to its ICAO prefix, or returns the code unchanged.
func AirlineICAO(iata string) string {
	iata = strings.ToUpper(iata)
	if icao, ok := iataToICAO[iata]; ok {
		return icao
	}
	return iata
}

// Split breaks a flight number into airline designator and numeric part.
func Split(flightNumber string) (airline, number string, ok bool) {
	m := flightNumberRe.FindStringSubmatch(normalize(flightNumber))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
