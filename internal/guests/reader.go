// Package guests reads and writes the spreadsheets event staff work with.
package guests

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/flighttime"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

type column int

const (
	colID column = iota
	colName
	colArrivalFlight
	colArrivalDate
	colArrivalTime
	colDepartureFlight
	colDepartureDate
	colDepartureTime
)

// header aliases, compared lower-case with spaces and underscores removed
var headerAliases = map[string]column{
	"id":              colID,
	"guestid":         colID,
	"name":            colName,
	"guest":           colName,
	"guestname":       colName,
	"arrivalflight":   colArrivalFlight,
	"inboundflight":   colArrivalFlight,
	"arrivaldate":     colArrivalDate,
	"arrivaltime":     colArrivalTime,
	"departureflight": colDepartureFlight,
	"outboundflight":  colDepartureFlight,
	"departuredate":   colDepartureDate,
	"departuretime":   colDepartureTime,
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// RowError describes a row that could not be read. Reading continues past it.
type RowError struct {
	Row int
	Err string
}

type ReadResult struct {
	Guests []models.Guest
	Errors []RowError
}

// ReadGuests parses the first sheet of an xlsx workbook. The first row is the header;
// columns are matched by name, so their order does not matter.
func ReadGuests(r io.Reader) (ReadResult, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return ReadResult{}, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ReadResult{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return ReadResult{}, errors.Wrap(err, "read rows")
	}
	if len(rows) == 0 {
		return ReadResult{}, errors.New("sheet is empty")
	}

	cols := map[column]int{}
	for i, h := range rows[0] {
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(h)))
		if c, ok := headerAliases[key]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	_, hasArr := cols[colArrivalFlight]
	_, hasDep := cols[colDepartureFlight]
	if !hasArr && !hasDep {
		return ReadResult{}, errors.New("no arrival or departure flight column")
	}

	var res ReadResult
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(c column) string {
			idx, ok := cols[c]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if strings.Join(row, "") == "" {
			continue
		}

		g := models.Guest{
			ID:              cell(colID),
			Name:            cell(colName),
			ArrivalFlight:   cell(colArrivalFlight),
			ArrivalTime:     parseTime(cell(colArrivalTime)),
			DepartureFlight: cell(colDepartureFlight),
			DepartureTime:   parseTime(cell(colDepartureTime)),
		}
		var rowErr []string
		if v := cell(colArrivalDate); v != "" {
			if d, ok := parseDate(v); ok {
				g.ArrivalDate = &d
			} else {
				rowErr = append(rowErr, "bad arrival date "+strconv.Quote(v))
			}
		}
		if v := cell(colDepartureDate); v != "" {
			if d, ok := parseDate(v); ok {
				g.DepartureDate = &d
			} else {
				rowErr = append(rowErr, "bad departure date "+strconv.Quote(v))
			}
		}
		if len(rowErr) > 0 {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Err: strings.Join(rowErr, "; ")})
		}
		res.Guests = append(res.Guests, g)
	}
	return res, nil
}

// parseDate accepts text dates and Excel serial numbers.
func parseDate(v string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return models.CivilDate(t), true
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return models.CivilDate(t), true
		}
	}
	return time.Time{}, false
}

// parseTime accepts clock strings and Excel day fractions (0.5 = 12:00).
func parseTime(v string) string {
	if v == "" {
		return ""
	}
	if n := flighttime.Normalize(v); n != "" {
		return n
	}
	if frac, err := strconv.ParseFloat(v, 64); err == nil && frac >= 0 && frac < 1 {
		total := int(frac*24*60 + 0.5)
		return flighttime.Normalize(strconv.Itoa(total/60) + ":" + strconv.Itoa(total%60))
	}
	return v
}
