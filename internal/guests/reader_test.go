package guests

import (
	"bytes"
	"testing"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadGuests_MapsColumnsByHeader(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Guest Name", "Departure Flight", "Arrival Flight", "Arrival Date", "Arrival Time", "Departure Date"},
		{"Ana", "SQ117", "sq 238", "2026-01-18", "18:10", "2026-01-21"},
		{"Ben", "", "SQ114", "18/01/2026", "3:00", ""},
		{},
		{"Cai", "", "MH603", "soon", "", ""},
	})

	res, err := ReadGuests(buf)
	require.NoError(t, err)
	require.Len(t, res.Guests, 3)

	ana := res.Guests[0]
	require.Equal(t, "Ana", ana.Name)
	require.Equal(t, "sq 238", ana.ArrivalFlight)
	require.Equal(t, "18:10", ana.ArrivalTime)
	require.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), *ana.ArrivalDate)
	require.Equal(t, "SQ117", ana.DepartureFlight)
	require.Equal(t, time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), *ana.DepartureDate)

	ben := res.Guests[1]
	require.Equal(t, "03:00", ben.ArrivalTime)
	require.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), *ben.ArrivalDate)
	require.Nil(t, ben.DepartureDate)

	require.Nil(t, res.Guests[2].ArrivalDate)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 5, res.Errors[0].Row)
}

func TestReadGuests_ExcelSerialDatesAndTimes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"arrival_flight", "arrival_date", "arrival_time"}))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "QF1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)))
	// 15:15 as a fraction of a day
	require.NoError(t, f.SetCellFloat("Sheet1", "C2", 15.25/24, 6, 64))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	res, err := ReadGuests(&buf)
	require.NoError(t, err)
	require.Len(t, res.Guests, 1)
	require.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), *res.Guests[0].ArrivalDate)
	require.Equal(t, "15:15", res.Guests[0].ArrivalTime)
}

func TestReadGuests_RequiresFlightColumn(t *testing.T) {
	_, err := ReadGuests(workbook(t, [][]any{{"Name", "Email"}, {"Ana", "a@example.com"}}))
	require.Error(t, err)
}

func TestReadGuests_NotAWorkbook(t *testing.T) {
	_, err := ReadGuests(bytes.NewBufferString("name,flight\n"))
	require.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	mismatch := true
	results := []models.FlightVerificationResult{
		{
			FlightNumber: "SQ238", FlightDate: time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC),
			Direction: models.DirectionArrival, Status: models.VerificationChanged, Source: models.SourceMock,
			ExpectedTime: "18:10", ScheduledTime: "15:15", TimeMismatch: &mismatch, TimeDifference: "-2h 55m",
			ScheduledInfo: &models.ScheduledFlight{DepartureAirport: "MEL", ArrivalAirport: "SIN"},
		},
		{FlightNumber: "QF1", Status: models.VerificationNotFound, Error: "flight not found"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, results))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Flights")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Flight", rows[0][0])
	require.Equal(t, "SQ238", rows[1][0])
	require.Equal(t, "changed", rows[1][3])
	require.Equal(t, "-2h 55m", rows[1][7])
	require.Equal(t, "MEL", rows[1][8])
	require.Equal(t, "flight not found", rows[2][10])
}
