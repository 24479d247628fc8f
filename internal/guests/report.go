package guests

import (
	"fmt"
	"io"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Flights"

var reportHeaders = []string{
	"Flight", "Date", "Direction", "Status", "Source",
	"Expected", "Scheduled", "Difference", "From", "To", "Error", "Checked At",
}

// WriteReport renders verification results as an xlsx workbook. Changed flights are highlighted.
func WriteReport(w io.Writer, results []models.FlightVerificationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
	}

	changed, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFCCCC"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "new style")
	}

	for i, r := range results {
		row := i + 2
		var from, to string
		if r.ScheduledInfo != nil {
			from, to = r.ScheduledInfo.DepartureAirport, r.ScheduledInfo.ArrivalAirport
		}
		values := []any{
			r.FlightNumber, r.FlightDate.Format(models.DateLayout), string(r.Direction), string(r.Status), string(r.Source),
			r.ExpectedTime, r.ScheduledTime, r.TimeDifference, from, to, r.Error,
			r.LastCheckedAt.Format("2006-01-02 15:04:05"),
		}
		start := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(reportSheet, start, &values); err != nil {
			return errors.Wrap(err, "write row")
		}
		if r.Status == models.VerificationChanged {
			end, _ := excelize.CoordinatesToCellName(len(reportHeaders), row)
			_ = f.SetCellStyle(reportSheet, start, end, changed)
		}
	}

	for i := 1; i <= len(reportHeaders); i++ {
		col, _ := excelize.ColumnNumberToName(i)
		_ = f.SetColWidth(reportSheet, col, col, 14)
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}
