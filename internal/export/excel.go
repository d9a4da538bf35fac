package export

import (
	"errors"
	"fmt"
	"io"

	"venuebook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	VenueSheet    = "Venue bookings"
	ActivitySheet = "Activity bookings"
)

// ErrTooManyRows is returned before anything is written when a sheet would exceed the row cap.
var ErrTooManyRows = errors.New("export exceeds the row limit")

var (
	venueHeaders    = []string{"ID", "Venue", "User", "Date", "From", "To", "Status", "Created"}
	activityHeaders = []string{"ID", "Activity", "User", "Date", "Time", "Quantity", "Price", "Status", "Created"}
)

// Exporter renders ledger rows into an xlsx workbook.
type Exporter struct {
	maxRows int
}

func NewExporter(maxRows int) *Exporter {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Exporter{maxRows: maxRows}
}

func (e *Exporter) WriteBookings(w io.Writer, venues []*models.VenueBooking, activities []*models.ActivityBooking) error {
	if len(venues) > e.maxRows || len(activities) > e.maxRows {
		return fmt.Errorf("%w: %d venue and %d activity rows, limit %d", ErrTooManyRows, len(venues), len(activities), e.maxRows)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", VenueSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ActivitySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writeHeader(f, VenueSheet, venueHeaders, styles.header); err != nil {
		return err
	}
	for i, b := range venues {
		row := i + 2
		values := []interface{}{b.ID, b.VenueID, b.UserID, b.Date, b.Slot.From, b.Slot.To, b.Status, b.CreatedAt.Format("2006-01-02 15:04")}
		if err := writeRow(f, VenueSheet, row, values, styles.forStatus(b.Status)); err != nil {
			return err
		}
	}

	if err := writeHeader(f, ActivitySheet, activityHeaders, styles.header); err != nil {
		return err
	}
	for i, b := range activities {
		row := i + 2
		values := []interface{}{b.ID, b.ActivityID, b.UserID, b.ActivityDate, b.ActivityTime, b.Quantity, b.Price, b.Status, b.CreatedAt.Format("2006-01-02 15:04")}
		if err := writeRow(f, ActivitySheet, row, values, styles.forStatus(b.Status)); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(VenueSheet, "A", "H", 14)
	_ = f.SetColWidth(ActivitySheet, "A", "I", 14)
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header    int
	booked    int
	cancelled int
}

func (s sheetStyles) forStatus(status string) int {
	if status == models.StatusCancelled {
		return s.cancelled
	}
	return s.booked
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	s.booked, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return s, fmt.Errorf("booked style: %w", err)
	}
	s.cancelled, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return s, fmt.Errorf("cancelled style: %w", err)
	}
	return s, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, first, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	return f.SetCellStyle(sheet, first, last, style)
}
