// Package report renders inventory audit results as xlsx workbooks. The
// Items sheet uses the headers the audit importer recognizes, so an exported
// report can be edited and imported into another event.
package report

import (
	"fmt"
	"io"
	"strconv"

	"equipment-inventory-console/internal/inventory"

	"github.com/tealeg/xlsx/v3"
)

// Sheet names
const (
	SummarySheet   = "Summary"
	ItemsSheet     = "Items"
	AnomaliesSheet = "Anomalies"
)

// ItemHeaders is the header row of the Items sheet
var ItemHeaders = []string{"Device ID", "Serial", "Found", "Condition", "Comments"}

// AnomalyHeaders is the header row of the Anomalies sheet
var AnomalyHeaders = []string{"Item ID", "Device ID", "Kind", "Expected Location", "Actual Location"}

// Event identifies the audit a report describes. LocationName falls back to
// the raw id when empty.
type Event struct {
	View         inventory.EventView
	LocationName string
}

// Build assembles the workbook for an event
func Build(ev Event) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return nil, fmt.Errorf("add %s sheet: %w", SummarySheet, err)
	}
	writeSummary(summary, ev)

	items, err := f.AddSheet(ItemsSheet)
	if err != nil {
		return nil, fmt.Errorf("add %s sheet: %w", ItemsSheet, err)
	}
	writeStrings(items.AddRow(), ItemHeaders...)
	for _, row := range ev.View.Rows {
		r := items.AddRow()
		r.AddCell().SetInt64(row.DeviceID)
		r.AddCell().SetString(row.DeviceLabel)
		r.AddCell().SetString(yesNo(row.Found))
		r.AddCell().SetString(string(row.Condition))
		comments := ""
		if row.Comments != nil {
			comments = *row.Comments
		}
		r.AddCell().SetString(comments)
	}

	anomalies, err := f.AddSheet(AnomaliesSheet)
	if err != nil {
		return nil, fmt.Errorf("add %s sheet: %w", AnomaliesSheet, err)
	}
	writeStrings(anomalies.AddRow(), AnomalyHeaders...)
	for _, a := range ev.View.Anomalies {
		r := anomalies.AddRow()
		r.AddCell().SetInt64(a.ItemID)
		r.AddCell().SetInt64(a.DeviceID)
		r.AddCell().SetString(a.Kind)
		r.AddCell().SetInt64(a.ExpectedLocationID)
		actual := ""
		if a.ActualLocationID != nil {
			actual = strconv.FormatInt(*a.ActualLocationID, 10)
		}
		r.AddCell().SetString(actual)
	}

	return f, nil
}

// Write renders the workbook for ev to w
func Write(w io.Writer, ev Event) error {
	f, err := Build(ev)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename is the suggested download name for an event's report
func Filename(ev Event) string {
	v := ev.View
	if v.EventDate.IsZero() {
		return fmt.Sprintf("inventory-%d.xlsx", v.ID)
	}
	return fmt.Sprintf("inventory-%d-%s.xlsx", v.ID, v.EventDate)
}

func writeSummary(sh *xlsx.Sheet, ev Event) {
	v := ev.View
	location := ev.LocationName
	if location == "" {
		location = fmt.Sprintf("#%d", v.LocationID)
	}
	notes := ""
	if v.Notes != nil {
		notes = *v.Notes
	}

	pair := func(label string, set func(*xlsx.Cell)) {
		r := sh.AddRow()
		r.AddCell().SetString(label)
		set(r.AddCell())
	}
	str := func(s string) func(*xlsx.Cell) { return func(c *xlsx.Cell) { c.SetString(s) } }
	num := func(n int) func(*xlsx.Cell) { return func(c *xlsx.Cell) { c.SetInt(n) } }

	pair("Event", func(c *xlsx.Cell) { c.SetInt64(v.ID) })
	pair("Date", str(v.EventDate.String()))
	pair("Location", str(location))
	pair("Performed by", func(c *xlsx.Cell) { c.SetInt64(v.PerformedBy) })
	pair("Notes", str(notes))
	pair("Found", num(v.Tally.Found))
	pair("Missing", num(v.Tally.Missing))
	pair("Problems", num(v.Tally.Problems))
	pair("Total", num(v.Tally.Total()))
	pair("Anomalies", num(len(v.Anomalies)))
}

func writeStrings(r *xlsx.Row, values ...string) {
	for _, s := range values {
		r.AddCell().SetString(s)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
