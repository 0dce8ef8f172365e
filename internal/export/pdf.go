// Package export renders a cycle as a printable PDF report.
//
// The report is a pure projection of its inputs: the same Report always
// produces the same table. Nothing here touches the store or the clock.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/model"
)

// Title heads every report and its page footer.
const Title = "Personal Food Tracking System"

// Row statuses.
const (
	StatusCurrent   = "Current"
	StatusCompleted = "Completed"
	StatusUpcoming  = "Upcoming"
)

// emptyCell stands in for a blank field.
const emptyCell = "-"

// Report is everything the PDF shows.
type Report struct {
	User        model.User
	Cycle       model.Cycle
	CurrentDay  int
	GeneratedOn time.Time
}

// DayStatus classifies a day relative to the current day.
func DayStatus(day, currentDay int) string {
	switch {
	case day == currentDay:
		return StatusCurrent
	case day < currentDay:
		return StatusCompleted
	default:
		return StatusUpcoming
	}
}

// Cell renders a field value for the table.
func Cell(value string) string {
	if strings.TrimSpace(value) == "" {
		return emptyCell
	}
	return value
}

// FileName is the download name of a report:
// food-tracking-cycle-<n>-<username>-<YYYY-MM-DD>.pdf.
func FileName(cycleNumber int, username string, generatedOn time.Time) string {
	return fmt.Sprintf("food-tracking-cycle-%d-%s-%s.pdf",
		cycleNumber, username, calendar.FormatISO(generatedOn))
}

// column layout, A4 portrait with 15mm margins (180mm usable)
var columns = []struct {
	header string
	width  float64
}{
	{"Day", 12},
	{"Morning", 40},
	{"Noon", 40},
	{"Evening", 40},
	{"Total Cal", 25},
	{"Status", 23},
}

const rowHeight = 7

// WritePDF renders r to w.
func WritePDF(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(fmt.Sprintf("%s - Cycle #%d", Title, r.Cycle.Number), true)
	pdf.SetCreator("foodtrack", true)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; this maps UTF-8 input onto them.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8,
			fmt.Sprintf("Page %d of {nb} - %s", pdf.PageNo(), Title),
			"", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range headerLines(r) {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	writeTableHeader(pdf)
	pdf.SetFont("Helvetica", "", 9)
	for day := 1; day <= calendar.CycleLength; day++ {
		entry := r.Cycle.Days[day-1]
		status := DayStatus(day, r.CurrentDay)

		highlight := status == StatusCurrent
		if highlight {
			pdf.SetFillColor(255, 243, 205)
			pdf.SetFont("Helvetica", "B", 9)
		}
		cells := []string{
			fmt.Sprint(day),
			Cell(entry.Morning),
			Cell(entry.Noon),
			Cell(entry.Evening),
			Cell(entry.TotalCalories),
			status,
		}
		for i, text := range cells {
			text = fit(pdf, tr, text, columns[i].width-2)
			pdf.CellFormat(columns[i].width, rowHeight, text, "1", 0, "L", highlight, 0, "")
		}
		pdf.Ln(-1)
		if highlight {
			pdf.SetFont("Helvetica", "", 9)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("export: rendering pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: writing pdf: %w", err)
	}
	return nil
}

func headerLines(r Report) []string {
	return []string{
		"User: " + r.User.Username,
		"Email: " + r.User.Email,
		fmt.Sprintf("Cycle #%d", r.Cycle.Number),
		"Start Date: " + calendar.FormatDate(r.Cycle.StartDate),
		fmt.Sprintf("Current Day: %d/%d", r.CurrentDay, calendar.CycleLength),
		"Generated: " + calendar.FormatDate(r.GeneratedOn),
	}
}

// writeTableHeader draws the column headings and repeats them on every
// following page.
func writeTableHeader(pdf *fpdf.Fpdf) {
	writeHeaderRow(pdf)
	pdf.SetHeaderFunc(func() {
		writeHeaderRow(pdf)
	})
}

func writeHeaderRow(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for _, c := range columns {
		pdf.CellFormat(c.width, rowHeight+1, c.header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

// fit translates text for the core fonts and truncates it with an ellipsis
// so it stays inside width.
func fit(pdf *fpdf.Fpdf, tr func(string) string, text string, width float64) string {
	if out := tr(text); pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := tr(string(runes) + "...")
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
