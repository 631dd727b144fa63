package assessment

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const reportSheet = "Grades"

var reportHeader = []string{
	"Course ID", "Course", "Pre-Test", "Quiz", "Final", "Overall",
	"Status", "Unlocked", "Final Passed", "Certificate",
}

var reportWidths = []float64{10, 60, 10, 10, 10, 10, 10, 10, 12, 12}

var colourFills = map[string]string{
	ColourGreen:  "#C6EFCE",
	ColourOrange: "#FFE4B5",
	ColourRed:    "#FFC7CE",
	ColourMuted:  "#EDEDED",
}

// ExportReport renders the grade report as an XLSX workbook. Missing
// scores are left blank.
func ExportReport(grades []CourseGrade) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	statusStyles := make(map[string]int, len(colourFills))
	for colour, fill := range colourFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return nil, fmt.Errorf("%s style: %w", colour, err)
		}
		statusStyles[colour] = id
	}

	for col, h := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(reportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(reportSheet, name, name, reportWidths[col]); err != nil {
			return nil, fmt.Errorf("column width %s: %w", name, err)
		}
	}

	for i, g := range grades {
		row := i + 2
		values := []interface{}{
			g.CourseID, g.Title, blankIfNil(g.Pretest), blankIfNil(g.Quiz), blankIfNil(g.Final),
			blankIfNil(g.Overall), g.Colour, yesNo(g.Unlocked), yesNo(g.FinalPassed), yesNo(g.CertificateClaimed),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(reportSheet, start, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		status, _ := excelize.CoordinatesToCellName(7, row)
		if err := f.SetCellStyle(reportSheet, status, status, statusStyles[g.Colour]); err != nil {
			return nil, fmt.Errorf("style row %d: %w", row, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func blankIfNil(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
