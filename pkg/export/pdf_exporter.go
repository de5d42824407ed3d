package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SlipLine is a single subject row on a result slip.
type SlipLine struct {
	Subject   string
	TestScore string
	ExamScore string
	Total     string
	Average   string
	Grade     string
	Position  string
}

// Slip is a printable per-student result slip.
type Slip struct {
	SchoolName    string
	ExamName      string
	StudentName   string
	ClassName     string
	Lines         []SlipLine
	AverageScore  string
	Percentage    string
	Grade         string
	ClassPosition string
	Remarks       string
}

// PDFExporter renders result slips and result sheets into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

var slipHeaders = []string{"Subject", "Test", "Exam", "Total", "Average", "Grade", "Position"}
var slipWidths = []float64{60, 22, 22, 22, 22, 20, 22}

// RenderSlip produces a one-page PDF result slip for a student.
func (e *PDFExporter) RenderSlip(slip Slip) ([]byte, error) {
	if len(slip.Lines) == 0 {
		return nil, fmt.Errorf("result slip requires at least one subject line")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(slip.SchoolName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, slip.ExamName, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, "Student: "+slip.StudentName, "", 0, "", false, 0, "")
	pdf.CellFormat(95, 7, "Class: "+slip.ClassName, "", 1, "", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 9)
	for i, header := range slipHeaders {
		pdf.CellFormat(slipWidths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, line := range slip.Lines {
		cells := []string{line.Subject, line.TestScore, line.ExamScore, line.Total, line.Average, line.Grade, line.Position}
		for i, value := range cells {
			pdf.CellFormat(slipWidths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(63, 7, "Average: "+slip.AverageScore, "", 0, "", false, 0, "")
	pdf.CellFormat(63, 7, "Percentage: "+slip.Percentage, "", 0, "", false, 0, "")
	pdf.CellFormat(63, 7, "Grade: "+slip.Grade, "", 1, "", false, 0, "")
	pdf.CellFormat(63, 7, "Class Position: "+slip.ClassPosition, "", 1, "", false, 0, "")
	if slip.Remarks != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 7, "Remarks: "+slip.Remarks, "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render result slip: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSheet produces a tabular PDF for a class result sheet.
func (e *PDFExporter) RenderSheet(sheet Sheet, title string) ([]byte, error) {
	if len(sheet.Headers) == 0 {
		return nil, fmt.Errorf("pdf sheet requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 9)
	colWidth := 277.0 / float64(len(sheet.Headers))
	for _, header := range sheet.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range sheet.Rows {
		for i := range sheet.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render result sheet: %w", err)
	}
	return buf.Bytes(), nil
}
