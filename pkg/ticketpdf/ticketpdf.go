// Package ticketpdf renders the printable turn slip handed to patients.
package ticketpdf

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

type Slip struct {
	Clinic       string
	Code         string
	PreviousCode string
	PatientName  string
	Doctor       string
	Motive       string
	IssuedAt     time.Time
	Reprint      bool
}

// Render writes slip as a 74x105 mm thermal-style PDF
func Render(w io.Writer, slip Slip) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, tr(slip.Clinic), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	title := "Turno de atención"
	if slip.Reprint {
		title = "Turno reimpreso"
	}
	pdf.CellFormat(contentW, 4, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 26)
	pdf.CellFormat(contentW, 14, slip.Code, "1", 1, "C", false, 0, "")
	if slip.PreviousCode != "" {
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(contentW, 4, tr("Reemplaza a "+slip.PreviousCode), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	label := contentW * 0.3
	value := contentW - label
	rows := [][2]string{
		{"Paciente:", slip.PatientName},
		{"Médico:", slip.Doctor},
		{"Motivo:", slip.Motive},
		{"Emitido:", slip.IssuedAt.Format("02/01/2006 15:04")},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(label, 5, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(value, 5, tr(truncate(row[1], 34)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(3)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("Espere a ser llamado en pantalla"), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("ticketpdf: render %s: %w", slip.Code, err)
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
