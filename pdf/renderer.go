// Package pdf renders invoices as A4 PDF documents with the German layout
// the application ships.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
)

// Renderer draws invoices.
type Renderer struct {
	log zerolog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(log zerolog.Logger) *Renderer {
	return &Renderer{log: log}
}

// Render produces the PDF bytes for one invoice.
func (r *Renderer) Render(inv model.Invoice, user model.User, customer model.Customer) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(20, 20, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(fmt.Sprintf("Rechnung Nr. %s", inv.InvoiceNumber)), "", 1, "C", false, 0, "")
	doc.Ln(6)

	// Sender and recipient side by side.
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(85, 6, tr("Absender:"), "", 0, "L", false, 0, "")
	doc.CellFormat(85, 6, tr("Empfänger:"), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	writeParty(doc, tr, 0, user.DisplayName(), user.Street, user.Zip+" "+user.City, user.Country)
	writeParty(doc, tr, 85, customer.Name, customer.Street, customer.Zip+" "+customer.City, customer.Country)
	doc.Ln(10)

	// Invoice metadata.
	doc.SetFont("Helvetica", "", 10)
	dueDate := inv.DueDate
	if dueDate == "" {
		dueDate = "14 Tage nach Erhalt"
	} else {
		dueDate = formatDate(dueDate)
	}
	writeDetail(doc, tr, "Rechnungsdatum:", formatDate(inv.InvoiceDate))
	writeDetail(doc, tr, "Fälligkeitsdatum:", dueDate)
	if user.TaxID != "" {
		writeDetail(doc, tr, "Steuernummer:", user.TaxID)
	}
	doc.Ln(8)

	// Line items.
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(70, 7, tr("Leistung"), "1", 0, "L", true, 0, "")
	doc.CellFormat(20, 7, tr("Menge"), "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 7, tr("Einzelpreis"), "1", 0, "R", true, 0, "")
	doc.CellFormat(20, 7, tr("MwSt."), "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 7, tr("Gesamt"), "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		gross := float64(item.Quantity) * item.UnitPrice * (1 + item.TaxRate)
		doc.CellFormat(70, 7, tr(item.Service), "1", 0, "L", false, 0, "")
		doc.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, amount(item.UnitPrice, inv.Currency), "1", 0, "R", false, 0, "")
		doc.CellFormat(20, 7, fmt.Sprintf("%.0f%%", item.TaxRate*100), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, amount(gross, inv.Currency), "1", 1, "R", false, 0, "")
	}
	doc.Ln(4)

	// Totals.
	writeTotal(doc, tr, "Zwischensumme:", amount(inv.Subtotal, inv.Currency), false)
	writeTotal(doc, tr, "MwSt.:", amount(inv.TaxAmount, inv.Currency), false)
	writeTotal(doc, tr, "Gesamtbetrag:", amount(inv.Total, inv.Currency), true)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "pdf: render invoice")
	}
	r.log.Debug().Str("invoice", inv.InvoiceNumber).Int("bytes", buf.Len()).Msg("pdf rendered")
	return buf.Bytes(), nil
}

func writeParty(doc *gofpdf.Fpdf, tr func(string) string, x float64, lines ...string) {
	top := doc.GetY()
	y := top
	for _, line := range lines {
		if line == "" || line == " " {
			continue
		}
		doc.SetXY(20+x, y)
		doc.CellFormat(85, 5, tr(line), "", 0, "L", false, 0, "")
		y += 5
	}
	doc.SetXY(20, top)
	if x > 0 {
		doc.SetY(y)
	}
}

func writeDetail(doc *gofpdf.Fpdf, tr func(string) string, label, value string) {
	doc.CellFormat(45, 6, tr(label), "", 0, "L", false, 0, "")
	doc.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func writeTotal(doc *gofpdf.Fpdf, tr func(string) string, label, value string, bold bool) {
	if bold {
		doc.SetFont("Helvetica", "B", 10)
	}
	doc.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	doc.CellFormat(30, 6, tr(label), "", 0, "R", false, 0, "")
	doc.CellFormat(30, 6, value, "", 1, "R", false, 0, "")
	if bold {
		doc.SetFont("Helvetica", "", 10)
	}
}

func amount(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

// formatDate turns a stored ISO date into the German display form.
func formatDate(iso string) string {
	t, err := time.Parse(model.DateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006")
}
