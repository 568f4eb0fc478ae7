// Package ticket renders the paper service ticket handed to the mechanic:
// a printable HTML page, the same layout as PDF, and QR codes for links.
package ticket

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"workshop-agenda/internal/model"
)

const (
	NoObservations = "Nenhuma observação adicional."
	// blank ruled lines left for handwritten notes
	RuledLines = 8
)

type Row struct {
	Label string
	Value string
}

// Ticket is the fixed content of one printed ticket.
type Ticket struct {
	Title        string
	Rows         []Row
	Services     []string
	Observations string
	Lines        []struct{}
}

// New lays out e. Empty optional fields are printed blank rather than
// dropped so every ticket has the same shape.
func New(e *model.Event, loc *time.Location) Ticket {
	t := Ticket{
		Title: e.Title,
		Rows: []Row{
			{"Cliente", e.ClientName},
			{"Modelo do Carro", e.CarModel},
			{"Placa", e.LicensePlate},
			{"Telefone", e.Phone},
			{"CPF", e.CPF},
			{"Tipo de Serviço", e.ServiceType},
			{"Criado por", e.CreatedBy.Name},
			{"Data e Hora", DateTime(e.Start, loc)},
		},
		Observations: strings.TrimSpace(e.Observations),
		Lines:        make([]struct{}, RuledLines),
	}
	if e.Canceled() {
		t.Rows = append(t.Rows, Row{"Situação", "CANCELADO"})
	}
	for _, s := range e.Services {
		t.Services = append(t.Services, s.Name)
	}
	if t.Observations == "" {
		t.Observations = NoObservations
	}
	return t
}

//go:embed templates/ticket.html
var files embed.FS

var page = template.Must(template.ParseFS(files, "templates/ticket.html"))

// HTML writes a standalone page that opens the print dialog on load and
// closes itself once printing is done.
func HTML(w io.Writer, t Ticket) error {
	return page.Execute(w, t)
}

// PDF writes the same ticket on an A4 page.
func PDF(w io.Writer, t Ticket) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Detalhes do Agendamento"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, tr(t.Title), "B", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, r := range t.Rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 8, tr(r.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, tr(r.Value), "", 1, "L", false, 0, "")
	}

	if len(t.Services) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 8, tr("Serviços"), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		for _, s := range t.Services {
			pdf.CellFormat(0, 7, tr("- "+s), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, tr("Observações:"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr(t.Observations), "", "L", false)

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, tr("Anotações:"), "", 1, "L", false, 0, "")
	for range t.Lines {
		pdf.CellFormat(0, 9, "", "B", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// LinkQR encodes url as a PNG QR code of size pixels.
func LinkQR(url string, size int) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, size)
}
