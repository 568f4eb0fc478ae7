package ticket

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"workshop-agenda/internal/model"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func event() *model.Event {
	start := time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC)
	return &model.Event{
		ID:         "ev1",
		Title:      "Maria - Civic",
		Start:      start,
		End:        model.SlotEnd(start),
		ClientName: "Maria",
		CarModel:   "Civic",
		Services:   []model.ServiceItem{{Name: "Troca de óleo"}},
		CreatedBy:  model.Creator{UID: "u1", Name: "Ana"},
		Status:     model.StatusConfirmed,
	}
}

func TestDateTime(t *testing.T) {
	got := DateTime(time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC), saoPaulo)
	if got != "segunda-feira, 10 de junho de 2024 às 10:00" {
		t.Errorf("got %q", got)
	}
	if got := Date(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), nil); got != "sábado, 2 de março de 2024" {
		t.Errorf("got %q", got)
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := HTML(&buf, New(event(), saoPaulo)); err != nil {
		t.Fatalf("html: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Maria - Civic",
		"Troca de óleo",
		NoObservations,
		"Ana",
		"window.print()",
		"onafterprint",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if n := strings.Count(out, `class="ruled"`); n != RuledLines {
		t.Errorf("ruled lines: got %d", n)
	}
}

func TestHTMLEscapes(t *testing.T) {
	e := event()
	e.Observations = "<script>alert(1)</script>"
	var buf bytes.Buffer
	HTML(&buf, New(e, nil))
	if strings.Contains(buf.String(), "<script>alert(1)") {
		t.Error("observations not escaped")
	}
}

func TestCanceledIsMarked(t *testing.T) {
	e := event()
	e.Status = model.StatusCanceled
	tk := New(e, nil)
	last := tk.Rows[len(tk.Rows)-1]
	if last.Value != "CANCELADO" {
		t.Errorf("last row: %+v", last)
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := PDF(&buf, New(event(), saoPaulo)); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("not a pdf: %q", buf.Bytes()[:8])
	}
}

func TestLinkQR(t *testing.T) {
	b, err := LinkQR("https://agenda.example.com/agendar/abc", 256)
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("size: %d", img.Bounds().Dx())
	}
}
