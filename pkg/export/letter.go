package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Letterhead carries the institutional details printed at the top of a letter.
type Letterhead struct {
	CollegeName string
	Address     string
	Phone       string
	Email       string
	Signoff     string
}

// LetterData holds the application fields merged into the request letter body.
type LetterData struct {
	RefNumber      string
	Date           string
	StudentName    string
	RegNumber      string
	Department     string
	Semester       string
	CompanyName    string
	CompanyAddress string
	StartDate      string
	EndDate        string
	Duties         string
}

// LetterRenderer produces internship request letters on A4 stationery.
type LetterRenderer struct {
	head Letterhead
}

// NewLetterRenderer constructs a renderer bound to a letterhead.
func NewLetterRenderer(head Letterhead) *LetterRenderer {
	if head.Signoff == "" {
		head.Signoff = "Principal"
	}
	return &LetterRenderer{head: head}
}

// Render creates the PDF bytes for a single internship request letter.
func (r *LetterRenderer) Render(data LetterData) ([]byte, error) {
	if data.StudentName == "" || data.CompanyName == "" {
		return nil, fmt.Errorf("letter requires student and company names")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, strings.ToUpper(r.head.CollegeName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if r.head.Address != "" {
		pdf.CellFormat(0, 5, r.head.Address, "", 1, "C", false, 0, "")
	}
	contact := contactLine(r.head.Phone, r.head.Email)
	if contact != "" {
		pdf.CellFormat(0, 5, contact, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 6, "Ref: "+data.RefNumber, "", 0, "L", false, 0, "")
	pdf.CellFormat(75, 6, "Date: "+data.Date, "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.MultiCell(0, 6, "To,\nThe Manager (HR),\n"+data.CompanyName+",\n"+data.CompanyAddress, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, "Sub: Permission for internship training - reg.", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	body := fmt.Sprintf(
		"Dear Sir/Madam,\n\nThis is to certify that %s (Reg. No. %s) is a bonafide student of the "+
			"Department of %s at this institution. As part of the curriculum, the student is required to "+
			"undergo internship training in industry.\n\nWe kindly request you to permit the student to "+
			"undergo internship training at your organisation from %s to %s",
		data.StudentName, data.RegNumber, data.Department, data.StartDate, data.EndDate)
	if data.Duties != "" {
		body += fmt.Sprintf(" in the area of %s", data.Duties)
	}
	body += ". The student will abide by the rules and regulations of your organisation during the training period.\n\nThanking you,"
	pdf.MultiCell(0, 6, body, "", "L", false)
	pdf.Ln(14)

	pdf.CellFormat(0, 6, r.head.Signoff, "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}

func contactLine(phone, email string) string {
	parts := make([]string, 0, 2)
	if phone != "" {
		parts = append(parts, "Ph: "+phone)
	}
	if email != "" {
		parts = append(parts, "Email: "+email)
	}
	return strings.Join(parts, "  |  ")
}
