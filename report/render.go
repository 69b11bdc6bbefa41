package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Artifact is a rendered document.
type Artifact struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Renderer turns a certificate into a document.
type Renderer interface {
	Render(ctx context.Context, cert Certificate) (Artifact, error)
}

// PDFRenderer writes a single-page, text-only PDF using the built-in
// Helvetica font with WinAnsiEncoding. No layout engine is involved.
type PDFRenderer struct {
	Title string
}

var _ Renderer = PDFRenderer{}

func (p PDFRenderer) Render(ctx context.Context, cert Certificate) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	data, err := buildSimplePDF(p.lines(cert))
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		ContentType: "application/pdf",
		Filename:    fmt.Sprintf("vacation-certificate-%s.pdf", cert.RequestID),
		Data:        data,
	}, nil
}

func (p PDFRenderer) lines(cert Certificate) []string {
	title := p.Title
	if title == "" {
		title = "Vacation Certificate"
	}
	lines := []string{
		title,
		"",
		fmt.Sprintf("Employee: %s", cert.EmployeeName),
		fmt.Sprintf("DNI: %s", cert.DNI),
		fmt.Sprintf("Period: %d", cert.Period),
		fmt.Sprintf("From %s to %s (%d days)", cert.StartDate, cert.EndDate, cert.Days),
		fmt.Sprintf("Reason: %s", cert.Reason),
	}
	if !cert.ApprovedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Approved on: %s", cert.ApprovedAt.Format("2006-01-02")))
	}
	return lines
}

func buildSimplePDF(lines []string) ([]byte, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("nothing to render")
	}

	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n16 TL\n50 800 Td\n")
	for i, line := range lines {
		if i == 0 {
			content.WriteString(fmt.Sprintf("(%s) Tj\n", pdfEscape(winAnsi(line))))
			continue
		}
		content.WriteString(fmt.Sprintf("T* (%s) Tj\n", pdfEscape(winAnsi(line))))
	}
	content.WriteString("ET")

	stream := content.String()
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n",
		"4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n",
		fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := []int{0}
	for _, obj := range objects {
		offsets = append(offsets, out.Len())
		out.WriteString(obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(offsets))
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets), xref)
	return out.Bytes(), nil
}

func pdfEscape(v string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(v)
}

// winAnsi re-encodes a UTF-8 line as Windows-1252. Runes outside the code
// page become '?'.
func winAnsi(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}
