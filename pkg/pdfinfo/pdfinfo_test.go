package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// buildPDF assembles a minimal but structurally valid PDF with the given
// number of empty pages, keeping xref offsets consistent.
func buildPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)
	return buf.Bytes()
}

func TestPageCount(t *testing.T) {
	for _, pages := range []int{1, 3, 12} {
		got, err := PageCount(buildPDF(pages))
		if err != nil {
			t.Fatalf("PageCount(%d pages): %v", pages, err)
		}
		if got != pages {
			t.Fatalf("PageCount = %d, want %d", got, pages)
		}
	}
}

func TestPageCountRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("not a pdf at all"),
		[]byte("%PDF-1.4\ntruncated"),
	} {
		if _, err := PageCount(data); !errors.Is(err, ErrNotAPDF) {
			t.Fatalf("PageCount(%q) err = %v, want ErrNotAPDF", data, err)
		}
	}
}
