// Package pdfinfo extracts structural metadata from PDF binaries.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNotAPDF is returned when the bytes do not parse as a PDF document.
var ErrNotAPDF = errors.New("not a valid PDF document")

// PageCount parses data and returns its page count.
func PageCount(data []byte) (n int, err error) {
	// ledongthuc/pdf panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("%w: %v", ErrNotAPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotAPDF, err)
	}
	n = reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%w: zero pages", ErrNotAPDF)
	}
	return n, nil
}
