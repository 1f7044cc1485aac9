// Package pdfdoc reads a PDF file into page-level text.
package pdfdoc

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
)

// Page is the extracted text of a single PDF page.
type Page struct {
	Number int
	Text   string
}

// Load extracts the text of every page of the PDF at path, in order.
// It wraps domain.ErrDocumentRead when the file is missing, unreadable
// or not a valid PDF. Pages without extractable text are returned with
// empty Text so page numbering stays stable.
func Load(path string) (pages []Page, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDocumentRead, statErr)
	}

	// The pdf parser panics on some malformed inputs; fold those into the
	// same error kind as ordinary parse failures.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrDocumentRead, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDocumentRead, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: num})
			continue
		}
		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("%w: failed to extract text of page %d: %v", domain.ErrDocumentRead, num, textErr)
		}
		pages = append(pages, Page{Number: num, Text: text})
	}
	return pages, nil
}
