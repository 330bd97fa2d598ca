package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/domain"
)

// Extractor pulls plain text out of PDF files, one entry per page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Read extracts the text of every page in the file. Pages whose text
// cannot be decoded are returned empty rather than failing the document;
// a file that yields no text at all is reported as an error so the caller
// can skip it.
func (e *Extractor) Read(path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", path)
	}

	pages := make([]domain.Page, 0, numPages)
	extracted := false
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		if text != "" {
			extracted = true
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}

	if !extracted {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return pages, nil
}
