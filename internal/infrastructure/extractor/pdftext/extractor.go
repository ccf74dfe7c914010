// Package pdftext extracts plain text from in-memory PDF documents.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

const pdfMagic = "%PDF-"

type Extractor struct {
	conf *model.Configuration
}

func NewExtractor() *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{conf: conf}
}

// Extract returns the text of every page followed by a "-- i of n --" marker.
// A document without a text layer yields empty text, not an error.
func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte(pdfMagic)) {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtractionFailed, "pdf extract", errors.New("missing %PDF- header"))
	}

	pageCount, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtractionFailed, "pdf page count", err)
	}

	text, err := extractText(data, pageCount)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtractionFailed, "pdf extract", err)
	}
	return domain.Extraction{Text: text, PageCount: pageCount}, nil
}

func extractText(data []byte, countedPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decoder panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		total = countedPages
	}

	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if !page.V.IsNull() {
			// Pages without a usable text layer contribute nothing.
			if pageText, pageErr := page.GetPlainText(nil); pageErr == nil {
				b.WriteString(strings.TrimSpace(pageText))
			}
		}
		fmt.Fprintf(&b, "\n\n-- %d of %d --\n\n", i, total)
	}
	return b.String(), nil
}
