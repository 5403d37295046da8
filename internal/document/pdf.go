package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTextBytes caps the text read from a single PDF.
const maxTextBytes = 1 << 20

// PDFText extracts the text layer of a PDF, one output line per text row.
// The pdf library can panic on malformed input, so panics are returned as errors.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Recovered from panic while reading PDF", "panic", r)
			text = ""
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, rowErr := page.GetTextByRow()
		if rowErr != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, rowErr)
		}

		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			sb.WriteString(strings.Join(words, " "))
			sb.WriteByte('\n')

			if sb.Len() > maxTextBytes {
				return sb.String(), nil
			}
		}
	}

	return sb.String(), nil
}

// ExtractPDF reads the PDF text layer and extracts expenses from it.
// Scanned documents without a text layer yield a result with no expenses.
func ExtractPDF(data []byte) (Result, error) {
	text, err := PDFText(data)
	if err != nil {
		return Result{}, err
	}

	result := Extract(text)
	slog.Debug("Extracted expenses from PDF",
		"expenses", len(result.Expenses),
		"confidence", result.Confidence)
	return result, nil
}
