// Package ocr converts uploaded documents into plain text.
//
// Two interchangeable engines are provided: Google Cloud Vision (default) and
// Google Document AI. Both run one recognition pass per configured language and
// concatenate the outputs in page order, then language-configuration order.
// Overlapping text recognized by more than one language is kept as-is.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
package ocr

import (
	"bytes"
	"context"
	"strings"
)

const (
	// MaxFileSizeBytes is the maximum document size for synchronous recognition (20MB).
	MaxFileSizeBytes = 20 * 1024 * 1024

	// ContentTypePDF is the declared content type for paginated documents.
	ContentTypePDF = "application/pdf"
)

// Service defines the interface for OCR text extraction engines.
type Service interface {
	// Extract converts a document payload into plain text. PDF payloads are
	// decoded into pages; anything else is treated as a single image.
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pdfMagic  = []byte("%PDF")
)

// validatePayload checks the payload's leading bytes against the declared
// content type before any engine call is made.
func validatePayload(data []byte, contentType string) error {
	switch {
	case contentType == ContentTypePDF:
		if !bytes.HasPrefix(data, pdfMagic) {
			return WrapOCRError("validatePayload", ErrDecode, "missing PDF header")
		}
	case contentType == "image/png":
		if !bytes.HasPrefix(data, pngMagic) {
			return WrapOCRError("validatePayload", ErrDecode, "missing PNG signature")
		}
	case contentType == "image/jpeg":
		if !bytes.HasPrefix(data, jpegMagic) {
			return WrapOCRError("validatePayload", ErrDecode, "missing JPEG marker")
		}
	case strings.HasPrefix(contentType, "image/"):
		// Other image subtypes are passed through to the engine, which
		// performs its own decoding.
	default:
		return WrapOCRError("validatePayload", ErrDecode, "unrecognized content type "+contentType)
	}
	if len(data) == 0 {
		return WrapOCRError("validatePayload", ErrDecode, "empty payload")
	}
	if len(data) > MaxFileSizeBytes {
		return WrapOCRError("validatePayload", ErrPayloadTooLarge, "")
	}
	return nil
}

// joinPages concatenates per-page, per-language outputs: page order first,
// language-configuration order within each page.
func joinPages(pages [][]string) string {
	var b strings.Builder
	for _, langTexts := range pages {
		for _, t := range langTexts {
			b.WriteString(t)
		}
	}
	return b.String()
}
