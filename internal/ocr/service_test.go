package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayload(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("data")...)
	jpeg := append([]byte{0xFF, 0xD8, 0xFF}, []byte("data")...)
	pdf := []byte("%PDF-1.4 data")

	cases := []struct {
		name        string
		data        []byte
		contentType string
		wantErr     error
	}{
		{"valid png", png, "image/png", nil},
		{"valid jpeg", jpeg, "image/jpeg", nil},
		{"valid pdf", pdf, "application/pdf", nil},
		{"png declared as pdf", png, "application/pdf", ErrDecode},
		{"pdf declared as png", pdf, "image/png", ErrDecode},
		{"pdf declared as jpeg", pdf, "image/jpeg", ErrDecode},
		{"unknown type", pdf, "text/plain", ErrDecode},
		{"other image subtype passes through", pdf, "image/webp", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePayload(tc.data, tc.contentType)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidatePayloadSizeLimit(t *testing.T) {
	big := append([]byte("%PDF"), make([]byte, MaxFileSizeBytes)...)
	assert.ErrorIs(t, validatePayload(big, ContentTypePDF), ErrPayloadTooLarge)
}

func TestJoinPagesOrdering(t *testing.T) {
	// Page order first, language-configuration order within each page.
	pages := [][]string{
		{"p1-lang1 ", "p1-lang2 "},
		{"p2-lang1 ", "p2-lang2 "},
	}
	assert.Equal(t, "p1-lang1 p1-lang2 p2-lang1 p2-lang2 ", joinPages(pages))
}

func TestJoinPagesKeepsDuplicateText(t *testing.T) {
	// Both languages recognizing the same content is accepted, not deduplicated.
	pages := [][]string{{"same text", "same text"}}
	assert.Equal(t, "same textsame text", joinPages(pages))
}
