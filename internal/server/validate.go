package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docverify/internal/compare"
)

// validateAllowedTypes is the /validate-document content-type allow-list.
var validateAllowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

func (s *Server) handleValidateDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required."})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !validateAllowedTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type."})
		return
	}

	// All input validation happens before any recognition work starts.
	actualData := c.PostForm("actual_data")
	if actualData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actual_data form field is empty."})
		return
	}
	expected, err := compare.ParseExpectedRecord([]byte(actualData))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actual_data is not valid JSON."})
		return
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	extracted, err := s.deps.OCR.Extract(ctx, data, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := s.deps.Comparator.Compare(ctx, extracted, expected)

	s.record(c, "validate-document", fileHeader.Filename, "",
		fmt.Sprintf("matches=%d discrepancies=%d", len(result.Matches), len(result.Discrepancies)),
		contentType, data)

	c.JSON(http.StatusOK, ValidateDocumentResponse{
		Filename:         fileHeader.Filename,
		ExtractedText:    extracted,
		ComparisonResult: result,
	})
}
