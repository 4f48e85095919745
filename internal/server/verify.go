package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docverify/internal/embed"
	"docverify/internal/verify"
)

func (s *Server) handleVerify(c *gin.Context) {
	srcHeader, err := c.FormFile("source_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "source_file form field is required."})
		return
	}
	refHeader, err := c.FormFile("reference_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "reference_file form field is required."})
		return
	}

	srcType := srcHeader.Header.Get("Content-Type")
	isImage := strings.HasPrefix(srcType, "image/")
	isVideo := strings.HasPrefix(srcType, "video/")
	if !isImage && !isVideo {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported file type"})
		return
	}

	mode := embed.ParseMode(c.DefaultPostForm("mode", "general"))
	emb := s.embedder(mode)

	refData, err := readUpload(refHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	srcData, err := readUpload(srcHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	ctx := c.Request.Context()

	// The reference file is always decoded as a still image.
	refVec, err := emb.EmbedBytes(ctx, refData)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	if isImage {
		srcVec, err := emb.EmbedBytes(ctx, srcData)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		score, err := embed.Cosine(refVec, srcVec)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		match := verify.IsMatch(score)
		s.record(c, "verify", srcHeader.Filename, mode.String(),
			fmt.Sprintf("type=image match=%t score=%.4f", match, score),
			srcType, srcData)

		c.JSON(http.StatusOK, ImageVerifyResponse{
			Type:            "image",
			Mode:            mode.String(),
			SimilarityScore: score,
			Match:           match,
		})
		return
	}

	scan, err := verify.ScanVideo(ctx, srcData, refVec, emb)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	var bestFrame *string
	if scan.BestFrame != nil {
		encoded := base64.StdEncoding.EncodeToString(scan.BestFrame)
		bestFrame = &encoded
	}

	match := verify.IsMatch(scan.BestScore)
	s.record(c, "verify", srcHeader.Filename, mode.String(),
		fmt.Sprintf("type=video match=%t score=%.4f frames=%d", match, scan.BestScore, scan.FramesChecked),
		srcType, srcData)

	c.JSON(http.StatusOK, VideoVerifyResponse{
		Type:                "video",
		Mode:                mode.String(),
		FramesChecked:       scan.FramesChecked,
		BestSimilarityScore: scan.BestScore,
		Match:               match,
		BestFrameBase64:     bestFrame,
	})
}
