package server

import "docverify/internal/compare"

// ValidateDocumentResponse is the 200 body of POST /validate-document.
type ValidateDocumentResponse struct {
	Filename         string         `json:"filename"`
	ExtractedText    string         `json:"extracted_text"`
	ComparisonResult compare.Result `json:"comparison_result"`
}

// ImageVerifyResponse is the 200 body of POST /verify for an image source.
type ImageVerifyResponse struct {
	Type            string  `json:"type"`
	Mode            string  `json:"mode"`
	SimilarityScore float32 `json:"similarity_score"`
	Match           bool    `json:"match"`
}

// VideoVerifyResponse is the 200 body of POST /verify for a video source.
// BestFrameBase64 is null when no sampled frame ever scored above zero.
type VideoVerifyResponse struct {
	Type                string  `json:"type"`
	Mode                string  `json:"mode"`
	FramesChecked       int     `json:"frames_checked"`
	BestSimilarityScore float32 `json:"best_similarity_score"`
	Match               bool    `json:"match"`
	BestFrameBase64     *string `json:"best_frame_base64"`
}
