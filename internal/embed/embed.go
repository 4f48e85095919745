// Package embed produces unit-normalized visual embeddings from images.
//
// Two backends are available behind the Embedder interface: a general-purpose
// image encoder and a face-specific encoder. The two are not interchangeable;
// a similarity score is only meaningful between vectors produced by the same
// backend. Model weights are loaded once at startup and used read-only.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// ErrNoFaceDetected is returned by the face backend when the input contains
// no detectable face.
var ErrNoFaceDetected = errors.New("no face detected in image")

// Mode selects which embedding backend handles a request.
type Mode int

const (
	ModeGeneral Mode = iota
	ModeFace
)

// ParseMode maps the caller-supplied mode string onto a backend. "general"
// (and the empty default) select the general encoder; every other value
// selects the face encoder.
func ParseMode(s string) Mode {
	if s == "" || s == "general" {
		return ModeGeneral
	}
	return ModeFace
}

func (m Mode) String() string {
	if m == ModeFace {
		return "face"
	}
	return "general"
}

// Embedder converts an image into a unit-normalized vector.
type Embedder interface {
	// EmbedBytes decodes an encoded still image and embeds it.
	EmbedBytes(ctx context.Context, image []byte) ([]float32, error)

	// EmbedMat embeds an already-decoded BGR frame.
	EmbedMat(ctx context.Context, img gocv.Mat) ([]float32, error)
}

// Normalize scales v to unit L2 norm in place and returns it. The zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Cosine returns the cosine similarity of two equal-dimension vectors. Both
// inputs are produced pre-normalized, so this reduces to a dot product.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot), nil
}

func decodeImage(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("cannot decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.New("cannot decode image: empty result")
	}
	return img, nil
}
