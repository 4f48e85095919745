package embed

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"docverify/internal/logger"
)

// faceInputSize is the square input resolution of the face encoder.
const faceInputSize = 112

// FaceEmbedder detects the largest face in an image and runs it through a
// face-representation ONNX encoder.
type FaceEmbedder struct {
	// Cascade detection and net forward passes are stateful; serialized.
	mu      sync.Mutex
	cascade gocv.CascadeClassifier
	net     gocv.Net
	log     zerolog.Logger
}

// NewFaceEmbedder loads the face encoder and the Haar cascade detector once;
// the returned embedder is shared by all requests.
func NewFaceEmbedder(modelPath, cascadePath string) (*FaceEmbedder, error) {
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(cascadePath) {
		cascade.Close()
		return nil, fmt.Errorf("cannot load face cascade from %s", cascadePath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		cascade.Close()
		return nil, fmt.Errorf("cannot load face embedding model from %s", modelPath)
	}

	return &FaceEmbedder{
		cascade: cascade,
		net:     net,
		log:     logger.WithComponent("embed-face"),
	}, nil
}

func (e *FaceEmbedder) EmbedBytes(ctx context.Context, data []byte) ([]float32, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return e.EmbedMat(ctx, img)
}

func (e *FaceEmbedder) EmbedMat(ctx context.Context, img gocv.Mat) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	e.mu.Lock()
	defer e.mu.Unlock()

	rects := e.cascade.DetectMultiScale(gray)
	if len(rects) == 0 {
		// Propagates as a request failure, not a partial result.
		return nil, ErrNoFaceDetected
	}

	face := img.Region(largestRect(rects))
	defer face.Close()

	// swapRB converts the BGR crop to the RGB ordering the encoder expects.
	blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(faceInputSize, faceInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("cannot read embedding output: %w", err)
	}
	vec := make([]float32, len(raw))
	copy(vec, raw)

	return Normalize(vec), nil
}

func largestRect(rects []image.Rectangle) image.Rectangle {
	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best
}

// Close releases the detector and the loaded network.
func (e *FaceEmbedder) Close() error {
	if err := e.cascade.Close(); err != nil {
		return err
	}
	return e.net.Close()
}
