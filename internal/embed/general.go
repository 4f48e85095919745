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

// generalInputSize is the square input resolution of the general encoder.
const generalInputSize = 224

// GeneralEmbedder runs a general-purpose ONNX image encoder.
type GeneralEmbedder struct {
	// The dnn Net is stateful across SetInput/Forward; access is serialized.
	mu  sync.Mutex
	net gocv.Net
	log zerolog.Logger
}

// NewGeneralEmbedder loads the ONNX encoder from modelPath once; the returned
// embedder is shared by all requests.
func NewGeneralEmbedder(modelPath string) (*GeneralEmbedder, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("cannot load general embedding model from %s", modelPath)
	}
	return &GeneralEmbedder{
		net: net,
		log: logger.WithComponent("embed-general"),
	}, nil
}

func (e *GeneralEmbedder) EmbedBytes(ctx context.Context, data []byte) ([]float32, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return e.EmbedMat(ctx, img)
}

func (e *GeneralEmbedder) EmbedMat(ctx context.Context, img gocv.Mat) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// swapRB converts the BGR frame to the RGB ordering the encoder expects.
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(generalInputSize, generalInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	out := e.withNet(func(net *gocv.Net) gocv.Mat {
		net.SetInput(blob, "")
		return net.Forward("")
	})
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("cannot read embedding output: %w", err)
	}
	vec := make([]float32, len(raw))
	copy(vec, raw)

	return Normalize(vec), nil
}

// withNet serializes access to the stateful dnn net. The deferred unlock
// keeps the embedder usable even when the forward pass panics.
func (e *GeneralEmbedder) withNet(fn func(net *gocv.Net) gocv.Mat) gocv.Mat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.net)
}

// Close releases the loaded network.
func (e *GeneralEmbedder) Close() error {
	return e.net.Close()
}
