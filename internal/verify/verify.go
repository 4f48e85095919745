// Package verify scores visual similarity between a reference embedding and a
// source image or video.
package verify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"docverify/internal/embed"
	"docverify/internal/logger"
)

const (
	// MatchThreshold is the fixed similarity cutoff; a result matches only
	// when its score is strictly greater.
	MatchThreshold float32 = 0.8

	// FrameStride bounds embedding cost: only every FrameStride-th decoded
	// frame is embedded and scored. Frames between samples are counted but
	// never candidates for the best frame.
	FrameStride = 10
)

// IsMatch applies the fixed threshold. A score of exactly 0.8 does not match.
func IsMatch(score float32) bool {
	return score > MatchThreshold
}

// ShouldSample reports whether the frame at the given 1-based position is
// embedded and scored.
func ShouldSample(position int) bool {
	return position%FrameStride == 0
}

// ScanResult is the outcome of a video scan.
type ScanResult struct {
	// FramesChecked is the total decoded-frame count, not the sampled count.
	FramesChecked int

	// BestScore is the highest similarity among sampled frames; 0 when no
	// sampled frame scored above zero.
	BestScore float32

	// BestFrame is the JPEG-encoded best frame, nil when none qualified.
	BestFrame []byte
}

// frameSource yields decoded video frames in stream order. Next copies the
// following frame into frame and reports false at end of stream or on a read
// failure.
type frameSource interface {
	Next(frame *gocv.Mat) bool
}

// captureSource adapts a gocv video capture to frameSource.
type captureSource struct {
	capture *gocv.VideoCapture
}

func (c *captureSource) Next(frame *gocv.Mat) bool {
	if ok := c.capture.Read(frame); !ok || frame.Empty() {
		// End of stream, or a read failure treated the same way.
		return false
	}
	return true
}

// scanFrames drains src, embedding every FrameStride-th frame and tracking
// the highest-scoring one against ref. FramesChecked counts every decoded
// frame, sampled or not. The best frame is copied into best only when its
// score strictly exceeds the previous best; best stays empty when no sampled
// frame scores above zero.
func scanFrames(ctx context.Context, src frameSource, ref []float32, emb embed.Embedder, best *gocv.Mat) (*ScanResult, error) {
	const op = "scanFrames"

	frame := gocv.NewMat()
	defer frame.Close()

	result := &ScanResult{}
	for ctx.Err() == nil {
		if !src.Next(&frame) {
			break
		}
		result.FramesChecked++
		if !ShouldSample(result.FramesChecked) {
			continue
		}

		vec, err := emb.EmbedMat(ctx, frame)
		if errors.Is(err, embed.ErrNoFaceDetected) {
			// Face mode: frames without a detectable face are counted but
			// never scored.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", op, result.FramesChecked, err)
		}

		score, err := embed.Cosine(vec, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", op, result.FramesChecked, err)
		}
		if score > result.BestScore {
			result.BestScore = score
			frame.CopyTo(best)
		}
	}

	return result, nil
}

// ScanVideo decodes frames sequentially, embeds every FrameStride-th frame in
// the given mode and tracks the best-scoring one against ref. A mid-stream
// read failure ends the scan with partial results. The video payload is
// staged to a temporary file that is removed on every exit path.
func ScanVideo(ctx context.Context, video []byte, ref []float32, emb embed.Embedder) (*ScanResult, error) {
	const op = "ScanVideo"
	log := logger.WithComponent("verify")

	tmp, err := os.CreateTemp("", "docverify-video-*")
	if err != nil {
		return nil, fmt.Errorf("%s: cannot stage video: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(video); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%s: cannot stage video: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%s: cannot stage video: %w", op, err)
	}

	capture, err := gocv.VideoCaptureFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("%s: cannot open video stream: %w", op, err)
	}
	defer capture.Close()

	best := gocv.NewMat()
	defer best.Close()

	result, err := scanFrames(ctx, &captureSource{capture: capture}, ref, emb, &best)
	if err != nil {
		return nil, err
	}

	if !best.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, best)
		if err != nil {
			return nil, fmt.Errorf("%s: cannot encode best frame: %w", op, err)
		}
		result.BestFrame = append([]byte(nil), buf.GetBytes()...)
		buf.Close()
	}

	log.Debug().
		Int("frames_checked", result.FramesChecked).
		Float32("best_score", result.BestScore).
		Bool("best_frame", result.BestFrame != nil).
		Msg("video scan completed")

	return result, nil
}
