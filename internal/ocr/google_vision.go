package ocr

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docverify/internal/logger"
)

// ImageAnnotator is the subset of the Vision client used by the service.
// *vision.ImageAnnotatorClient satisfies it.
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	Close() error
}

// GoogleVisionService implements Service using the Google Cloud Vision API.
type GoogleVisionService struct {
	client ImageAnnotator
	langs  []string
	log    zerolog.Logger
}

// NewGoogleVisionService creates an OCR service with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
// langs are the recognition language hints; one recognition pass runs per language.
func NewGoogleVisionService(ctx context.Context, langs ...string) (Service, error) {
	const op = "NewGoogleVisionService"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionServiceWithClient(client, langs...), nil
}

// NewGoogleVisionServiceWithClient creates an OCR service with an explicit client (for testing).
func NewGoogleVisionServiceWithClient(client ImageAnnotator, langs ...string) Service {
	return &GoogleVisionService{
		client: client,
		langs:  langs,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// Extract converts the payload to plain text, running one Vision pass per
// configured language.
func (g *GoogleVisionService) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := validatePayload(data, contentType); err != nil {
		return "", err
	}
	if contentType == ContentTypePDF {
		return g.extractPDF(ctx, data)
	}
	return g.extractImage(ctx, data)
}

func (g *GoogleVisionService) extractImage(ctx context.Context, data []byte) (string, error) {
	const op = "extractImage"

	texts := make([]string, 0, len(g.langs))
	for _, lang := range g.langs {
		req := &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{
				{
					Image: &visionpb.Image{Content: data},
					Features: []*visionpb.Feature{
						{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
					},
					ImageContext: &visionpb.ImageContext{
						LanguageHints: []string{lang},
					},
				},
			},
		}

		resp, err := g.client.BatchAnnotateImages(ctx, req)
		if err != nil {
			return "", WrapOCRError(op, ErrEngine, fmt.Sprintf("Vision API call failed for language %q: %v", lang, err))
		}
		if len(resp.Responses) == 0 {
			return "", WrapOCRError(op, ErrEngine, "no response from Vision API")
		}
		annotation := resp.Responses[0]
		if annotation.Error != nil {
			return "", WrapOCRError(op, ErrEngine, fmt.Sprintf("Vision API error: %s", annotation.Error.Message))
		}
		if annotation.FullTextAnnotation != nil {
			texts = append(texts, annotation.FullTextAnnotation.Text)
		} else {
			texts = append(texts, "")
		}
	}

	g.log.Debug().
		Int("languages", len(g.langs)).
		Msg("image text detection completed")

	return joinPages([][]string{texts}), nil
}

func (g *GoogleVisionService) extractPDF(ctx context.Context, data []byte) (string, error) {
	const op = "extractPDF"

	// One BatchAnnotateFiles call per language; byLang[i][p] is page p's text
	// recognized with language i.
	byLang := make([][]string, 0, len(g.langs))
	pageCount := 0
	for _, lang := range g.langs {
		pages, err := g.annotatePDF(ctx, data, lang)
		if err != nil {
			return "", WrapOCRError(op, err, fmt.Sprintf("language %q", lang))
		}
		if len(pages) > pageCount {
			pageCount = len(pages)
		}
		byLang = append(byLang, pages)
	}

	// Reassemble page-major: all languages' outputs for page 1, then page 2, ...
	pages := make([][]string, pageCount)
	for p := 0; p < pageCount; p++ {
		for _, langPages := range byLang {
			if p < len(langPages) {
				pages[p] = append(pages[p], langPages[p])
			}
		}
	}

	g.log.Debug().
		Int("pages", pageCount).
		Int("languages", len(g.langs)).
		Msg("PDF text detection completed")

	return joinPages(pages), nil
}

func (g *GoogleVisionService) annotatePDF(ctx context.Context, data []byte, lang string) ([]string, error) {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: ContentTypePDF,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: []string{lang},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapOCRError("annotatePDF", ErrEngine, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError("annotatePDF", ErrEngine, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapOCRError("annotatePDF", ErrEngine, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	pages := make([]string, 0, len(fileResp.Responses))
	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, WrapOCRError("annotatePDF", ErrEngine, fmt.Sprintf("error processing page %d: %s", pageIdx+1, page.Error.Message))
		}
		if page.FullTextAnnotation != nil {
			pages = append(pages, page.FullTextAnnotation.Text)
		} else {
			pages = append(pages, "")
		}
	}
	return pages, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
