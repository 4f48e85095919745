package ocr

import (
	"context"
	"fmt"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docverify/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI OCR backend.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIService implements Service using a Google Document AI OCR processor.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	langs  []string
	log    zerolog.Logger
}

// NewDocumentAIService creates the Document AI backend.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS in env.
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig, langs ...string) (Service, error) {
	const op = "NewDocumentAIService"

	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption

	// Set regional endpoint if not us-central1
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIServiceWithClient(config, client, langs...), nil
}

// NewDocumentAIServiceWithClient creates the backend with an explicit client (for testing).
func NewDocumentAIServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient, langs ...string) Service {
	return &DocumentAIService{
		client: client,
		config: config,
		langs:  langs,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// Extract converts the payload to plain text, one ProcessDocument call per
// configured language.
func (p *DocumentAIService) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	const op = "Extract"

	if err := validatePayload(data, contentType); err != nil {
		return "", err
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	byLang := make([]*documentaipb.Document, 0, len(p.langs))
	pageCount := 0
	for _, lang := range p.langs {
		doc, err := p.processDocument(processCtx, data, contentType, lang)
		if err != nil {
			return "", WrapOCRError(op, err, fmt.Sprintf("language %q", lang))
		}
		if len(doc.Pages) > pageCount {
			pageCount = len(doc.Pages)
		}
		byLang = append(byLang, doc)
	}

	// Reassemble page-major: all languages' outputs for page 1, then page 2, ...
	// Single images come back as one page.
	pages := make([][]string, 0, pageCount)
	if pageCount == 0 {
		texts := make([]string, 0, len(byLang))
		for _, doc := range byLang {
			texts = append(texts, doc.Text)
		}
		pages = append(pages, texts)
	} else {
		for i := 0; i < pageCount; i++ {
			var langTexts []string
			for _, doc := range byLang {
				if i < len(doc.Pages) {
					langTexts = append(langTexts, pageText(doc, doc.Pages[i]))
				}
			}
			pages = append(pages, langTexts)
		}
	}

	p.log.Debug().
		Int("pages", pageCount).
		Int("languages", len(p.langs)).
		Msg("Document AI text detection completed")

	return joinPages(pages), nil
}

func (p *DocumentAIService) processDocument(ctx context.Context, data []byte, contentType, lang string) (*documentaipb.Document, error) {
	const op = "processDocument"

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: contentType,
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{
					LanguageHints: []string{lang},
				},
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrEngine, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrEngine, "no document in response")
	}
	return resp.Document, nil
}

// processorName constructs the full processor resource name.
func (p *DocumentAIService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// pageText resolves one page's text through its layout anchor segments into
// the document-wide text.
func pageText(doc *documentaipb.Document, page *documentaipb.Document_Page) string {
	if page.Layout == nil || page.Layout.TextAnchor == nil {
		return ""
	}
	var out []byte
	text := doc.Text
	for _, seg := range page.Layout.TextAnchor.TextSegments {
		start, end := seg.StartIndex, seg.EndIndex
		if start < 0 || end > int64(len(text)) || start > end {
			continue
		}
		out = append(out, text[start:end]...)
	}
	return string(out)
}

// Close closes the underlying Document AI client.
func (p *DocumentAIService) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
