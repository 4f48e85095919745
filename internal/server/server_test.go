package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"docverify/internal/archive"
	"docverify/internal/audit"
	"docverify/internal/compare"
	"docverify/internal/embed"
)

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	return s.text, s.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) EmbedBytes(ctx context.Context, image []byte) ([]float32, error) {
	return s.vec, s.err
}

func (s stubEmbedder) EmbedMat(ctx context.Context, img gocv.Mat) ([]float32, error) {
	return s.vec, s.err
}

func newTestServer(deps Dependencies) *Server {
	if deps.Comparator == nil {
		deps.Comparator = compare.New(nil)
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopStore{}
	}
	if deps.Archive == nil {
		deps.Archive = archive.NopStore{}
	}
	return New("", deps)
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func buildMultipart(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doRequest(t *testing.T, s *Server, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRootHealth(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OCR Service is running"}`, rec.Body.String())
}

func TestRequestIDHeaderAssigned(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestLogCarriesAssignedID(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("request_id", "rid-42")

	l := requestLog(c)
	l.Warn().Msg("audit insert failed")
	assert.Contains(t, buf.String(), `"request_id":"rid-42"`)
}

func TestValidateDocumentUnsupportedType(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{text: "ignored"}})

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.txt", contentType: "text/plain", data: []byte("hello")}},
		map[string]string{"actual_data": `{"a":"b"}`})
	rec := doRequest(t, s, "/validate-document", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Unsupported file type."}`, rec.Body.String())
}

func TestValidateDocumentMissingActualData(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{text: "ignored"}})

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.png", contentType: "image/png", data: []byte("img")}},
		nil)
	rec := doRequest(t, s, "/validate-document", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"actual_data form field is empty."}`, rec.Body.String())
}

func TestValidateDocumentBadJSON(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{text: "ignored"}})

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.png", contentType: "image/png", data: []byte("img")}},
		map[string]string{"actual_data": `{bad json`})
	rec := doRequest(t, s, "/validate-document", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"actual_data is not valid JSON."}`, rec.Body.String())
}

func TestValidateDocumentScenario(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{text: "Invoice No: 12345 Total: $99.00"}})

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "invoice.png", contentType: "image/png", data: []byte("img")}},
		map[string]string{"actual_data": `{"invoice_no":"12345","total":"100.00"}`})
	rec := doRequest(t, s, "/validate-document", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ValidateDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "invoice.png", resp.Filename)
	assert.Equal(t, "Invoice No: 12345 Total: $99.00", resp.ExtractedText)
	assert.Equal(t, []compare.Field{{Field: "invoice_no", Value: "12345"}}, resp.ComparisonResult.Matches)
	assert.Equal(t, []compare.Field{{Field: "total", Value: "100.00"}}, resp.ComparisonResult.Discrepancies)

	// No OpenAI key configured: the analysis keys never appear.
	assert.NotContains(t, rec.Body.String(), "analysis")
}

func TestValidateDocumentOCRFailure(t *testing.T) {
	s := newTestServer(Dependencies{OCR: stubOCR{err: fmt.Errorf("recognizer unavailable")}})

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.png", contentType: "image/png", data: []byte("img")}},
		map[string]string{"actual_data": `{"a":"b"}`})
	rec := doRequest(t, s, "/validate-document", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"recognizer unavailable"}`, rec.Body.String())
}

func TestVerifyUnsupportedSourceType(t *testing.T) {
	s := newTestServer(Dependencies{
		OCR:     stubOCR{},
		General: stubEmbedder{vec: []float32{1, 0}},
	})

	body, ct := buildMultipart(t, []filePart{
		{field: "source_file", filename: "a.zip", contentType: "application/zip", data: []byte("zip")},
		{field: "reference_file", filename: "ref.png", contentType: "image/png", data: []byte("img")},
	}, nil)
	rec := doRequest(t, s, "/verify", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Unsupported file type"}`, rec.Body.String())
}

func TestVerifyIdenticalImages(t *testing.T) {
	// Both files embed to the same unit vector, so the score is 1.0.
	s := newTestServer(Dependencies{
		OCR:     stubOCR{},
		General: stubEmbedder{vec: []float32{0.6, 0.8}},
	})

	body, ct := buildMultipart(t, []filePart{
		{field: "source_file", filename: "a.png", contentType: "image/png", data: []byte("img")},
		{field: "reference_file", filename: "b.png", contentType: "image/png", data: []byte("img")},
	}, map[string]string{"mode": "general"})
	rec := doRequest(t, s, "/verify", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ImageVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "image", resp.Type)
	assert.Equal(t, "general", resp.Mode)
	assert.InDelta(t, 1.0, float64(resp.SimilarityScore), 1e-5)
	assert.True(t, resp.Match)
}

func TestVerifyDefaultsToGeneralMode(t *testing.T) {
	s := newTestServer(Dependencies{
		OCR:     stubOCR{},
		General: stubEmbedder{vec: []float32{1, 0}},
		Face:    stubEmbedder{err: embed.ErrNoFaceDetected},
	})

	body, ct := buildMultipart(t, []filePart{
		{field: "source_file", filename: "a.png", contentType: "image/png", data: []byte("img")},
		{field: "reference_file", filename: "b.png", contentType: "image/png", data: []byte("img")},
	}, nil)
	rec := doRequest(t, s, "/verify", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ImageVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "general", resp.Mode)
}

func TestVerifyFaceModeNoFaceDetected(t *testing.T) {
	s := newTestServer(Dependencies{
		OCR:     stubOCR{},
		General: stubEmbedder{vec: []float32{1, 0}},
		Face:    stubEmbedder{err: embed.ErrNoFaceDetected},
	})

	body, ct := buildMultipart(t, []filePart{
		{field: "source_file", filename: "a.png", contentType: "image/png", data: []byte("img")},
		{field: "reference_file", filename: "b.png", contentType: "image/png", data: []byte("img")},
	}, map[string]string{"mode": "face"})
	rec := doRequest(t, s, "/verify", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"no face detected in image"}`, rec.Body.String())
}

func TestSecretGateOnProcessingEndpoints(t *testing.T) {
	deps := Dependencies{
		OCR:        stubOCR{text: "t"},
		Comparator: compare.New(nil),
		Audit:      audit.NopStore{},
		Archive:    archive.NopStore{},
	}
	s := New("s3cret", deps)

	body, ct := buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.png", contentType: "image/png", data: []byte("img")}},
		map[string]string{"actual_data": `{"a":"b"}`})

	req := httptest.NewRequest(http.MethodPost, "/validate-document", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	body, ct = buildMultipart(t,
		[]filePart{{field: "file", filename: "doc.png", contentType: "image/png", data: []byte("img")}},
		map[string]string{"actual_data": `{"a":"b"}`})
	req = httptest.NewRequest(http.MethodPost, "/validate-document", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
