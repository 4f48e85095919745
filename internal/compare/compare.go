// Package compare checks extracted document text against a caller-supplied
// expected-data record and optionally augments the result with an LLM
// discrepancy analysis.
package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"docverify/internal/logger"
)

// ErrInvalidRecord is returned when the expected-data payload is not a JSON
// object mapping field names to string values.
var ErrInvalidRecord = errors.New("expected-data record is not a JSON object of string values")

// Field is one expected field and its value. Result ordering follows the
// record's own key order.
type Field struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Result partitions the expected record into matched and discrepant fields.
// Analysis and AnalysisError are both absent when enrichment is disabled; at
// most one is present when enrichment was attempted.
type Result struct {
	Matches       []Field `json:"matches"`
	Discrepancies []Field `json:"discrepancies"`
	Analysis      string  `json:"analysis,omitempty"`
	AnalysisError string  `json:"analysis_error,omitempty"`
}

// Comparator partitions expected fields by substring presence in extracted
// text. A nil analyzer disables enrichment entirely.
type Comparator struct {
	analyzer Analyzer
	log      zerolog.Logger
}

func New(analyzer Analyzer) *Comparator {
	return &Comparator{
		analyzer: analyzer,
		log:      logger.WithComponent("compare"),
	}
}

// Compare partitions expected into matches and discrepancies. A field matches
// iff its value, case-folded, is a contiguous substring of the case-folded
// extracted text. No whitespace or punctuation normalization is applied.
func (c *Comparator) Compare(ctx context.Context, extractedText string, expected []Field) Result {
	result := Result{
		Matches:       make([]Field, 0, len(expected)),
		Discrepancies: make([]Field, 0),
	}

	haystack := strings.ToLower(extractedText)
	for _, f := range expected {
		if strings.Contains(haystack, strings.ToLower(f.Value)) {
			result.Matches = append(result.Matches, f)
		} else {
			result.Discrepancies = append(result.Discrepancies, f)
		}
	}

	if c.analyzer == nil {
		return result
	}

	// Enrichment is best-effort: a failed model call is recorded in-band and
	// never fails the comparison.
	analysis, err := c.analyzer.Analyze(ctx, extractedText, expected)
	if err != nil {
		c.log.Warn().Err(err).Msg("discrepancy analysis failed")
		result.AnalysisError = err.Error()
		return result
	}
	result.Analysis = analysis

	return result
}

// ParseExpectedRecord decodes a JSON object into ordered fields, preserving
// the object's own key order. Anything other than a single JSON object with
// string values is rejected.
func ParseExpectedRecord(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, ErrInvalidRecord
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrInvalidRecord
	}

	fields := make([]Field, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, ErrInvalidRecord
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, ErrInvalidRecord
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, ErrInvalidRecord
		}
		val, ok := valTok.(string)
		if !ok {
			return nil, ErrInvalidRecord
		}

		fields = append(fields, Field{Field: key, Value: val})
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return nil, ErrInvalidRecord
	}
	if _, err := dec.Token(); err != io.EOF { // trailing content
		return nil, ErrInvalidRecord
	}

	return fields, nil
}
