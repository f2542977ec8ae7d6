// Package ocr wraps Tesseract behind the pluggable contract the scan pipeline
// consumes: a health check and a single ProcessImage call that turns a stored
// image into structured document fields.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fieldscan/pkg/config"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Fields holds the structured values parsed out of the recognized text.
type Fields struct {
	DocumentNumber string
	Date           string
	Amount         float64
	TotalAmount    float64
	VendorName     string
}

// Result is the outcome of one ProcessImage call. Success=false with Err set
// means the engine ran but could not produce usable output; a non-nil error
// from ProcessImage means the engine itself misbehaved.
type Result struct {
	Success      bool
	DocumentType string
	Extracted    *Fields
	Confidence   float64
	Err          string
}

type Engine struct {
	languages []string
	logger    *zap.Logger
}

func NewEngine(cfg *config.OCRConfig, logger *zap.Logger) *Engine {
	languages := strings.Split(cfg.Languages, "+")
	if len(languages) == 0 || languages[0] == "" {
		languages = []string{"eng"}
	}
	return &Engine{
		languages: languages,
		logger:    logger,
	}
}

// HealthCheck reports whether the Tesseract runtime is usable.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		e.logger.Warn("Tesseract language configuration failed", zap.Error(err))
		return false
	}
	return true
}

// ProcessImage runs preprocessing + Tesseract on the stored file and parses
// the recognized text into structured fields.
func (e *Engine) ProcessImage(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source image not readable: %w", err)
	}

	prepared, cleanup, err := prepareImage(path)
	if err != nil {
		e.logger.Warn("Image preprocessing failed, using original", zap.String("file", path), zap.Error(err))
		prepared = path
	}
	if cleanup != nil {
		defer cleanup()
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImage(prepared); err != nil {
		return nil, fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return &Result{Success: false, Err: fmt.Sprintf("text recognition failed: %v", err)}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &Result{Success: false, Err: "no text recognized in image"}, nil
	}

	fields := ParseFields(text)
	docType := ClassifyDocument(text)
	confidence := scoreConfidence(text, fields)

	e.logger.Info("OCR extraction completed",
		zap.String("file", filepath.Base(path)),
		zap.String("document_type", docType),
		zap.Int("text_length", len(text)),
		zap.Float64("confidence", confidence),
	)

	return &Result{
		Success:      true,
		DocumentType: docType,
		Extracted:    fields,
		Confidence:   confidence,
	}, nil
}

// scoreConfidence is a field-coverage heuristic, not a model probability.
// Each recovered field raises confidence; a very short text lowers it.
func scoreConfidence(text string, fields *Fields) float64 {
	confidence := 0.2
	if fields.DocumentNumber != "" {
		confidence += 0.25
	}
	if fields.TotalAmount > 0 || fields.Amount > 0 {
		confidence += 0.25
	}
	if fields.Date != "" {
		confidence += 0.15
	}
	if fields.VendorName != "" {
		confidence += 0.15
	}
	if len(text) < 40 {
		confidence -= 0.1
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
