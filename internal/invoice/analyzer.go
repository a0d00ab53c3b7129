package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

// SignalCount is the number of validation signals in the 3-of-5 rule
const SignalCount = 5

// MinSignals is the signal count that accepts a document the model did not flag as an invoice
const MinSignals = 3

// Analysis is the outcome of one accepted or rejected document
type Analysis struct {
	Accepted   bool
	Fields     entity.ExtractionFields
	Signals    int
	Confidence int
	Reason     string
}

// Config holds analyzer settings
type Config struct {
	MaxPages int
	TempDir  string
	PageMime string
}

// Analyzer submits documents to the understanding model and applies the validation rule
type Analyzer struct {
	model    port.DocumentModel
	renderer PageRenderer
	prompt   Prompt
	config   Config
	logger   *zap.Logger
}

// NewAnalyzer creates a new document analyzer
func NewAnalyzer(model port.DocumentModel, renderer PageRenderer, prompt Prompt, cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.PageMime == "" {
		cfg.PageMime = "image/jpeg"
	}
	return &Analyzer{
		model:    model,
		renderer: renderer,
		prompt:   prompt,
		config:   cfg,
		logger:   logger,
	}
}

// Analyze classifies and extracts one document. A rejection is returned as an
// Analysis with Accepted false; errors are reserved for model call failures
// and malformed output.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, filename string) (*Analysis, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document %s is empty", filename)
	}

	staged, err := a.stage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to stage document: %w", err)
	}
	defer a.release(staged)

	pages, err := a.renderer.Render(ctx, staged, a.config.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	userPrompt, err := renderTemplate(a.prompt.UserTemplate, promptData{Filename: filename, PageCount: len(pages)})
	if err != nil {
		return nil, err
	}

	raw, err := a.model.Infer(ctx, port.InferenceRequest{
		Filename:   filename,
		System:     a.prompt.System,
		Prompt:     userPrompt,
		Pages:      pages,
		PageMime:   a.config.PageMime,
		SchemaName: SchemaName,
		Schema:     ExtractionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	fields, err := DecodeFields(raw)
	if err != nil {
		a.logger.Warn("Model output rejected",
			zap.String("filename", filename),
			zap.Error(err))
		return nil, err
	}

	analysis := Evaluate(fields)

	a.logger.Info("Document analyzed",
		zap.String("filename", filename),
		zap.Bool("accepted", analysis.Accepted),
		zap.Bool("model_flag", fields.IsInvoiceDocument),
		zap.Int("signals", analysis.Signals),
		zap.Int("pages", len(pages)))

	return analysis, nil
}

// Evaluate applies the 3-of-5 rule: accept when the model flags an invoice
// or at least three signals hold.
func Evaluate(fields entity.ExtractionFields) *Analysis {
	signals := fields.ValidationSignals()
	analysis := &Analysis{
		Fields:  fields,
		Signals: signals,
	}

	if !fields.IsInvoiceDocument && signals < MinSignals {
		analysis.Reason = fields.Reason
		if analysis.Reason == "" {
			analysis.Reason = entity.ReasonFailedValidation
		}
		return analysis
	}

	analysis.Accepted = true
	analysis.Confidence = signals * 100 / SignalCount
	return analysis
}

func (a *Analyzer) stage(data []byte) (string, error) {
	f, err := os.CreateTemp(a.config.TempDir, "invoice_*.pdf")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// release never fails the caller; a leaked temp file is only logged
func (a *Analyzer) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("Failed to remove staged document",
			zap.String("path", path),
			zap.Error(err))
	} else if err != nil {
		a.logger.Debug("Staged document already removed", zap.String("path", path))
	}
}
