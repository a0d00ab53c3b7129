package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Infer(ctx context.Context, req port.InferenceRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type stubRenderer struct {
	paths       []string
	removeFirst bool
	err         error
}

func (r *stubRenderer) Render(ctx context.Context, path string, maxPages int) ([][]byte, error) {
	r.paths = append(r.paths, path)
	if r.removeFirst {
		os.Remove(path)
	}
	if r.err != nil {
		return nil, r.err
	}
	return [][]byte{[]byte("page-1")}, nil
}

var testPrompt = Prompt{
	System:       "You extract Portuguese invoices.",
	UserTemplate: "Extract invoice data from {{.Filename}} ({{.PageCount}} pages).",
}

func newTestAnalyzer(t *testing.T, model port.DocumentModel, renderer PageRenderer) *Analyzer {
	t.Helper()
	return NewAnalyzer(model, renderer, testPrompt, Config{MaxPages: 2, TempDir: t.TempDir()}, zap.NewNop())
}

const invoiceJSON = `{
  "is_invoice_document": true,
  "reason": null,
  "document_type": "invoice",
  "invoice_number": "FT 2025/001",
  "issue_date": "2025-01-10",
  "currency": "EUR",
  "supplier_name": "EDP Comercial",
  "customer_name": "AMANDEL",
  "total_amount": 452.20,
  "amount_excl_vat": 367.64,
  "vat_amount": 84.56,
  "line_items_present": true,
  "description": "Electricity supply January 2025 contract",
  "notes": null
}`

func TestAnalyzer_Analyze_AcceptsInvoice(t *testing.T) {
	model := new(mockModel)
	renderer := &stubRenderer{}
	model.On("Infer", mock.Anything, mock.MatchedBy(func(req port.InferenceRequest) bool {
		return req.Filename == "inv1.pdf" &&
			req.Prompt == "Extract invoice data from inv1.pdf (1 pages)." &&
			req.SchemaName == SchemaName &&
			req.PageMime == "image/jpeg" &&
			len(req.Pages) == 1
	})).Return(json.RawMessage(invoiceJSON), nil)

	a := newTestAnalyzer(t, model, renderer)
	analysis, err := a.Analyze(context.Background(), []byte("%PDF-1.7"), "inv1.pdf")

	require.NoError(t, err)
	assert.True(t, analysis.Accepted)
	assert.Equal(t, 5, analysis.Signals)
	assert.Equal(t, 100, analysis.Confidence)
	assert.Equal(t, "FT 2025/001", analysis.Fields.InvoiceNumber)
	assert.True(t, analysis.Fields.TotalAmount.Decimal.Equal(decimal.RequireFromString("452.20")))
	model.AssertExpectations(t)

	require.Len(t, renderer.paths, 1)
	assert.NoFileExists(t, renderer.paths[0])
}

func TestAnalyzer_Analyze_RejectsWithModelReason(t *testing.T) {
	model := new(mockModel)
	model.On("Infer", mock.Anything, mock.Anything).Return(json.RawMessage(`{
		"is_invoice_document": false, "reason": "marketing flyer", "document_type": "other",
		"invoice_number": null, "issue_date": null, "currency": null, "supplier_name": null,
		"customer_name": null, "total_amount": null, "amount_excl_vat": null, "vat_amount": null,
		"line_items_present": false, "description": null, "notes": null}`), nil)

	analysis, err := newTestAnalyzer(t, model, &stubRenderer{}).Analyze(context.Background(), []byte("pdf"), "flyer.pdf")

	require.NoError(t, err)
	assert.False(t, analysis.Accepted)
	assert.Equal(t, "marketing flyer", analysis.Reason)
	assert.Zero(t, analysis.Confidence)
}

func TestAnalyzer_Analyze_ModelFailureReleasesStagedFile(t *testing.T) {
	model := new(mockModel)
	renderer := &stubRenderer{}
	model.On("Infer", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: i/o timeout"))

	analysis, err := newTestAnalyzer(t, model, renderer).Analyze(context.Background(), []byte("pdf"), "inv.pdf")

	require.Error(t, err)
	assert.Nil(t, analysis)
	assert.Contains(t, err.Error(), "dial tcp: i/o timeout")
	require.Len(t, renderer.paths, 1)
	assert.NoFileExists(t, renderer.paths[0])
}

func TestAnalyzer_Analyze_ReleaseFailureDoesNotMaskResult(t *testing.T) {
	model := new(mockModel)
	model.On("Infer", mock.Anything, mock.Anything).Return(json.RawMessage(invoiceJSON), nil)

	analysis, err := newTestAnalyzer(t, model, &stubRenderer{removeFirst: true}).Analyze(context.Background(), []byte("pdf"), "inv.pdf")

	require.NoError(t, err)
	assert.True(t, analysis.Accepted)
}

func TestAnalyzer_Analyze_RenderFailure(t *testing.T) {
	model := new(mockModel)
	renderer := &stubRenderer{err: errors.New("not a PDF")}

	_, err := newTestAnalyzer(t, model, renderer).Analyze(context.Background(), []byte("garbage"), "x.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render document")
	model.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything)
	assert.NoFileExists(t, renderer.paths[0])
}

func TestAnalyzer_Analyze_MalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Sure! Here is the invoice"},
		{"missing flag", `{"invoice_number": "A1"}`},
		{"unknown key", `{"is_invoice_document": true, "vendor": "x"}`},
		{"wrong type", `{"is_invoice_document": "yes"}`},
		{"non numeric amount", `{"is_invoice_document": true, "total_amount": "lots"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(mockModel)
			model.On("Infer", mock.Anything, mock.Anything).Return(json.RawMessage(tt.raw), nil)

			_, err := newTestAnalyzer(t, model, &stubRenderer{}).Analyze(context.Background(), []byte("pdf"), "x.pdf")

			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrMalformedOutput)
		})
	}
}

func TestAnalyzer_Analyze_EmptyDocument(t *testing.T) {
	_, err := newTestAnalyzer(t, new(mockModel), &stubRenderer{}).Analyze(context.Background(), nil, "x.pdf")
	assert.Error(t, err)
}

func TestAnalyzer_StagesInConfiguredDir(t *testing.T) {
	dir := t.TempDir()
	model := new(mockModel)
	model.On("Infer", mock.Anything, mock.Anything).Return(json.RawMessage(invoiceJSON), nil)
	renderer := &stubRenderer{}

	a := NewAnalyzer(model, renderer, testPrompt, Config{TempDir: dir}, zap.NewNop())
	_, err := a.Analyze(context.Background(), []byte("pdf"), "x.pdf")

	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(renderer.paths[0]))
}

// fieldsWithSignals sets the first n of the five validation signals
func fieldsWithSignals(n int) entity.ExtractionFields {
	var f entity.ExtractionFields
	setters := []func(){
		func() { f.InvoiceNumber = "FT 1" },
		func() { f.IssueDate = "2025-01-10" },
		func() { f.SupplierName = "EDP" },
		func() { f.TotalAmount = decimal.NewNullDecimal(decimal.NewFromInt(10)) },
		func() { f.LineItemsPresent = true },
	}
	for i := 0; i < n; i++ {
		setters[i]()
	}
	return f
}

func TestEvaluate_ThreeOfFiveGate(t *testing.T) {
	for n := 0; n <= SignalCount; n++ {
		fields := fieldsWithSignals(n)

		flagged := fields
		flagged.IsInvoiceDocument = true
		got := Evaluate(flagged)
		assert.True(t, got.Accepted, "model flag must accept with %d signals", n)
		assert.Equal(t, n*20, got.Confidence)

		got = Evaluate(fields)
		if n < MinSignals {
			assert.False(t, got.Accepted, "unflagged with %d signals must reject", n)
			assert.Equal(t, entity.ReasonFailedValidation, got.Reason)
		} else {
			assert.True(t, got.Accepted, "unflagged with %d signals must accept", n)
			assert.Equal(t, n*20, got.Confidence)
		}
	}
}

func TestEvaluate_ZeroTotalIsNotASignal(t *testing.T) {
	f := fieldsWithSignals(2)
	f.TotalAmount = decimal.NewNullDecimal(decimal.Zero)
	got := Evaluate(f)

	assert.Equal(t, 2, got.Signals)
	assert.False(t, got.Accepted)
}

func TestDecodeFields_NullsAndDefaults(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"is_invoice_document": false, "total_amount": null, "supplier_name": "  EDP  "}`))

	require.NoError(t, err)
	assert.False(t, fields.TotalAmount.Valid)
	assert.Equal(t, "EDP", fields.SupplierName)
	assert.Equal(t, "EUR", fields.Currency)
	assert.False(t, fields.LineItemsPresent)
}

func TestDecodeFields_NegativeCreditNote(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"is_invoice_document": true, "document_type": "credit_note", "total_amount": -120.50}`))

	require.NoError(t, err)
	assert.Equal(t, "-120.5", fields.TotalAmount.Decimal.String())
	// Negative totals are non-zero and count as a signal
	assert.Equal(t, 1, fields.ValidationSignals())
}

func TestLoadPrompts(t *testing.T) {
	prompts, err := LoadPrompts("../../configs/prompts.yaml")
	require.NoError(t, err)
	assert.Contains(t, prompts.InvoiceExtraction.System, "credit")

	rendered, err := renderTemplate(prompts.InvoiceExtraction.UserTemplate, promptData{Filename: "inv1.pdf", PageCount: 2})
	require.NoError(t, err)
	assert.Contains(t, rendered, "inv1.pdf")
}
