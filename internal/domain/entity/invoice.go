package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxDescriptionWords bounds the ledger description
const MaxDescriptionWords = 5

// ExtractionFields holds the typed fields produced by the document model
type ExtractionFields struct {
	IsInvoiceDocument bool                `json:"is_invoice_document"`
	Reason            string              `json:"reason,omitempty"`
	DocumentType      string              `json:"document_type,omitempty"`
	InvoiceNumber     string              `json:"invoice_number,omitempty"`
	IssueDate         string              `json:"issue_date,omitempty"`
	Currency          string              `json:"currency,omitempty"`
	SupplierName      string              `json:"supplier_name,omitempty"`
	CustomerName      string              `json:"customer_name,omitempty"`
	TotalAmount       decimal.NullDecimal `json:"total_amount"`
	AmountExclVAT     decimal.NullDecimal `json:"amount_excl_vat"`
	VATAmount         decimal.NullDecimal `json:"vat_amount"`
	LineItemsPresent  bool                `json:"line_items_present"`
	Description       string              `json:"description,omitempty"`
	Notes             string              `json:"notes,omitempty"`
}

// ValidationSignals counts the invoice signals present in the fields
func (f ExtractionFields) ValidationSignals() int {
	count := 0
	if strings.TrimSpace(f.InvoiceNumber) != "" {
		count++
	}
	if strings.TrimSpace(f.IssueDate) != "" {
		count++
	}
	if strings.TrimSpace(f.SupplierName) != "" {
		count++
	}
	if f.TotalAmount.Valid && !f.TotalAmount.Decimal.IsZero() {
		count++
	}
	if f.LineItemsPresent {
		count++
	}
	return count
}

// ExtractedInvoice is an accepted document with its derived confidence and routing
type ExtractedInvoice struct {
	ExtractionFields
	Confidence int           `json:"confidence"`
	Routing    RoutingResult `json:"routing"`
}

// NewExtractedInvoice builds an ExtractedInvoice with the description capped at five words
func NewExtractedInvoice(fields ExtractionFields, confidence int, routing RoutingResult) ExtractedInvoice {
	fields.Description = TruncateWords(fields.Description, MaxDescriptionWords)
	return ExtractedInvoice{
		ExtractionFields: fields,
		Confidence:       confidence,
		Routing:          routing,
	}
}

// IssueTime parses the issue date, reporting false when absent or unparseable
func (i ExtractedInvoice) IssueTime() (time.Time, bool) {
	return ParseIssueDate(i.IssueDate)
}

// TruncateWords keeps the first n whitespace-separated tokens
func TruncateWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

var issueDateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	time.RFC3339,
}

// ParseIssueDate accepts the date forms the model is known to emit
func ParseIssueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
