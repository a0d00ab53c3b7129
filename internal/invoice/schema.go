package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// SchemaName names the strict response schema
const SchemaName = "invoice_extraction"

// ExtractionSchema is the strict JSON schema the model must answer with.
// Every property is required and nullable so the model cannot omit or invent keys.
var ExtractionSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": [
    "is_invoice_document", "reason", "document_type", "invoice_number", "issue_date",
    "currency", "supplier_name", "customer_name", "total_amount", "amount_excl_vat",
    "vat_amount", "line_items_present", "description", "notes"
  ],
  "properties": {
    "is_invoice_document": {"type": "boolean"},
    "reason":              {"type": ["string", "null"], "description": "why the document is or is not an invoice"},
    "document_type":       {"type": ["string", "null"], "enum": ["invoice", "credit_note", "tax_payment", "other", null]},
    "invoice_number":      {"type": ["string", "null"]},
    "issue_date":          {"type": ["string", "null"], "description": "YYYY-MM-DD"},
    "currency":            {"type": ["string", "null"]},
    "supplier_name":       {"type": ["string", "null"]},
    "customer_name":       {"type": ["string", "null"]},
    "total_amount":        {"type": ["number", "null"]},
    "amount_excl_vat":     {"type": ["number", "null"]},
    "vat_amount":          {"type": ["number", "null"]},
    "line_items_present":  {"type": "boolean"},
    "description":         {"type": ["string", "null"], "description": "at most 5 words"},
    "notes":               {"type": ["string", "null"]}
  }
}`)

// modelPayload mirrors ExtractionSchema with explicit nullability
type modelPayload struct {
	IsInvoiceDocument *bool        `json:"is_invoice_document"`
	Reason            *string      `json:"reason"`
	DocumentType      *string      `json:"document_type"`
	InvoiceNumber     *string      `json:"invoice_number"`
	IssueDate         *string      `json:"issue_date"`
	Currency          *string      `json:"currency"`
	SupplierName      *string      `json:"supplier_name"`
	CustomerName      *string      `json:"customer_name"`
	TotalAmount       *json.Number `json:"total_amount"`
	AmountExclVAT     *json.Number `json:"amount_excl_vat"`
	VATAmount         *json.Number `json:"vat_amount"`
	LineItemsPresent  *bool        `json:"line_items_present"`
	Description       *string      `json:"description"`
	Notes             *string      `json:"notes"`
}

// DecodeFields validates raw model output and converts it to typed fields
func DecodeFields(raw []byte) (entity.ExtractionFields, error) {
	var p modelPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return entity.ExtractionFields{}, fmt.Errorf("%w: %v", entity.ErrMalformedOutput, err)
	}
	if p.IsInvoiceDocument == nil {
		return entity.ExtractionFields{}, fmt.Errorf("%w: is_invoice_document is missing", entity.ErrMalformedOutput)
	}

	fields := entity.ExtractionFields{
		IsInvoiceDocument: *p.IsInvoiceDocument,
		Reason:            str(p.Reason),
		DocumentType:      str(p.DocumentType),
		InvoiceNumber:     str(p.InvoiceNumber),
		IssueDate:         str(p.IssueDate),
		Currency:          str(p.Currency),
		SupplierName:      str(p.SupplierName),
		CustomerName:      str(p.CustomerName),
		LineItemsPresent:  p.LineItemsPresent != nil && *p.LineItemsPresent,
		Description:       str(p.Description),
		Notes:             str(p.Notes),
	}

	var err error
	if fields.TotalAmount, err = amount("total_amount", p.TotalAmount); err != nil {
		return entity.ExtractionFields{}, err
	}
	if fields.AmountExclVAT, err = amount("amount_excl_vat", p.AmountExclVAT); err != nil {
		return entity.ExtractionFields{}, err
	}
	if fields.VATAmount, err = amount("vat_amount", p.VATAmount); err != nil {
		return entity.ExtractionFields{}, err
	}
	if fields.Currency == "" {
		fields.Currency = "EUR"
	}

	return fields, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func amount(field string, n *json.Number) (decimal.NullDecimal, error) {
	if n == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s is not a number", entity.ErrMalformedOutput, field)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
