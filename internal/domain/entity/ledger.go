package entity

// Ledger column positions, zero based (A..K)
const (
	ColumnEntity = iota
	ColumnSupplier
	ColumnInvoiceNumber
	ColumnDate
	ColumnDescription
	ColumnAmountExclVAT
	ColumnVATAmount
	ColumnAmountInclVAT
	ColumnArchiveLink
	ColumnNotes
	ColumnSender

	LedgerColumns
)

// LedgerRow is one fixed-width ledger row in column order
type LedgerRow []interface{}

// AppendResult reports a ledger append. Error is set instead of returning an error.
type AppendResult struct {
	UpdatedRange string `json:"updated_range,omitempty"`
	UpdatedRows  int64  `json:"updated_rows,omitempty"`
	Error        string `json:"error,omitempty"`
}

// OK reports whether the append succeeded
func (r AppendResult) OK() bool {
	return r.Error == ""
}

// LedgerHeaders names the columns for ledgers created from scratch
var LedgerHeaders = []string{
	"Entity", "Supplier", "Invoice Number", "Date", "Description",
	"Amount excl. VAT", "VAT", "Amount incl. VAT", "Archive Link", "Notes", "Sender",
}
