package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

// DisplayDateLayout is the ledger date form, upper-cased (10-JAN-2025)
const DisplayDateLayout = "02-Jan-2006"

// Config locates the ledger sheet
type Config struct {
	SheetID       string
	AppendRange   string
	IDColumnRange string
}

// Writer appends invoice rows to the ledger and answers duplicate checks
type Writer struct {
	ledger port.RemoteLedger
	config Config
	logger *zap.Logger
}

// NewWriter creates a new ledger writer
func NewWriter(ledger port.RemoteLedger, cfg Config, logger *zap.Logger) *Writer {
	return &Writer{
		ledger: ledger,
		config: cfg,
		logger: logger,
	}
}

// Validate reports a missing ledger id before any candidate is processed
func (w *Writer) Validate() error {
	if strings.TrimSpace(w.config.SheetID) == "" {
		return fmt.Errorf("%w: ledger sheet id is not set", entity.ErrConfiguration)
	}
	if w.config.AppendRange == "" || w.config.IDColumnRange == "" {
		return fmt.Errorf("%w: ledger ranges are not set", entity.ErrConfiguration)
	}
	return nil
}

// BuildRow maps an invoice to the fixed column order
func BuildRow(inv entity.ExtractedInvoice, archiveLink, sender string) entity.LedgerRow {
	row := make(entity.LedgerRow, entity.LedgerColumns)
	row[entity.ColumnEntity] = inv.Routing.EntityFolderName
	row[entity.ColumnSupplier] = inv.SupplierName
	row[entity.ColumnInvoiceNumber] = inv.InvoiceNumber
	row[entity.ColumnDate] = FormatDate(inv.IssueDate)
	row[entity.ColumnDescription] = entity.TruncateWords(inv.Description, entity.MaxDescriptionWords)
	row[entity.ColumnAmountExclVAT] = formatAmount(inv.AmountExclVAT)
	row[entity.ColumnVATAmount] = formatAmount(inv.VATAmount)
	row[entity.ColumnAmountInclVAT] = formatAmount(inv.TotalAmount)
	row[entity.ColumnArchiveLink] = archiveLink
	row[entity.ColumnNotes] = inv.Notes
	row[entity.ColumnSender] = sender
	return row
}

// Append writes one row. Failures come back in AppendResult.Error so the
// caller can keep processing other candidates.
func (w *Writer) Append(ctx context.Context, cred *entity.Credential, inv entity.ExtractedInvoice, archiveLink, sender string) entity.AppendResult {
	row := BuildRow(inv, archiveLink, sender)

	res, err := w.ledger.AppendRow(ctx, cred, w.config.SheetID, w.config.AppendRange, row)
	if err != nil {
		w.logger.Error("Ledger append failed",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Error(err))
		return entity.AppendResult{Error: fmt.Sprintf("failed to append ledger row: %v", err)}
	}
	if res == nil {
		return entity.AppendResult{}
	}

	w.logger.Info("Ledger row appended",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("range", res.UpdatedRange))

	return *res
}

// Exists reports whether invoiceNumber is already in the identifier column.
// Any read error fails open and reports false.
func (w *Writer) Exists(ctx context.Context, cred *entity.Credential, invoiceNumber string) bool {
	target := normalizeID(invoiceNumber)
	if target == "" {
		return false
	}

	rows, err := w.ledger.ReadColumn(ctx, cred, w.config.SheetID, w.config.IDColumnRange)
	if err != nil {
		w.logger.Warn("Duplicate check failed; treating invoice as new",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return false
	}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if normalizeID(fmt.Sprint(row[0])) == target {
			return true
		}
	}
	return false
}

// FormatDate renders an issue date as DD-MMM-YYYY, leaving unparseable input as is
func FormatDate(raw string) string {
	t, ok := entity.ParseIssueDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return strings.ToUpper(t.Format(DisplayDateLayout))
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
