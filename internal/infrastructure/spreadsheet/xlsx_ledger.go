package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// XLSXLedger implements port.RemoteLedger on a local workbook. The sheet id
// argument is ignored; ranges select the worksheet and columns.
type XLSXLedger struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewXLSXLedger creates a ledger backed by the workbook at path
func NewXLSXLedger(path string, logger *zap.Logger) *XLSXLedger {
	return &XLSXLedger{
		path:   path,
		logger: logger,
	}
}

// AppendRow writes values to the first empty row of the range's worksheet
func (l *XLSXLedger) AppendRow(ctx context.Context, cred *entity.Credential, sheetID, writeRange string, values entity.LedgerRow) (*entity.AppendResult, error) {
	sheet, _, err := parseRange(writeRange)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	rowNum := len(rows) + 1

	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return nil, err
	}
	row := []interface{}(values)
	if err := f.SetSheetRow(sheet, start, &row); err != nil {
		return nil, fmt.Errorf("failed to write row: %w", err)
	}

	if err := f.SaveAs(l.path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	end, err := excelize.CoordinatesToCellName(len(values), rowNum)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Ledger row written",
		zap.String("path", l.path),
		zap.Int("row", rowNum))

	return &entity.AppendResult{UpdatedRange: fmt.Sprintf("%s!%s:%s", sheet, start, end), UpdatedRows: 1}, nil
}

// ReadColumn returns the first column of columnRange, one single-cell slice per row.
// A missing workbook reads as empty.
func (l *XLSXLedger) ReadColumn(ctx context.Context, cred *entity.Credential, sheetID, columnRange string) ([][]interface{}, error) {
	sheet, col, err := parseRange(columnRange)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		if col-1 < len(r) {
			out = append(out, []interface{}{r[col-1]})
		} else {
			out = append(out, []interface{}{})
		}
	}
	return out, nil
}

// open returns the workbook, creating it with a header row when absent
func (l *XLSXLedger) open(sheet string) (*excelize.File, error) {
	f, err := excelize.OpenFile(l.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to add sheet %s: %w", sheet, err)
			}
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := make([]interface{}, len(entity.LedgerHeaders))
	for i, h := range entity.LedgerHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	l.logger.Info("Created ledger workbook", zap.String("path", l.path))
	return f, nil
}

// parseRange splits "Sheet1!C:C" into the sheet name and the 1-based first column
func parseRange(r string) (string, int, error) {
	sheet, cols, ok := strings.Cut(r, "!")
	if !ok || sheet == "" || cols == "" {
		return "", 0, fmt.Errorf("invalid range %q", r)
	}
	sheet = strings.Trim(sheet, "'")

	first, _, _ := strings.Cut(cols, ":")
	first = strings.TrimRight(first, "0123456789")
	col, err := excelize.ColumnNameToNumber(first)
	if err != nil {
		return "", 0, fmt.Errorf("invalid range %q: %w", r, err)
	}
	return sheet, col, nil
}
