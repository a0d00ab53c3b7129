package google

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// SheetsLedger implements port.RemoteLedger over the Sheets API
type SheetsLedger struct {
	endpoint string
	logger   *zap.Logger
}

// NewSheetsLedger creates a new Sheets ledger
func NewSheetsLedger(endpoint string, logger *zap.Logger) *SheetsLedger {
	return &SheetsLedger{
		endpoint: endpoint,
		logger:   logger,
	}
}

func (s *SheetsLedger) service(ctx context.Context, cred *entity.Credential) (*sheets.Service, error) {
	opts, err := clientOptions(cred, s.endpoint)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// AppendRow inserts values as a new row after the last row of writeRange
func (s *SheetsLedger) AppendRow(ctx context.Context, cred *entity.Credential, sheetID, writeRange string, values entity.LedgerRow) (*entity.AppendResult, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Append(sheetID, writeRange, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to append row: %w", err)
	}

	result := &entity.AppendResult{}
	if resp.Updates != nil {
		result.UpdatedRange = resp.Updates.UpdatedRange
		result.UpdatedRows = resp.Updates.UpdatedRows
	}
	return result, nil
}

// ReadColumn returns the values of columnRange, one slice per row
func (s *SheetsLedger) ReadColumn(ctx context.Context, cred *entity.Credential, sheetID, columnRange string) ([][]interface{}, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(sheetID, columnRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", columnRange, err)
	}

	s.logger.Debug("Ledger column read",
		zap.String("range", columnRange),
		zap.Int("rows", len(resp.Values)))

	return resp.Values, nil
}
