package port

import (
	"context"
	"encoding/json"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// AuthProvider hands out a valid credential, refreshing and persisting it when expired
type AuthProvider interface {
	GetValidCredential(ctx context.Context) (*entity.Credential, error)
}

// MessageSource searches and fetches messages from the mail provider
type MessageSource interface {
	Search(ctx context.Context, cred *entity.Credential, query string, maxResults int64) ([]entity.MessageRef, error)
	FetchFull(ctx context.Context, cred *entity.Credential, messageID string) (*entity.MessagePayload, error)
	FetchAttachment(ctx context.Context, cred *entity.Credential, messageID, attachmentID string) ([]byte, error)
	FetchSummary(ctx context.Context, cred *entity.Credential, messageID string) (*entity.MessageSummary, error)
}

// InferenceRequest is one document submitted to the understanding model
type InferenceRequest struct {
	Filename   string
	System     string
	Prompt     string
	Pages      [][]byte
	PageMime   string
	SchemaName string
	Schema     json.RawMessage
}

// DocumentModel runs one blocking inference and returns the raw JSON answer
type DocumentModel interface {
	Infer(ctx context.Context, req InferenceRequest) (json.RawMessage, error)
}

// RemoteLedger appends rows to and reads columns from a spreadsheet
type RemoteLedger interface {
	AppendRow(ctx context.Context, cred *entity.Credential, sheetID, writeRange string, values entity.LedgerRow) (*entity.AppendResult, error)
	ReadColumn(ctx context.Context, cred *entity.Credential, sheetID, columnRange string) ([][]interface{}, error)
}

// Notifier delivers a short human-readable run summary
type Notifier interface {
	NotifyRun(ctx context.Context, run *entity.ScanRun, summary *entity.ProcessingSummary) error
}
