package port

import (
	"context"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// CredentialRepository persists OAuth credentials
type CredentialRepository interface {
	Get(ctx context.Context, key string) (*entity.Credential, error)
	Save(ctx context.Context, cred *entity.Credential) error
	Delete(ctx context.Context, key string) error
}

// ScanRunRepository persists scan run bookkeeping
type ScanRunRepository interface {
	Create(ctx context.Context, run *entity.ScanRun) error
	Finish(ctx context.Context, run *entity.ScanRun) error
	GetByID(ctx context.Context, id string) (*entity.ScanRun, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ScanRun, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
