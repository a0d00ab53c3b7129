package port

import (
	"context"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// RemoteStorage is the folder/file API behind the archival store.
// FindFolder returns "" with a nil error when no folder matches.
type RemoteStorage interface {
	FindFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error)
	UploadFile(ctx context.Context, cred *entity.Credential, name, parentID string, content []byte, mimeType string) (*entity.StoredFile, error)
}

// PathLocker serializes work on a key across processes.
// The returned release func is never nil.
type PathLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}
