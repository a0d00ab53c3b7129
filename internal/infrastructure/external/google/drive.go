package google

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// DriveStorage implements port.RemoteStorage over the Drive API.
// Every call supports shared drives.
type DriveStorage struct {
	sharedDriveID string
	endpoint      string
	logger        *zap.Logger
}

// NewDriveStorage creates a new Drive storage. sharedDriveID scopes folder
// lookups to one shared drive when set.
func NewDriveStorage(sharedDriveID, endpoint string, logger *zap.Logger) *DriveStorage {
	return &DriveStorage{
		sharedDriveID: sharedDriveID,
		endpoint:      endpoint,
		logger:        logger,
	}
}

func (d *DriveStorage) service(ctx context.Context, cred *entity.Credential) (*drive.Service, error) {
	opts, err := clientOptions(cred, d.endpoint)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return svc, nil
}

// FolderQuery builds the lookup query for a non-trashed folder named name under parentID
func FolderQuery(name, parentID string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), entity.FolderMimeType, escapeQuery(parentID))
}

// FindFolder returns the id of the first matching folder, or "" when none exists
func (d *DriveStorage) FindFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	svc, err := d.service(ctx, cred)
	if err != nil {
		return "", err
	}

	call := svc.Files.List().
		Q(FolderQuery(name, parentID)).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if d.sharedDriveID != "" {
		call = call.Corpora("drive").DriveId(d.sharedDriveID)
	}

	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("failed to search folder %s: %w", name, err)
	}
	if len(resp.Files) == 0 {
		return "", nil
	}
	return resp.Files[0].Id, nil
}

// CreateFolder creates a folder named name under parentID
func (d *DriveStorage) CreateFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	svc, err := d.service(ctx, cred)
	if err != nil {
		return "", err
	}

	folder, err := svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: entity.FolderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	d.logger.Info("Folder created",
		zap.String("name", name),
		zap.String("parent_id", parentID),
		zap.String("folder_id", folder.Id))

	return folder.Id, nil
}

// UploadFile uploads content as a new file under parentID
func (d *DriveStorage) UploadFile(ctx context.Context, cred *entity.Credential, name, parentID string, content []byte, mimeType string) (*entity.StoredFile, error) {
	svc, err := d.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	file, err := svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload file %s: %w", name, err)
	}

	d.logger.Info("File uploaded",
		zap.String("name", name),
		zap.String("file_id", file.Id),
		zap.Int("size", len(content)))

	return &entity.StoredFile{ID: file.Id, WebViewLink: file.WebViewLink}, nil
}
