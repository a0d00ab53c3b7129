package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

// Store archives invoice files under root/category/entity/period.
// Each level is resolved with get-or-create, so retries reuse existing folders.
// Resolved folder ids are cached for the life of the store and concurrent
// resolutions of the same level share one remote lookup.
type Store struct {
	storage      port.RemoteStorage
	rootFolderID string
	locker       port.PathLocker
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.RWMutex
	folders map[string]string // parentID/name -> folder id
	group   singleflight.Group
}

// Option configures a Store
type Option func(*Store)

// WithLocker serializes get-or-create per folder path.
// Without it two concurrent scans may both create the same folder.
func WithLocker(locker port.PathLocker) Option {
	return func(s *Store) { s.locker = locker }
}

// WithClock overrides the clock used when an invoice has no issue date
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an archival store rooted at rootFolderID
func NewStore(storage port.RemoteStorage, rootFolderID string, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		storage:      storage,
		rootFolderID: rootFolderID,
		logger:       logger,
		now:          time.Now,
		folders:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate reports a missing root folder before any folder is resolved
func (s *Store) Validate() error {
	if strings.TrimSpace(s.rootFolderID) == "" {
		return fmt.Errorf("%w: archive root folder id is not set", entity.ErrConfiguration)
	}
	return nil
}

// PeriodFolderName formats the period folder, e.g. "01 - January"
func PeriodFolderName(t time.Time) string {
	return fmt.Sprintf("%02d - %s", int(t.Month()), t.Month().String())
}

// Archive uploads content under the resolved folder chain
func (s *Store) Archive(ctx context.Context, cred *entity.Credential, content []byte, filename string, routing entity.RoutingResult, issueDate *time.Time) (*entity.ArchivalLocation, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	period := s.now()
	if issueDate != nil && !issueDate.IsZero() {
		period = *issueDate
	}

	chain := []string{string(routing.Category), routing.EntityFolderName, PeriodFolderName(period)}

	parentID := s.rootFolderID
	keys := make([]string, 0, len(chain))
	for i, name := range chain {
		keys = append(keys, parentID+"/"+name)
		id, err := s.EnsureFolder(ctx, cred, name, parentID, strings.Join(chain[:i+1], "/"))
		if err != nil {
			return nil, err
		}
		parentID = id
	}

	file, err := s.storage.UploadFile(ctx, cred, filename, parentID, content, entity.MimeTypePDF)
	if err != nil {
		// A cached folder may have been removed remotely; resolve again next time
		s.forget(keys...)
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	location := &entity.ArchivalLocation{
		FileID:           file.ID,
		FileName:         filename,
		WebViewLink:      file.WebViewLink,
		FolderPath:       strings.Join(chain, "/"),
		TerminalFolderID: parentID,
	}

	s.logger.Info("Invoice archived",
		zap.String("path", location.FullPath()),
		zap.String("file_id", file.ID))

	return location, nil
}

// EnsureFolder returns the id of the folder named name under parentID, creating it when absent
func (s *Store) EnsureFolder(ctx context.Context, cred *entity.Credential, name, parentID, path string) (string, error) {
	key := parentID + "/" + name

	s.mu.RLock()
	id, ok := s.folders[key]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		id, err := s.resolveFolder(ctx, cred, name, parentID, path)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.folders[key] = id
		s.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Store) forget(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.folders, k)
	}
}

func (s *Store) resolveFolder(ctx context.Context, cred *entity.Credential, name, parentID, path string) (string, error) {
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, s.rootFolderID+"/"+path)
		if err != nil {
			s.logger.Warn("Could not lock folder path; proceeding without lock",
				zap.String("path", path),
				zap.Error(err))
		}
		defer release()
	}

	id, err := s.storage.FindFolder(ctx, cred, name, parentID)
	if err != nil {
		return "", fmt.Errorf("failed to find folder %s: %w", path, err)
	}
	if id != "" {
		return id, nil
	}

	id, err = s.storage.CreateFolder(ctx, cred, name, parentID)
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", path, err)
	}

	s.logger.Info("Folder created",
		zap.String("path", path),
		zap.String("folder_id", id))

	return id, nil
}
