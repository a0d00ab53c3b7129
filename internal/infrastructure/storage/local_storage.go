package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// RootFolderID is the folder id of the base directory itself
const RootFolderID = "."

// LocalStorage implements port.RemoteStorage on the local filesystem.
// Folder ids are slash-separated paths relative to baseDir.
type LocalStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStorage creates a new LocalStorage
func NewLocalStorage(baseDir string, logger *zap.Logger) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// FindFolder returns the id of name under parentID, or "" when it does not exist
func (s *LocalStorage) FindFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	id, fullPath, err := s.resolve(name, parentID)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return "", nil
	}
	return id, nil
}

// CreateFolder creates name under parentID
func (s *LocalStorage) CreateFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	id, fullPath, err := s.resolve(name, parentID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		s.logger.Error("Failed to create folder",
			zap.String("folder_path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	s.logger.Debug("Created folder", zap.String("folder_path", fullPath))
	return id, nil
}

// UploadFile writes content under parentID. An existing file is never
// overwritten; the new copy gets a numbered suffix instead.
func (s *LocalStorage) UploadFile(ctx context.Context, cred *entity.Credential, name, parentID string, content []byte, mimeType string) (*entity.StoredFile, error) {
	id, fullPath, err := s.resolve(name, parentID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	ext := filepath.Ext(fullPath)
	stem := strings.TrimSuffix(fullPath, ext)
	for n := 1; ; n++ {
		f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			fullPath = fmt.Sprintf("%s (%d)%s", stem, n, ext)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}

		_, writeErr := f.Write(content)
		closeErr := f.Close()
		if writeErr != nil || closeErr != nil {
			_ = os.Remove(fullPath)
			return nil, fmt.Errorf("failed to write file: %w", errors.Join(writeErr, closeErr))
		}
		break
	}

	rel, err := filepath.Rel(s.baseDir, fullPath)
	if err == nil {
		id = filepath.ToSlash(rel)
	}

	abs, err := filepath.Abs(fullPath)
	if err != nil {
		abs = fullPath
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return &entity.StoredFile{
		ID:          id,
		WebViewLink: (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
	}, nil
}

// resolve maps (name, parentID) to a child id and its path on disk
func (s *LocalStorage) resolve(name, parentID string) (string, string, error) {
	if strings.TrimSpace(name) == "" {
		return "", "", errors.New("empty name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", fmt.Errorf("invalid name: %q", name)
	}

	parent := filepath.FromSlash(parentID)
	if parentID == "" {
		parent = RootFolderID
	}

	fullPath := filepath.Join(s.baseDir, parent, name)
	if err := s.validatePath(fullPath); err != nil {
		return "", "", err
	}

	rel, err := filepath.Rel(s.baseDir, fullPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return filepath.ToSlash(rel), fullPath, nil
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalStorage) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
