package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

func TestLocalStorage_FindCreateFolder(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base, zap.NewNop())
	ctx := context.Background()

	id, err := s.FindFolder(ctx, nil, "SPVs_AgriOps", RootFolderID)
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = s.CreateFolder(ctx, nil, "SPVs_AgriOps", RootFolderID)
	require.NoError(t, err)
	assert.Equal(t, "SPVs_AgriOps", id)

	child, err := s.CreateFolder(ctx, nil, "AMANDEL - Sociedade Agricola", id)
	require.NoError(t, err)
	assert.Equal(t, "SPVs_AgriOps/AMANDEL - Sociedade Agricola", child)

	found, err := s.FindFolder(ctx, nil, "AMANDEL - Sociedade Agricola", id)
	require.NoError(t, err)
	assert.Equal(t, child, found)

	info, err := os.Stat(filepath.Join(base, "SPVs_AgriOps", "AMANDEL - Sociedade Agricola"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_UploadNeverOverwrites(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base, zap.NewNop())
	ctx := context.Background()

	first, err := s.UploadFile(ctx, nil, "inv.pdf", "2025", []byte("one"), entity.MimeTypePDF)
	require.NoError(t, err)
	second, err := s.UploadFile(ctx, nil, "inv.pdf", "2025", []byte("two"), entity.MimeTypePDF)
	require.NoError(t, err)

	assert.Equal(t, "2025/inv.pdf", first.ID)
	assert.Equal(t, "2025/inv (1).pdf", second.ID)
	assert.True(t, strings.HasPrefix(first.WebViewLink, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "2025", "inv.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	_, err := s.CreateFolder(ctx, nil, "..", RootFolderID)
	assert.Error(t, err)

	_, err = s.CreateFolder(ctx, nil, "a/b", RootFolderID)
	assert.Error(t, err)

	_, err = s.CreateFolder(ctx, nil, "x", "../outside")
	assert.Error(t, err)

	_, err = s.UploadFile(ctx, nil, " ", RootFolderID, nil, entity.MimeTypePDF)
	assert.Error(t, err)
}
