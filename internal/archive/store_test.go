package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

type memoryStorage struct {
	mu        sync.Mutex
	folders   map[string]string // parentID/name -> id
	uploads   []string
	creates   int
	finds     int
	nextID    int
	findErr   error
	uploadErr error
	latency   time.Duration
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{folders: make(map[string]string)}
}

func (m *memoryStorage) FindFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	m.mu.Lock()
	m.finds++
	id, err := m.folders[parentID+"/"+name], m.findErr
	latency := m.latency
	m.mu.Unlock()

	// The answer is read before the round trip completes, as with a remote listing
	time.Sleep(latency)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *memoryStorage) CreateFolder(ctx context.Context, cred *entity.Credential, name, parentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.nextID++
	id := fmt.Sprintf("folder-%d", m.nextID)
	m.folders[parentID+"/"+name] = id
	return id, nil
}

func (m *memoryStorage) UploadFile(ctx context.Context, cred *entity.Credential, name, parentID string, content []byte, mimeType string) (*entity.StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.nextID++
	m.uploads = append(m.uploads, parentID+"/"+name)
	id := fmt.Sprintf("file-%d", m.nextID)
	return &entity.StoredFile{ID: id, WebViewLink: "https://drive.example/" + id}, nil
}

type recordingLocker struct {
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released++ }, l.err
}

var amandel = entity.RoutingResult{Category: "SPVs_AgriOps", EntityFolderName: "AMANDEL - Sociedade Agricola"}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPeriodFolderName(t *testing.T) {
	assert.Equal(t, "01 - January", PeriodFolderName(*date(2025, time.January, 10)))
	assert.Equal(t, "12 - December", PeriodFolderName(*date(2024, time.December, 31)))
}

func TestStore_Archive(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop())

	loc, err := store.Archive(context.Background(), nil, []byte("pdf"), "inv1.pdf", amandel, date(2025, time.January, 10))

	require.NoError(t, err)
	assert.Equal(t, "SPVs_AgriOps/AMANDEL - Sociedade Agricola/01 - January", loc.FolderPath)
	assert.Equal(t, "SPVs_AgriOps/AMANDEL - Sociedade Agricola/01 - January/inv1.pdf", loc.FullPath())
	assert.Equal(t, "folder-3", loc.TerminalFolderID)
	assert.NotEmpty(t, loc.FileID)
	assert.NotEmpty(t, loc.WebViewLink)
	assert.Equal(t, []string{"folder-3/inv1.pdf"}, storage.uploads)
}

func TestStore_Archive_IsIdempotentOnFolders(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	first, err := store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, date(2025, time.January, 10))
	require.NoError(t, err)
	second, err := store.Archive(ctx, nil, []byte("b"), "b.pdf", amandel, date(2025, time.January, 22))
	require.NoError(t, err)

	assert.Equal(t, 3, storage.creates)
	assert.Equal(t, first.TerminalFolderID, second.TerminalFolderID)
	assert.Len(t, storage.folders, 3)
}

func TestStore_Archive_NewPeriodCreatesOnlyLeaf(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	_, err := store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, date(2025, time.January, 10))
	require.NoError(t, err)
	loc, err := store.Archive(ctx, nil, []byte("b"), "b.pdf", amandel, date(2025, time.February, 3))
	require.NoError(t, err)

	assert.Equal(t, 4, storage.creates)
	assert.Equal(t, "SPVs_AgriOps/AMANDEL - Sociedade Agricola/02 - February", loc.FolderPath)
}

func TestStore_Archive_MissingIssueDateUsesClock(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop(), WithClock(func() time.Time {
		return time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)
	}))

	loc, err := store.Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, nil)

	require.NoError(t, err)
	assert.Equal(t, "SPVs_AgriOps/AMANDEL - Sociedade Agricola/03 - March", loc.FolderPath)
}

func TestStore_Archive_MissingRootFailsFast(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "  ", zap.NewNop())

	_, err := store.Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
	assert.Zero(t, storage.finds)
	assert.Zero(t, storage.creates)
}

func TestStore_Archive_PropagatesFailures(t *testing.T) {
	t.Run("folder lookup", func(t *testing.T) {
		storage := newMemoryStorage()
		storage.findErr = errors.New("403 rate limited")

		_, err := NewStore(storage, "root", zap.NewNop()).Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "403 rate limited")
	})

	t.Run("upload", func(t *testing.T) {
		storage := newMemoryStorage()
		storage.uploadErr = errors.New("quota exceeded")

		_, err := NewStore(storage, "root", zap.NewNop()).Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		// Folders created before the failure stay; a retry reuses them
		assert.Equal(t, 3, storage.creates)
	})
}

func TestStore_Archive_LocksEachLevel(t *testing.T) {
	storage := newMemoryStorage()
	locker := &recordingLocker{}
	store := NewStore(storage, "root", zap.NewNop(), WithLocker(locker))

	_, err := store.Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, date(2025, time.January, 1))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"root/SPVs_AgriOps",
		"root/SPVs_AgriOps/AMANDEL - Sociedade Agricola",
		"root/SPVs_AgriOps/AMANDEL - Sociedade Agricola/01 - January",
	}, locker.keys)
	assert.Equal(t, 3, locker.released)
}

func TestStore_Archive_LockFailureDegrades(t *testing.T) {
	storage := newMemoryStorage()
	locker := &recordingLocker{err: errors.New("redis down")}
	store := NewStore(storage, "root", zap.NewNop(), WithLocker(locker))

	_, err := store.Archive(context.Background(), nil, []byte("a"), "a.pdf", amandel, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, storage.creates)
}

func TestStore_Archive_CachesResolvedFolders(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	_, err := store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, date(2025, time.January, 10))
	require.NoError(t, err)
	require.Equal(t, 3, storage.finds)

	_, err = store.Archive(ctx, nil, []byte("b"), "b.pdf", amandel, date(2025, time.January, 22))
	require.NoError(t, err)

	assert.Equal(t, 3, storage.finds, "second archive should resolve every level from cache")
	assert.Equal(t, 3, storage.creates)
	assert.Len(t, store.folders, 3)
}

func TestStore_Archive_ConcurrentSameRouteCreatesOnce(t *testing.T) {
	storage := newMemoryStorage()
	storage.latency = 20 * time.Millisecond
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	locations := make([]*entity.ArchivalLocation, 4)
	errs := make([]error, 4)
	for i := range locations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("inv-%d.pdf", i)
			locations[i], errs[i] = store.Archive(ctx, nil, []byte("pdf"), name, amandel, date(2025, time.January, 10+i))
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, 3, storage.creates)
	assert.Len(t, storage.folders, 3)
	assert.Len(t, storage.uploads, 4)
	for _, loc := range locations[1:] {
		assert.Equal(t, locations[0].TerminalFolderID, loc.TerminalFolderID)
	}
}

func TestStore_Archive_UploadFailureDropsCachedChain(t *testing.T) {
	storage := newMemoryStorage()
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	_, err := store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, date(2025, time.January, 10))
	require.NoError(t, err)

	storage.uploadErr = errors.New("404 parent not found")
	_, err = store.Archive(ctx, nil, []byte("b"), "b.pdf", amandel, date(2025, time.January, 11))
	require.Error(t, err)
	assert.Empty(t, store.folders)

	storage.uploadErr = nil
	_, err = store.Archive(ctx, nil, []byte("c"), "c.pdf", amandel, date(2025, time.January, 12))
	require.NoError(t, err)

	assert.Equal(t, 6, storage.finds, "levels are looked up again after the failed upload")
	assert.Equal(t, 3, storage.creates)
}

func TestStore_Archive_FailedLookupIsNotCached(t *testing.T) {
	storage := newMemoryStorage()
	storage.findErr = errors.New("503 backend error")
	store := NewStore(storage, "root", zap.NewNop())
	ctx := context.Background()

	_, err := store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, nil)
	require.Error(t, err)
	assert.Empty(t, store.folders)

	storage.findErr = nil
	_, err = store.Archive(ctx, nil, []byte("a"), "a.pdf", amandel, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, storage.creates)
}
