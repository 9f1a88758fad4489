package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpilot/internal/types"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	fs, err := NewFileStore(Config{Path: path, SnapshotsKeep: 5})
	require.NoError(t, err)
	return fs, path
}

func validStore(name string) types.StoreConfig {
	return types.StoreConfig{
		Name:                    name,
		ClientID:                "client-1",
		APIKey:                  types.SecretString("key-1"),
		IsActive:                true,
		UnarchiveEnabled:        true,
		UnarchiveTime:           "03:00",
		PromotionCleanupEnabled: true,
		PromotionCleanupTime:    "04:30",
	}
}

func TestNewFileStore_CreatesMissingFile(t *testing.T) {
	fs, path := newTestStore(t)

	assert.Equal(t, 0, fs.Count())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestAdd_AssignsIdentityAndPersists(t *testing.T) {
	fs, path := newTestStore(t)

	added, err := fs.Add(validStore("shop"))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.NotEmpty(t, added.CreatedAt)
	assert.Equal(t, added.CreatedAt, added.UpdatedAt)

	// A fresh FileStore over the same file must see the record with the
	// api key intact, not the redacted placeholder.
	reopened, err := NewFileStore(Config{Path: path, SnapshotsKeep: 5})
	require.NoError(t, err)
	got, err := reopened.Get("shop")
	require.NoError(t, err)
	assert.Equal(t, "key-1", got.APIKey.Unmask())
	assert.Equal(t, added.ID, got.ID)
}

func TestAdd_DuplicateNameConflicts(t *testing.T) {
	fs, _ := newTestStore(t)

	_, err := fs.Add(validStore("shop"))
	require.NoError(t, err)

	_, err = fs.Add(validStore("shop"))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictStore, appErr.Code)
	assert.Equal(t, 1, fs.Count())
}

func TestAdd_RejectsInvalidConfig(t *testing.T) {
	fs, _ := newTestStore(t)

	missingKey := validStore("shop")
	missingKey.APIKey = ""
	_, err := fs.Add(missingKey)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidStore, appErr.Code)

	badTime := validStore("shop")
	badTime.UnarchiveTime = "25:00"
	_, err = fs.Add(badTime)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidTime, appErr.Code)

	assert.Equal(t, 0, fs.Count())
}

func TestUpdate_PreservesIdentity(t *testing.T) {
	fs, _ := newTestStore(t)

	added, err := fs.Add(validStore("shop"))
	require.NoError(t, err)

	changed := validStore("shop")
	changed.UnarchiveTime = "05:15"
	updated, err := fs.Update("shop", changed)
	require.NoError(t, err)

	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, added.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "05:15", updated.UnarchiveTime)
}

func TestUpdate_RedactedKeyKeepsStoredKey(t *testing.T) {
	fs, _ := newTestStore(t)

	added, err := fs.Add(validStore("shop"))
	require.NoError(t, err)

	// Read-modify-write the way an API client does: marshal the record
	// (which redacts the key) and send the result back as an update.
	data, err := json.Marshal(added)
	require.NoError(t, err)
	var echoed types.StoreConfig
	require.NoError(t, json.Unmarshal(data, &echoed))
	echoed.UnarchiveTime = "06:00"

	updated, err := fs.Update("shop", echoed)
	require.NoError(t, err)
	assert.Equal(t, "key-1", updated.APIKey.Unmask())
	assert.Equal(t, "06:00", updated.UnarchiveTime)

	missingKey := validStore("shop")
	missingKey.APIKey = ""
	updated, err = fs.Update("shop", missingKey)
	require.NoError(t, err)
	assert.Equal(t, "key-1", updated.APIKey.Unmask())

	rotated := validStore("shop")
	rotated.APIKey = types.SecretString("key-2")
	updated, err = fs.Update("shop", rotated)
	require.NoError(t, err)
	assert.Equal(t, "key-2", updated.APIKey.Unmask())
}

func TestUpdate_RenameAndConflicts(t *testing.T) {
	fs, _ := newTestStore(t)

	_, err := fs.Add(validStore("first"))
	require.NoError(t, err)
	_, err = fs.Add(validStore("second"))
	require.NoError(t, err)

	renamed := validStore("third")
	_, err = fs.Update("first", renamed)
	require.NoError(t, err)
	assert.False(t, fs.Has("first"))
	assert.True(t, fs.Has("third"))

	clash := validStore("second")
	_, err = fs.Update("third", clash)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictStore, appErr.Code)
}

func TestUpdate_MissingStore(t *testing.T) {
	fs, _ := newTestStore(t)

	_, err := fs.Update("ghost", validStore("ghost"))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundStore, appErr.Code)
}

func TestDelete(t *testing.T) {
	fs, _ := newTestStore(t)

	_, err := fs.Add(validStore("shop"))
	require.NoError(t, err)
	require.NoError(t, fs.Delete("shop"))
	assert.Equal(t, 0, fs.Count())

	err = fs.Delete("shop")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundStore, appErr.Code)
}

func TestList_SortedByName(t *testing.T) {
	fs, _ := newTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := fs.Add(validStore(name))
		require.NoError(t, err)
	}

	var names []string
	for _, s := range fs.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSnapshots_WrittenAndPruned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	fs, err := NewFileStore(Config{Path: path, SnapshotsKeep: 3})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := fs.Add(validStore(fmt.Sprintf("shop-%d", i)))
		require.NoError(t, err)
	}

	dir := filepath.Join(filepath.Dir(path), snapshotDirName)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// The newest snapshot decompresses back into the current document.
	latest := entries[len(entries)-1].Name()
	data, err := ReadSnapshot(filepath.Join(dir, latest))
	require.NoError(t, err)

	var doc fileSchema
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Stores, 6)
	assert.Equal(t, "key-1", doc.Stores[0].APIKey)
}

func TestSnapshots_DisabledWhenKeepIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	fs, err := NewFileStore(Config{Path: path, SnapshotsKeep: 0})
	require.NoError(t, err)

	_, err = fs.Add(validStore("shop"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(filepath.Dir(path), snapshotDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestTestAllConnections(t *testing.T) {
	fs, _ := newTestStore(t)

	for _, name := range []string{"bad", "good"} {
		_, err := fs.Add(validStore(name))
		require.NoError(t, err)
	}

	results := fs.TestAllConnections(context.Background(), func(_ context.Context, s types.StoreConfig) error {
		if s.Name == "bad" {
			return errors.New("401 unauthorized")
		}
		return nil
	})

	require.Len(t, results, 2)
	assert.Equal(t, "bad", results[0].Store)
	assert.False(t, results[0].OK)
	assert.Equal(t, "401 unauthorized", results[0].Error)
	assert.Equal(t, "good", results[1].Store)
	assert.True(t, results[1].OK)
	assert.Empty(t, results[1].Error)
}

func TestIsValidScheduleTime(t *testing.T) {
	valid := []string{"00:00", "09:30", "23:59"}
	invalid := []string{"", "24:00", "12:60", "9:30", "09:5", "ab:cd", "09-30", "09:30:00"}

	for _, s := range valid {
		assert.True(t, IsValidScheduleTime(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsValidScheduleTime(s), s)
	}
}
