// Package store persists seller account configurations in a JSON file. The
// file is the source of truth; an in-memory index keyed by store name serves
// reads, and every mutation rewrites the file atomically and leaves a
// compressed snapshot behind.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sellerpilot/internal/types"
)

const defaultSnapshotsKeep = 5

// Config carries the FileStore dependencies.
type Config struct {
	// Path is the JSON config file location. Parent directories are
	// created on first save.
	Path string
	// SnapshotsKeep caps how many compressed snapshots survive pruning.
	// Zero disables snapshots entirely; negative falls back to the default.
	SnapshotsKeep int
	Logger        *slog.Logger
}

// FileStore is a JSON-file repository of store configurations. All methods
// are safe for concurrent use.
type FileStore struct {
	path          string
	snapshotsKeep int
	logger        *slog.Logger
	validate      *storeValidator

	mu     sync.RWMutex
	stores map[string]types.StoreConfig
}

// fileSchema is the on-disk document shape.
type fileSchema struct {
	Stores         []storeRecord  `json:"stores"`
	GlobalSettings globalSettings `json:"global_settings"`
}

type globalSettings struct {
	AutostartEnabled bool `json:"autostart_enabled"`
}

// storeRecord mirrors types.StoreConfig with the api key in plaintext.
// SecretString redacts itself on marshal, which is right everywhere except
// the config file itself, so persistence goes through this shape.
type storeRecord struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	ClientID  string `json:"client_id"`
	APIKey    string `json:"api_key"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`

	PromotionCleanupEnabled bool   `json:"remove_from_promotions"`
	UnarchiveEnabled        bool   `json:"unarchive_enabled"`
	PromotionCleanupTime    string `json:"promotion_cleanup_time,omitempty"`
	UnarchiveTime           string `json:"unarchive_time,omitempty"`
}

func toRecord(s types.StoreConfig) storeRecord {
	return storeRecord{
		ID:                      s.ID,
		Name:                    s.Name,
		ClientID:                s.ClientID,
		APIKey:                  s.APIKey.Unmask(),
		IsActive:                s.IsActive,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
		PromotionCleanupEnabled: s.PromotionCleanupEnabled,
		UnarchiveEnabled:        s.UnarchiveEnabled,
		PromotionCleanupTime:    s.PromotionCleanupTime,
		UnarchiveTime:           s.UnarchiveTime,
	}
}

func fromRecord(r storeRecord) types.StoreConfig {
	return types.StoreConfig{
		ID:                      r.ID,
		Name:                    r.Name,
		ClientID:                r.ClientID,
		APIKey:                  types.SecretString(r.APIKey),
		IsActive:                r.IsActive,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		PromotionCleanupEnabled: r.PromotionCleanupEnabled,
		UnarchiveEnabled:        r.UnarchiveEnabled,
		PromotionCleanupTime:    r.PromotionCleanupTime,
		UnarchiveTime:           r.UnarchiveTime,
	}
}

// NewFileStore opens (or initializes) the config file at cfg.Path and loads
// all persisted stores into memory.
func NewFileStore(cfg Config) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, types.NewAppError(types.ErrCodeValidationConfig, "store config path is required", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keep := cfg.SnapshotsKeep
	if keep < 0 {
		keep = defaultSnapshotsKeep
	}

	fs := &FileStore{
		path:          cfg.Path,
		snapshotsKeep: keep,
		logger:        logger.With(slog.String("component", "store")),
		validate:      newStoreValidator(),
		stores:        make(map[string]types.StoreConfig),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.logger.Info("config file not found, creating a new one", slog.String("path", f.path))
		return f.save()
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to read store config file", err)
	}

	var doc fileSchema
	if err := json.Unmarshal(data, &doc); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "store config file is not valid JSON", err)
	}
	for _, rec := range doc.Stores {
		f.stores[rec.Name] = fromRecord(rec)
	}
	f.logger.Info("loaded store configurations", slog.Int("count", len(f.stores)))
	return nil
}

// save rewrites the config file atomically and drops a compressed snapshot of
// the new contents. Callers must hold f.mu.
func (f *FileStore) save() error {
	doc := fileSchema{Stores: make([]storeRecord, 0, len(f.stores))}
	for _, name := range f.sortedNames() {
		doc.Stores = append(doc.Stores, toRecord(f.stores[name]))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to encode store config", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to create config directory", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to write store config", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to replace store config", err)
	}

	if err := f.writeSnapshot(data); err != nil {
		// The primary file is already durable; a failed snapshot is not
		// worth failing the mutation over.
		f.logger.Warn("failed to write config snapshot", slog.String("error", err.Error()))
	}
	return nil
}

func (f *FileStore) sortedNames() []string {
	names := make([]string, 0, len(f.stores))
	for name := range f.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all stores sorted by name.
func (f *FileStore) List() []types.StoreConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]types.StoreConfig, 0, len(f.stores))
	for _, name := range f.sortedNames() {
		out = append(out, f.stores[name])
	}
	return out
}

// Get returns the store with the given name.
func (f *FileStore) Get(name string) (types.StoreConfig, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s, ok := f.stores[name]
	if !ok {
		return types.StoreConfig{}, types.NewAppError(types.ErrCodeNotFoundStore, fmt.Sprintf("store %q not found", name), nil)
	}
	return s, nil
}

// Has reports whether a store with the given name exists.
func (f *FileStore) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.stores[name]
	return ok
}

// Count returns the number of configured stores.
func (f *FileStore) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.stores)
}

// Add validates and persists a new store. The name must be unique; ID and
// timestamps are assigned here.
func (f *FileStore) Add(s types.StoreConfig) (types.StoreConfig, error) {
	if err := f.validate.check(s); err != nil {
		return types.StoreConfig{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.stores[s.Name]; exists {
		return types.StoreConfig{}, types.NewAppError(types.ErrCodeConflictStore, fmt.Sprintf("store %q already exists", s.Name), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	f.stores[s.Name] = s
	if err := f.save(); err != nil {
		delete(f.stores, s.Name)
		return types.StoreConfig{}, err
	}
	f.logger.Info("store added", slog.String("store", s.Name))
	return s, nil
}

// Update replaces the store currently known by name. The identity (ID,
// created_at) is carried over; renames are allowed as long as the new name is
// free.
func (f *FileStore) Update(name string, s types.StoreConfig) (types.StoreConfig, error) {
	if s.Name == "" {
		s.Name = name
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.stores[name]
	if !ok {
		return types.StoreConfig{}, types.NewAppError(types.ErrCodeNotFoundStore, fmt.Sprintf("store %q not found", name), nil)
	}
	// Clients read stores with the api key redacted and write the same shape
	// back. An absent or still-redacted key means "keep the stored one".
	if s.APIKey.IsZero() || s.APIKey.IsRedacted() {
		s.APIKey = existing.APIKey
	}
	if err := f.validate.check(s); err != nil {
		return types.StoreConfig{}, err
	}
	if s.Name != name {
		if _, taken := f.stores[s.Name]; taken {
			return types.StoreConfig{}, types.NewAppError(types.ErrCodeConflictStore, fmt.Sprintf("store %q already exists", s.Name), nil)
		}
	}

	s.ID = existing.ID
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	delete(f.stores, name)
	f.stores[s.Name] = s
	if err := f.save(); err != nil {
		delete(f.stores, s.Name)
		f.stores[name] = existing
		return types.StoreConfig{}, err
	}
	f.logger.Info("store updated", slog.String("store", s.Name))
	return s, nil
}

// Delete removes the named store.
func (f *FileStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.stores[name]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundStore, fmt.Sprintf("store %q not found", name), nil)
	}

	delete(f.stores, name)
	if err := f.save(); err != nil {
		f.stores[name] = existing
		return err
	}
	f.logger.Info("store deleted", slog.String("store", name))
	return nil
}
