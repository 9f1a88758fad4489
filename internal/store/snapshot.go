package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	snapshotDirName = "snapshots"
	snapshotExt     = ".json.zst"
)

// writeSnapshot stores a zstd-compressed copy of the config document under
// <dir>/snapshots/ and prunes older copies beyond the retention limit.
func (f *FileStore) writeSnapshot(data []byte) error {
	if f.snapshotsKeep == 0 {
		return nil
	}

	dir := filepath.Join(filepath.Dir(f.path), snapshotDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := fmt.Sprintf("config-%s%s", time.Now().UTC().Format("20060102T150405.000000000"), snapshotExt)
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return f.pruneSnapshots(dir)
}

// pruneSnapshots removes the oldest snapshots until at most snapshotsKeep
// remain. Snapshot names embed a UTC timestamp so lexical order is age order.
func (f *FileStore) pruneSnapshots(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".zst" {
			names = append(names, e.Name())
		}
	}
	if len(names) <= f.snapshotsKeep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-f.snapshotsKeep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// ReadSnapshot decompresses a snapshot file and returns the config document
// it holds. Used by the ops tooling to inspect or restore past states.
func ReadSnapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
