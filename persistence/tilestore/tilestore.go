// Package tilestore persists tile blobs as one text file per tile id. The
// file body is the tile wire format exactly as written by DenseTile.String,
// so saved maps stay readable by any consumer of that format.
package tilestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Dir is a directory-backed tile store. Writes are atomic (tmp + rename) so a
// crashed save never leaves a torn tile visible.
type Dir struct {
	dir string
}

// Open creates the directory if needed.
func Open(dir string) (*Dir, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty tile store path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Dir{dir: dir}, nil
}

func (d *Dir) path(id uint64) string {
	return filepath.Join(d.dir, strconv.FormatUint(id, 10)+".tile")
}

// Put overwrites the blob for a tile id.
func (d *Dir) Put(id uint64, data string) error {
	dst := d.path(id)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads a tile blob back. ok is false for ids never written.
func (d *Dir) Get(id uint64) (string, bool, error) {
	raw, err := os.ReadFile(d.path(id))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// IDs lists every stored tile id in ascending order.
func (d *Dir) IDs() ([]uint64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".tile") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".tile"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
