package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend is the reference backend. Objects live as JSON files under
//
//	<dir>/singular/<key>.json
//	<dir>/relational/<table>/<entityId>/<key>.json
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Join(dir, "singular"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "relational"), 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(id ObjectID) string {
	if id.Relational != nil {
		return filepath.Join(f.dir, "relational", id.Relational.Table, id.Relational.EntityID, id.Key+".json")
	}
	return filepath.Join(f.dir, "singular", id.Key+".json")
}

func (f *FileBackend) Load(_ context.Context, id ObjectID) (*DataObject, bool, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var obj DataObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false, fmt.Errorf("corrupt data object %s: %w", id, err)
	}
	return &obj, true, nil
}

func (f *FileBackend) Save(_ context.Context, obj *DataObject) error {
	path := f.path(obj.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	// Write-then-rename keeps a crashed write from leaving a half object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *FileBackend) Delete(_ context.Context, id ObjectID) error {
	err := os.Remove(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileBackend) ListIDs(_ context.Context, relational *RelationalID, prefix string) ([]ObjectID, error) {
	var root string
	if relational != nil {
		root = filepath.Join(f.dir, "relational", relational.Table, relational.EntityID)
	} else {
		root = filepath.Join(f.dir, "singular")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []ObjectID
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		ids = append(ids, ObjectID{Relational: relational, Key: key})
	}
	return ids, nil
}

func (f *FileBackend) Close() error {
	return nil
}
