package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each component in <dir>/<component>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a store under dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the document path for component.
func (f *FileStore) Path(component string) string {
	return filepath.Join(f.dir, component+".json")
}

// Load reads the component document. A missing file is an empty state.
func (f *FileStore) Load(_ context.Context, component string) (State, error) {
	if err := checkComponent(component); err != nil {
		return State{}, err
	}

	path := f.Path(component)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return st.normalized(), nil
}

// Save writes the document atomically via a temp file and rename.
func (f *FileStore) Save(_ context.Context, component string, st State) error {
	if err := checkComponent(component); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st.normalized(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, component+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.Path(component)); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error {
	return nil
}
