package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists checkpoints under a name.
type Store interface {
	Save(name string, ckpt *Checkpoint) error
	Load(name string) (*Checkpoint, error)
}

// FileStore keeps checkpoints as <Dir>/<name>.ckpt files.
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the file path used for name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.Dir, name+FileExt)
}

// Save writes ckpt atomically: a temp file in the same directory is
// synced and renamed over the previous artifact.
func (s *FileStore) Save(name string, ckpt *Checkpoint) (err error) {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriterSize(tmp, 1<<20)
	if err = Encode(w, ckpt); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err = os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Load reads the named checkpoint. A missing file yields an error
// matching ErrNotFound.
func (s *FileStore) Load(name string) (*Checkpoint, error) {
	path := s.Path(name)
	//nolint:gosec // G304: the path is built from the configured checkpoint directory.
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	ckpt, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ckpt, nil
}
