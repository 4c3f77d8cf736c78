package posting

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrArtifactMissing indicates the uploaded artifact is gone or unreadable.
var ErrArtifactMissing = errors.New("posting: upload artifact missing")

// Storage resolves transient upload refs during the integrity gate.
type Storage interface {
	// Stat returns the stored size for the artifact, or ErrArtifactMissing.
	Stat(ctx context.Context, ref uuid.UUID) (int64, error)
}

// LocalStorage serves uploads from a flat directory keyed by ref.
type LocalStorage struct {
	dir string
}

// NewLocalStorage constructs a LocalStorage over the upload directory.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

var _ Storage = (*LocalStorage)(nil)

// Stat implements Storage.
func (s *LocalStorage) Stat(_ context.Context, ref uuid.UUID) (int64, error) {
	info, err := os.Stat(filepath.Join(s.dir, ref.String()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrArtifactMissing
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, ErrArtifactMissing
	}
	return info.Size(), nil
}
