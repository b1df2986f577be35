package schemas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmrzaf/mockstream/internal/domain"
)

var ErrNotFound = errors.New("schema not found")

type Repository interface {
	List() ([]*domain.SchemaSource, error)
	Get(id string) (*domain.SchemaSource, error)
	GetByPath(path string) (*domain.SchemaSource, error)
}

// FileRepository serves schema documents from one directory. The ID of a
// schema is its file name without extension.
type FileRepository struct {
	baseDir string
}

func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{baseDir: baseDir}
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

func (r *FileRepository) List() ([]*domain.SchemaSource, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*domain.SchemaSource{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.SchemaSource, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isSchemaFile(entry.Name()) {
			continue
		}
		src, err := ReadFile(filepath.Join(r.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, src)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *FileRepository) Get(id string) (*domain.SchemaSource, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}

	for _, s := range list {
		if s.ID == id || s.Name == id {
			return s, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetByPath loads a schema file that must live inside the base directory.
func (r *FileRepository) GetByPath(path string) (*domain.SchemaSource, error) {
	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return nil, err
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("schema path escapes %s: %s", r.baseDir, path)
	}
	return ReadFile(target)
}

// ReadFile loads any schema file from disk.
func ReadFile(path string) (*domain.SchemaSource, error) {
	if !isSchemaFile(path) {
		return nil, fmt.Errorf("unsupported schema file extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return &domain.SchemaSource{
		ID:      id,
		Name:    base,
		Path:    path,
		Content: data,
	}, nil
}
