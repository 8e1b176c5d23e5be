package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDirName = ".meta"

// LocalStorage implements Storage using the local filesystem. Files live
// under <base>/<user id>/ with a JSON sidecar in <base>/<user id>/.meta/.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Upload stores a file and returns its metadata
func (s *LocalStorage) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileID := uuid.New()
	userDir := s.userDir(userID)
	if err := os.MkdirAll(filepath.Join(userDir, metaDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filename))
	filePath := filepath.Join(userDir, stored)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		UserID:      userID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   s.now(),
	}
	if err := s.writeMeta(info); err != nil {
		_ = os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns a reader for a stored file
func (s *LocalStorage) Open(_ context.Context, userID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.readMeta(s.metaPath(userID, fileID))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.userDir(userID), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes a file and its metadata
func (s *LocalStorage) Delete(_ context.Context, userID, fileID uuid.UUID) error {
	metaPath := s.metaPath(userID, fileID)
	info, err := s.readMeta(metaPath)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.remove(info, metaPath)
}

// Prune removes files older than cutoff across all users
func (s *LocalStorage) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	metas, err := filepath.Glob(filepath.Join(s.basePath, "*", metaDirName, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list metadata: %w", err)
	}

	removed := 0
	var errs []error
	for _, metaPath := range metas {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := s.readMeta(metaPath)
		if err != nil || !info.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.remove(info, metaPath); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *LocalStorage) remove(info *FileInfo, metaPath string) error {
	filePath := filepath.Join(s.userDir(info.UserID), info.Path)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalStorage) userDir(userID uuid.UUID) string {
	return filepath.Join(s.basePath, userID.String())
}

func (s *LocalStorage) metaPath(userID, fileID uuid.UUID) string {
	return filepath.Join(s.userDir(userID), metaDirName, fileID.String()+".json")
}

func (s *LocalStorage) readMeta(path string) (*FileInfo, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) writeMeta(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.UserID, info.ID), data, 0o640); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"..", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	name = filenameReplacer.Replace(filepath.Base(name))
	if name == "" || name == "." {
		return "upload"
	}
	return name
}
