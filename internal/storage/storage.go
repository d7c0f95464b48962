package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// FileStore хранит содержимое файлов на локальном диске, по одной директории на папку
type FileStore struct {
	root string
}

// NewFileStore создает хранилище и корневую директорию
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root возвращает корневую директорию
func (s *FileStore) Root() string {
	return s.root
}

// FolderPath путь к директории папки
func (s *FileStore) FolderPath(folder string) string {
	return filepath.Join(s.root, folder)
}

// FilePath путь к файлу внутри папки
func (s *FileStore) FilePath(folder, filename string) string {
	return filepath.Join(s.root, folder, filename)
}

// MakeFolder создает директорию папки, если ее еще нет
func (s *FileStore) MakeFolder(folder string) (string, error) {
	dir := s.FolderPath(folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	return dir, nil
}

// SaveFile сохраняет файл на диск, перезаписывая существующий.
// Возвращает путь и число записанных байт.
func (s *FileStore) SaveFile(folder, filename string, file io.Reader) (string, int64, error) {
	filePath := s.FilePath(folder, filename)
	newFile, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer newFile.Close()

	n, err := io.Copy(newFile, file)
	if err != nil {
		return "", n, fmt.Errorf("failed to write file: %w", err)
	}

	logging.Debug("file saved", zap.String("path", filePath), zap.Int64("bytes", n))
	return filePath, n, nil
}

// FileExists сообщает, существует ли обычный файл
func (s *FileStore) FileExists(folder, filename string) (bool, error) {
	info, err := os.Stat(s.FilePath(folder, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// FolderExists сообщает, существует ли директория папки
func (s *FileStore) FolderExists(folder string) (bool, error) {
	info, err := os.Stat(s.FolderPath(folder))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// RemoveFile удаляет один файл
func (s *FileStore) RemoveFile(folder, filename string) error {
	if err := os.Remove(s.FilePath(folder, filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.ErrFileNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// RemoveFolder рекурсивно удаляет директорию папки
func (s *FileStore) RemoveFolder(folder string) error {
	if err := os.RemoveAll(s.FolderPath(folder)); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// ReadFile читает содержимое файла целиком
func (s *FileStore) ReadFile(folder, filename string) ([]byte, error) {
	data, err := os.ReadFile(s.FilePath(folder, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
