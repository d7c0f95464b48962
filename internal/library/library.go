// Package library связывает файловое хранилище с хранилищем метаданных:
// загрузка файлов, создание и удаление папок, удаление файлов.
//
// Запись на диск и запись метаданных выполняются независимо, без общей
// транзакции и без блокировок между запросами.
package library

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
	"github.com/ivanov-nikolay/notes_storage/internal/storage"
	"github.com/ivanov-nikolay/notes_storage/internal/utils"
)

// Payload один загружаемый файл
type Payload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// UploadResult имена сохраненных и пропущенных файлов
type UploadResult struct {
	Saved   []string
	Skipped []string
	Bytes   int64
}

// Library операции над папками и файлами
type Library struct {
	files   *storage.FileStore
	records storage.RecordStore
	allowed map[string]struct{}
	now     func() time.Time
}

// New создает Library; allowed - расширения в нижнем регистре без точки
func New(files *storage.FileStore, records storage.RecordStore, allowed map[string]struct{}) *Library {
	return &Library{
		files:   files,
		records: records,
		allowed: allowed,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func checkName(name string) error {
	if !utils.ValidName(name) {
		return fmt.Errorf("%w: %q", models.ErrInvalidName, name)
	}
	return nil
}

// Upload сохраняет файлы с разрешенными расширениями в папку и добавляет
// запись метаданных на каждый сохраненный файл. Остальные файлы молча
// пропускаются. Ошибка посреди загрузки не откатывает уже сохраненные файлы.
func (l *Library) Upload(ctx context.Context, folder string, payloads []Payload) (UploadResult, error) {
	var result UploadResult

	if err := checkName(folder); err != nil {
		return result, err
	}
	if _, err := l.files.MakeFolder(folder); err != nil {
		return result, err
	}

	for _, p := range payloads {
		filename := utils.SecureFilename(p.Name)
		if filename == "" || !utils.AllowedFile(filename, l.allowed) {
			result.Skipped = append(result.Skipped, p.Name)
			continue
		}

		path, size, checksum, err := l.save(folder, filename, p)
		if err != nil {
			return result, err
		}

		name := filename
		rec := models.FileRecord{
			Folder:     folder,
			Filename:   &name,
			UploadTime: l.now(),
			FileType:   utils.Extension(filename),
			Path:       path,
			Size:       size,
			Checksum:   checksum,
		}
		if err := l.records.InsertRecord(ctx, rec); err != nil {
			return result, err
		}

		result.Saved = append(result.Saved, filename)
		result.Bytes += size
	}

	logging.Info("upload finished",
		zap.String("folder", folder),
		zap.Strings("saved", result.Saved),
		zap.Strings("skipped", result.Skipped))
	return result, nil
}

func (l *Library) save(folder, filename string, p Payload) (string, int64, string, error) {
	src, err := p.Open()
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to open upload %q: %w", p.Name, err)
	}
	defer src.Close()

	// хэш считается по ходу записи на диск
	hr := utils.NewHashingReader(src)
	path, size, err := l.files.SaveFile(folder, filename, hr)
	if err != nil {
		return "", 0, "", err
	}
	checksum := hr.Sum()
	return path, size, checksum, nil
}

// CreateFolder создает директорию папки и добавляет запись-маркер,
// только если для этой папки еще нет ни одной записи
func (l *Library) CreateFolder(ctx context.Context, folder string) error {
	if err := checkName(folder); err != nil {
		return err
	}

	path, err := l.files.MakeFolder(folder)
	if err != nil {
		return err
	}

	exists, err := l.records.FolderHasRecords(ctx, folder)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := l.records.InsertRecord(ctx, models.NewFolderRecord(folder, path, l.now())); err != nil {
		return err
	}
	logging.Info("folder created", zap.String("folder", folder))
	return nil
}

// DeleteFolder рекурсивно удаляет директорию и все записи папки.
// Если директории нет, возвращает models.ErrFolderNotFound и не трогает метаданные.
func (l *Library) DeleteFolder(ctx context.Context, folder string) error {
	if err := checkName(folder); err != nil {
		return err
	}

	exists, err := l.files.FolderExists(folder)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrFolderNotFound
	}

	if err := l.files.RemoveFolder(folder); err != nil {
		return err
	}

	n, err := l.records.DeleteFolderRecords(ctx, folder)
	if err != nil {
		return err
	}
	logging.Info("folder deleted", zap.String("folder", folder), zap.Int64("records", n))
	return nil
}

// DeleteFile удаляет файл и ровно одну запись folder+filename.
// Если файла нет, возвращает models.ErrFileNotFound и не трогает метаданные.
func (l *Library) DeleteFile(ctx context.Context, folder, filename string) error {
	if err := checkName(folder); err != nil {
		return err
	}
	if err := checkName(filename); err != nil {
		return err
	}

	exists, err := l.files.FileExists(folder, filename)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrFileNotFound
	}

	if err := l.files.RemoveFile(folder, filename); err != nil {
		return err
	}

	deleted, err := l.records.DeleteRecord(ctx, folder, filename)
	if err != nil {
		return err
	}
	if !deleted {
		logging.Warn("file removed without metadata record",
			zap.String("folder", folder), zap.String("filename", filename))
	}
	return nil
}

// ListFolders возвращает различные имена папок
func (l *Library) ListFolders(ctx context.Context) ([]string, error) {
	return l.records.ListFolders(ctx)
}

// ListFiles возвращает записи папки, включая маркер
func (l *Library) ListFiles(ctx context.Context, folder string) ([]models.FileRecord, error) {
	if err := checkName(folder); err != nil {
		return nil, err
	}
	return l.records.ListRecords(ctx, folder)
}

// FilePath возвращает путь к существующему файлу для отдачи содержимого
func (l *Library) FilePath(folder, filename string) (string, error) {
	if err := checkName(folder); err != nil {
		return "", err
	}
	if err := checkName(filename); err != nil {
		return "", err
	}

	exists, err := l.files.FileExists(folder, filename)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", models.ErrFileNotFound
	}
	return l.files.FilePath(folder, filename), nil
}
