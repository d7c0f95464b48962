package storage

import (
	"context"

	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// RecordStore хранилище метаданных файлов.
// Уникальность записей не обеспечивается: повторная загрузка файла
// с тем же именем добавляет еще одну запись.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec models.FileRecord) error
	// FolderHasRecords сообщает, есть ли хотя бы одна запись с этой папкой
	FolderHasRecords(ctx context.Context, folder string) (bool, error)
	// DeleteRecord удаляет ровно одну запись folder+filename
	DeleteRecord(ctx context.Context, folder, filename string) (bool, error)
	// DeleteFolderRecords удаляет все записи папки, включая маркер
	DeleteFolderRecords(ctx context.Context, folder string) (int64, error)
	// ListFolders возвращает различные имена папок по алфавиту
	ListFolders(ctx context.Context) ([]string, error)
	// ListRecords возвращает записи папки в порядке загрузки
	ListRecords(ctx context.Context, folder string) ([]models.FileRecord, error)
}

// UserStore хранилище учетных записей
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, username string) (models.User, error)
}

// SessionStore хранилище сессий входа
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}
