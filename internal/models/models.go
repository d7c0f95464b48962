package models

import (
	"time"
)

// FolderFileType тип записи-маркера пустой папки
const FolderFileType = "folder"

// FileRecord метаданные загруженного файла или маркер папки (Filename == nil)
type FileRecord struct {
	Folder     string    `bson:"folder" json:"folder"`
	Filename   *string   `bson:"filename" json:"filename"`
	UploadTime time.Time `bson:"upload_time" json:"upload_time"`
	FileType   string    `bson:"file_type" json:"file_type"`
	Path       string    `bson:"path" json:"path"`
	Size       int64     `bson:"size,omitempty" json:"size,omitempty"`
	Checksum   string    `bson:"checksum,omitempty" json:"checksum,omitempty"`
}

// IsSentinel сообщает, что запись обозначает пустую папку
func (r FileRecord) IsSentinel() bool {
	return r.Filename == nil && r.FileType == FolderFileType
}

// Name возвращает имя файла или пустую строку для маркера
func (r FileRecord) Name() string {
	if r.Filename == nil {
		return ""
	}
	return *r.Filename
}

// NewFolderRecord создает маркер явно созданной папки
func NewFolderRecord(folder, path string, now time.Time) FileRecord {
	return FileRecord{
		Folder:     folder,
		Filename:   nil,
		UploadTime: now,
		FileType:   FolderFileType,
		Path:       path,
	}
}

// User учетная запись пользователя
type User struct {
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Session серверная сессия входа
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
