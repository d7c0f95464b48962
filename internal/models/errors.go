package models

import "errors"

// Ошибки хранилища файлов и метаданных
var (
	// ErrFileNotFound файл отсутствует в файловом хранилище
	ErrFileNotFound = errors.New("file not found")

	// ErrFolderNotFound директория папки отсутствует
	ErrFolderNotFound = errors.New("folder not found")

	// ErrInvalidName имя папки или файла недопустимо
	ErrInvalidName = errors.New("invalid name")

	// ErrUnsupportedType тип файла нельзя открыть для чтения
	ErrUnsupportedType = errors.New("file type not supported for reading")
)

// Ошибки аутентификации
var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")

	// ErrShareTokenInvalid токен доступа к файлу поддельный, просрочен или выдан для другого файла
	ErrShareTokenInvalid = errors.New("invalid share token")
)

// ErrConfigInvalid некорректная конфигурация
var ErrConfigInvalid = errors.New("invalid config")
