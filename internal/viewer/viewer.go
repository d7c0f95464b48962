// Package viewer выбирает способ показа сохраненного файла по его расширению.
package viewer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
	"github.com/ivanov-nikolay/notes_storage/internal/utils"
)

// Kind способ показа файла
type Kind string

const (
	KindText     Kind = "text"
	KindPDF      Kind = "pdf"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindOffice   Kind = "office"
)

var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
}

// Source источник содержимого файлов
type Source interface {
	ReadFile(folder, filename string) ([]byte, error)
	FileExists(folder, filename string) (bool, error)
}

// Signer выдает токен, по которому внешний сервис прочитает один файл без сессии
type Signer interface {
	ShareToken(folder, filename string) (string, error)
}

// Rendering результат выбора способа показа
type Rendering struct {
	Folder   string
	Filename string
	Kind     Kind
	// Text содержимое для KindText и KindDocument
	Text string
	// EmbedURL адрес сырого содержимого для KindPDF и KindImage
	EmbedURL string
	// ViewerURL адрес внешнего просмотрщика для KindOffice
	ViewerURL string
}

// Renderer не хранит состояния между вызовами
type Renderer struct {
	files     Source
	signer    Signer
	officeURL string
	publicURL string
}

// New создает Renderer. Без signer файлы .doc не поддерживаются.
func New(files Source, signer Signer, cfg config.ViewerConfig) *Renderer {
	return &Renderer{
		files:     files,
		signer:    signer,
		officeURL: cfg.OfficeURL,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

// RawURL адрес, по которому отдается сырое содержимое файла
func RawURL(folder, filename string) string {
	return "/static_view/" + url.PathEscape(folder) + "/" + url.PathEscape(filename)
}

// SharedURL адрес сырого содержимого с токеном доступа вместо cookie сессии
func SharedURL(folder, filename, token string) string {
	return "/shared_view/" + url.PathEscape(folder) + "/" + url.PathEscape(filename) + "?token=" + url.QueryEscape(token)
}

// Render выбирает способ показа. Неизвестное расширение дает
// models.ErrUnsupportedType без обращения к диску, отсутствующий файл
// дает models.ErrFileNotFound.
func (r *Renderer) Render(folder, filename string) (Rendering, error) {
	out := Rendering{Folder: folder, Filename: filename}
	if !utils.ValidName(folder) || !utils.ValidName(filename) {
		return out, fmt.Errorf("%w: %q/%q", models.ErrInvalidName, folder, filename)
	}
	ext := utils.Extension(filename)

	switch {
	case ext == "txt":
		data, err := r.files.ReadFile(folder, filename)
		if err != nil {
			return out, err
		}
		out.Kind = KindText
		out.Text = string(data)

	case ext == "pdf":
		if err := r.mustExist(folder, filename); err != nil {
			return out, err
		}
		out.Kind = KindPDF
		out.EmbedURL = RawURL(folder, filename)

	case isImage(ext):
		if err := r.mustExist(folder, filename); err != nil {
			return out, err
		}
		out.Kind = KindImage
		out.EmbedURL = RawURL(folder, filename)

	case ext == "docx":
		data, err := r.files.ReadFile(folder, filename)
		if err != nil {
			return out, err
		}
		text, err := ExtractDocxText(data)
		if err != nil {
			return out, err
		}
		out.Kind = KindDocument
		out.Text = text

	case ext == "doc" && r.officeEnabled():
		if err := r.mustExist(folder, filename); err != nil {
			return out, err
		}
		token, err := r.signer.ShareToken(folder, filename)
		if err != nil {
			return out, err
		}
		out.Kind = KindOffice
		out.ViewerURL = r.officeURL + "?src=" + url.QueryEscape(r.publicURL+SharedURL(folder, filename, token))

	default:
		return out, fmt.Errorf("%w: %q", models.ErrUnsupportedType, ext)
	}

	return out, nil
}

func (r *Renderer) officeEnabled() bool {
	return r.officeURL != "" && r.publicURL != "" && r.signer != nil
}

func (r *Renderer) mustExist(folder, filename string) error {
	ok, err := r.files.FileExists(folder, filename)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrFileNotFound
	}
	return nil
}

func isImage(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}
